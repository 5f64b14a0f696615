package delivery

import (
	"net/http"

	"farmgate/models"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

type acceptRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type statusRequest struct {
	Status models.DeliveryStatus `json:"status" validate:"required"`
}

// POST /api/delivery/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req acceptRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	d, err := h.svc.Accept(r.Context(), utils.ActorFromRequest(r), req.OrderID)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"message": "Delivery accepted successfully.", "delivery": d})
}

// GET /api/delivery/my-active
func (h *Handler) MyActive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	d, err := h.svc.Active(r.Context(), utils.ActorFromRequest(r))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}

// GET /api/delivery/available
func (h *Handler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.Available(r.Context(), utils.ActorFromRequest(r))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// PUT /api/delivery/:id
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	d, err := h.svc.UpdateStatus(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), req.Status)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}

// DELETE /api/delivery/:id
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Cancel(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Delivery cancelled successfully. Order is now available again."})
}

// GET /api/delivery/slip/:id
func (h *Handler) Slip(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	pdf, err := h.svc.Slip(r.Context(), utils.ActorFromRequest(r), id)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=delivery-"+id+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
