package products

import (
	"net/http"

	"farmgate/models"
	"farmgate/store"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// GET /api/products?category=&farmer=&search=&page=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	opts := utils.ParseQueryOptions(r)
	list, err := h.svc.List(r.Context(), store.ProductFilter{
		Category: models.Category(opts.Category),
		Farmer:   opts.Farmer,
		Search:   opts.Search,
		Limit:    int64(opts.Limit),
		Offset:   int64(opts.Offset()),
	})
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/products/:id
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.svc.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// POST /api/products
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), utils.ActorFromRequest(r), in)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// PUT /api/products/:id
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), in)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// DELETE /api/products/:id
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Delete(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Product deleted successfully."})
}
