package orders

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

type placeOrderRequest struct {
	Products []ItemRequest `json:"products" validate:"required,min=1,dive"`
}

type addProductRequest struct {
	ProductID      string `json:"productId" validate:"required"`
	PurchaseAmount int    `json:"purchaseAmount" validate:"gt=0"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

// POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req placeOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	o, err := h.svc.PlaceOrder(r.Context(), utils.ActorFromRequest(r), req.Products)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, o)
}

// GET /api/orders/my-orders
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.ListMine(r.Context(), utils.ActorFromRequest(r))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/orders/my-products
func (h *Handler) OrdersForMyProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.svc.ListForFarmer(r.Context(), utils.ActorFromRequest(r))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/orders/view/:id
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.Get(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// PUT /api/orders/:id
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), req.Status)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// DELETE /api/orders/:id
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.CancelOrder(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Order cancelled successfully."})
}

// PUT /api/orders/:id/add-product
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req addProductRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	o, err := h.svc.AddLineItem(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), req.ProductID, req.PurchaseAmount)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Product added to cart (pending order).", "order": o})
}

// PUT /api/orders/:id/remove-product/:productId
func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.RemoveLineItem(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), ps.ByName("productId"))
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Product removed from order.", "order": o})
}
