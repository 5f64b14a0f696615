package payments

import (
	"net/http"

	"farmgate/models"
	"farmgate/orders"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

type checkoutRequest struct {
	Products []orders.ItemRequest `json:"products" validate:"required,min=1,dive"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, method models.PaymentMethod, handleKey string) {
	var req checkoutRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	res, err := h.svc.Checkout(r.Context(), utils.ActorFromRequest(r), method, req.Products)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{handleKey: res.ClientHandle, "orderId": res.OrderID})
}

// POST /api/payments/place-order-stripe
func (h *Handler) PlaceOrderStripe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.checkout(w, r, models.PaymentStripe, "clientSecret")
}

// POST /api/payments/place-order-paypal
func (h *Handler) PlaceOrderPayPal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.checkout(w, r, models.PaymentPayPal, "approvalUrl")
}
