package webhooks

import (
	"io"
	"net/http"

	"farmgate/models"
	"farmgate/utils"

	"github.com/julienschmidt/httprouter"
)

const maxPayload = 1 << 20

type Handler struct {
	rec *Reconciler
}

func NewHandler(rec *Reconciler) *Handler { return &Handler{rec: rec} }

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, provider models.PaymentMethod) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Webhook Error: unreadable body")
		return
	}
	outcome, err := h.rec.HandleProviderEvent(r.Context(), provider, payload, r.Header)
	if err != nil {
		utils.RespondWithErr(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"received": true, "outcome": outcome})
}

// POST /api/webhooks/stripe
func (h *Handler) Stripe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.handle(w, r, models.PaymentStripe)
}

// POST /api/webhooks/paypal
func (h *Handler) PayPal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.handle(w, r, models.PaymentPayPal)
}
