package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"farmgate/errs"
	"farmgate/logging"
	"farmgate/metrics"
	"farmgate/models"
	"farmgate/mq"
	"farmgate/stock"
	"farmgate/store"

	"go.uber.org/zap"
)

// Outcome describes what a notification did.
type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"
	OutcomeStockShortage Outcome = "confirmed_stock_shortage"
	OutcomeAlreadyPaid   Outcome = "already_paid"
	OutcomeCancelled     Outcome = "order_cancelled"
	OutcomeUnknownOrder  Outcome = "unknown_order"
	OutcomeFailed        Outcome = "payment_failed"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeRejected      Outcome = "rejected"
)

// Marks remembers processed event ids. Implemented by rdx.Marks.
type Marks interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Reconciler struct {
	orders    store.OrderStore
	ledger    *stock.Ledger
	events    mq.Publisher
	marks     Marks
	verifiers map[models.PaymentMethod]Verifier
}

// NewReconciler wires the reconciler. marks and events may be nil.
func NewReconciler(orders store.OrderStore, ledger *stock.Ledger, events mq.Publisher, marks Marks, verifiers ...Verifier) *Reconciler {
	if events == nil {
		events = mq.Discard{}
	}
	r := &Reconciler{
		orders:    orders,
		ledger:    ledger,
		events:    events,
		marks:     marks,
		verifiers: make(map[models.PaymentMethod]Verifier, len(verifiers)),
	}
	for _, v := range verifiers {
		r.verifiers[v.Provider()] = v
	}
	return r
}

// HandleProviderEvent verifies and applies one notification. Only
// verification and infrastructure failures return an error; every business
// outcome, including no-ops, is reported through Outcome.
func (r *Reconciler) HandleProviderEvent(ctx context.Context, provider models.PaymentMethod, payload []byte, header http.Header) (Outcome, error) {
	v, ok := r.verifiers[provider]
	if !ok {
		return OutcomeRejected, fmt.Errorf("%w: %s webhooks are not configured", errs.ErrSignature, provider)
	}

	ev, err := v.Parse(ctx, payload, header)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(provider), string(OutcomeRejected)).Inc()
		logging.FromContext(ctx).Warn("webhook rejected", zap.String("provider", string(provider)), zap.Error(err))
		return OutcomeRejected, err
	}

	log := logging.FromContext(ctx).With(
		zap.String("provider", string(provider)),
		zap.String("event", ev.ID),
		zap.String("type", ev.Type),
		zap.String("intent", ev.IntentID),
	)
	ctx = logging.WithLogger(ctx, log)

	if r.seen(ctx, ev.ID) {
		r.record(provider, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	var outcome Outcome
	switch ev.Kind {
	case KindSucceeded:
		outcome, err = r.succeeded(ctx, ev)
	case KindFailed:
		outcome, err = r.failed(ctx, ev)
	default:
		outcome = OutcomeIgnored
	}
	if err != nil {
		return outcome, err
	}

	r.mark(ctx, ev.ID)
	r.record(provider, outcome)
	log.Info("webhook processed", zap.String("outcome", string(outcome)))
	return outcome, nil
}

func (r *Reconciler) record(provider models.PaymentMethod, o Outcome) {
	metrics.WebhookEvents.WithLabelValues(string(provider), string(o)).Inc()
}

func (r *Reconciler) seen(ctx context.Context, id string) bool {
	if r.marks == nil || id == "" {
		return false
	}
	ok, err := r.marks.Seen(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Warn("event dedupe lookup failed", zap.Error(err))
		return false
	}
	return ok
}

func (r *Reconciler) mark(ctx context.Context, id string) {
	if r.marks == nil || id == "" {
		return
	}
	if err := r.marks.Mark(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("event dedupe mark failed", zap.Error(err))
	}
}

// succeeded claims the order for the intent. Only the claiming call reserves
// stock, so replays and concurrent deliveries are no-ops.
func (r *Reconciler) succeeded(ctx context.Context, ev Event) (Outcome, error) {
	log := logging.FromContext(ctx)

	o, err := r.orders.MarkPaid(ctx, ev.IntentID)
	if errors.Is(err, store.ErrNotFound) {
		return r.unclaimed(ctx, ev)
	}
	if err != nil {
		return "", fmt.Errorf("mark paid: %w", err)
	}

	outcome := OutcomeConfirmed
	err = r.ledger.ReserveAll(ctx, o.Products)
	switch {
	case err == nil:
		if err := r.orders.SetStockReserved(ctx, o.ID, true); err != nil {
			log.Error("stock reserved but flag not saved", zap.String("order", o.ID), zap.Error(err))
		}
	case unfulfillable(err):
		// paid but not fulfillable: needs a manual refund
		outcome = OutcomeStockShortage
		log.Error("paid order could not reserve stock", zap.String("order", o.ID), zap.Error(err))
	default:
		// the order stays paid with stockReserved=false until repaired
		log.Error("paid order stock reservation failed", zap.String("order", o.ID), zap.Error(err))
		return "", fmt.Errorf("reserve stock for order %s: %w", o.ID, err)
	}

	log.Info("order confirmed", zap.String("order", o.ID))
	r.events.Emit(ctx, mq.Event{Type: mq.OrderConfirmed, OrderID: o.ID, Actor: o.Buyer})
	return outcome, nil
}

// unfulfillable reports whether a reservation failed for a business reason
// rather than an infrastructure one.
func unfulfillable(err error) bool {
	return errors.Is(err, errs.ErrInsufficientStock) ||
		errors.Is(err, errs.ErrProductNotFound) ||
		errors.Is(err, errs.ErrInvalidInput)
}

func (r *Reconciler) unclaimed(ctx context.Context, ev Event) (Outcome, error) {
	log := logging.FromContext(ctx)

	o, err := r.orders.FindOrderByPaymentIntent(ctx, ev.IntentID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("payment for unknown order")
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order: %w", err)
	}

	switch {
	case o.PaymentStatus == models.PaymentPaid:
		return OutcomeAlreadyPaid, nil
	case o.Status == models.OrderCancelled:
		log.Warn("payment received for cancelled order, refund required", zap.String("order", o.ID))
		return OutcomeCancelled, nil
	}
	log.Warn("payment for order in unexpected state",
		zap.String("order", o.ID), zap.String("status", string(o.Status)))
	return OutcomeIgnored, nil
}

func (r *Reconciler) failed(ctx context.Context, ev Event) (Outcome, error) {
	moved, err := r.orders.MarkPaymentFailed(ctx, ev.IntentID)
	if err != nil {
		return "", fmt.Errorf("mark payment failed: %w", err)
	}
	if !moved {
		return OutcomeIgnored, nil
	}
	return OutcomeFailed, nil
}
