// Package stock is the only writer of Product.stock. Reservations are single
// conditional updates in the store; multi-item reservations compensate on
// failure.
package stock

import (
	"context"
	"errors"
	"fmt"

	"farmgate/errs"
	"farmgate/logging"
	"farmgate/metrics"
	"farmgate/models"
	"farmgate/store"

	"go.uber.org/zap"
)

type Ledger struct {
	store store.StockStore
}

func NewLedger(s store.StockStore) *Ledger {
	return &Ledger{store: s}
}

// Reserve takes amount units of the product, or none at all.
func (l *Ledger) Reserve(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: purchase amount must be positive", errs.ErrInvalidInput)
	}
	err := l.store.DecrementStock(ctx, productID, amount)
	switch {
	case err == nil:
		metrics.StockOps.WithLabelValues("reserve", "ok").Inc()
		return nil
	case errors.Is(err, store.ErrInsufficientStock):
		metrics.StockOps.WithLabelValues("reserve", "insufficient").Inc()
		return fmt.Errorf("%w for product %s", errs.ErrInsufficientStock, productID)
	case errors.Is(err, store.ErrNotFound):
		metrics.StockOps.WithLabelValues("reserve", "not_found").Inc()
		return fmt.Errorf("%w: %s", errs.ErrProductNotFound, productID)
	default:
		metrics.StockOps.WithLabelValues("reserve", "error").Inc()
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
}

// Release puts amount units back.
func (l *Ledger) Release(ctx context.Context, productID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: release amount must be positive", errs.ErrInvalidInput)
	}
	err := l.store.IncrementStock(ctx, productID, amount)
	switch {
	case err == nil:
		metrics.StockOps.WithLabelValues("release", "ok").Inc()
		return nil
	case errors.Is(err, store.ErrNotFound):
		metrics.StockOps.WithLabelValues("release", "not_found").Inc()
		return fmt.Errorf("%w: %s", errs.ErrProductNotFound, productID)
	default:
		metrics.StockOps.WithLabelValues("release", "error").Inc()
		return fmt.Errorf("release %s: %w", productID, err)
	}
}

// ReserveAll reserves every line item in order. If one fails, the items
// already reserved are released again and the failure is returned.
func (l *Ledger) ReserveAll(ctx context.Context, items []models.LineItem) error {
	for i, it := range items {
		if err := l.Reserve(ctx, it.Product, it.PurchaseAmount); err != nil {
			l.ReleaseAll(ctx, items[:i])
			return err
		}
	}
	return nil
}

// ReleaseAll releases every line item. Failures are logged and the
// remaining items are still released.
func (l *Ledger) ReleaseAll(ctx context.Context, items []models.LineItem) {
	// compensation must run even if the caller has gone away
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if err := l.Release(ctx, it.Product, it.PurchaseAmount); err != nil {
			logging.FromContext(ctx).Error("stock release failed",
				zap.String("product", it.Product),
				zap.Int("amount", it.PurchaseAmount),
				zap.Error(err))
		}
	}
}
