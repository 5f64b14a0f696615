package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farmgate/authz"
	"farmgate/errs"
	"farmgate/logging"
	"farmgate/metrics"
	"farmgate/models"
	"farmgate/orders"
	"farmgate/store"
	"farmgate/utils"

	"go.uber.org/zap"
)

// Checkout is the result handed back to the client.
type Checkout struct {
	OrderID      string
	Method       models.PaymentMethod
	ClientHandle string
}

// Service handles provider checkouts.
type Service struct {
	orders   store.OrderStore
	products store.ProductStore
	authz    *authz.Authorizer
	timeout  time.Duration

	pLock     sync.RWMutex
	providers map[models.PaymentMethod]Provider
}

func NewService(orders store.OrderStore, products store.ProductStore, az *authz.Authorizer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		orders:    orders,
		products:  products,
		authz:     az,
		timeout:   timeout,
		providers: make(map[models.PaymentMethod]Provider),
	}
}

// Register adds a provider under its payment method (thread-safe).
func (s *Service) Register(p Provider) {
	s.pLock.Lock()
	defer s.pLock.Unlock()
	s.providers[p.Method()] = p
}

func (s *Service) provider(method models.PaymentMethod) (Provider, error) {
	s.pLock.RLock()
	defer s.pLock.RUnlock()
	p, ok := s.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s payments are not configured", errs.ErrUpstreamPayment, method)
	}
	return p, nil
}

// Checkout prices the items, opens a payment intent with the provider and
// records a pending order bound to it. No stock is reserved until the
// provider confirms payment.
func (s *Service) Checkout(ctx context.Context, actor models.Actor, method models.PaymentMethod, reqs []orders.ItemRequest) (*Checkout, error) {
	if err := s.authz.Check(actor, authz.ObjPayment, authz.ActCheckout); err != nil {
		return nil, err
	}
	p, err := s.provider(method)
	if err != nil {
		return nil, err
	}

	items, total, err := orders.PriceItems(ctx, s.products, reqs)
	if err != nil {
		return nil, err
	}

	orderID := utils.GetUUID()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	intent, err := p.CreateIntent(callCtx, IntentRequest{OrderID: orderID, Buyer: actor.ID, Amount: total})
	if err != nil {
		metrics.PaymentIntents.WithLabelValues(string(method), "error").Inc()
		logging.FromContext(ctx).Warn("payment intent failed", zap.String("provider", string(method)), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", errs.ErrUpstreamPayment, err.Error())
	}
	metrics.PaymentIntents.WithLabelValues(string(method), "ok").Inc()

	now := time.Now().UTC()
	o := &models.Order{
		ID:              orderID,
		Buyer:           actor.ID,
		Products:        items,
		TotalPrice:      total,
		PaymentMethod:   method,
		PaymentIntentID: intent.ID,
		PaymentStatus:   models.PaymentPending,
		Status:          models.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.CreateOrder(ctx, o); err != nil {
		logging.FromContext(ctx).Error("order for payment intent not saved",
			zap.String("intent", intent.ID), zap.String("provider", string(method)), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersPlaced.WithLabelValues(string(method)).Inc()
	logging.FromContext(ctx).Info("checkout started",
		zap.String("order", o.ID), zap.String("provider", string(method)), zap.String("intent", intent.ID))
	return &Checkout{OrderID: o.ID, Method: method, ClientHandle: intent.ClientHandle}, nil
}
