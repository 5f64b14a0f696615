// Package orders owns the order aggregate: direct checkout with stock
// reservation, the buyer's cart, farmer status updates and cancellation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmgate/authz"
	"farmgate/errs"
	"farmgate/logging"
	"farmgate/metrics"
	"farmgate/models"
	"farmgate/mq"
	"farmgate/stock"
	"farmgate/store"
	"farmgate/utils"

	"go.uber.org/zap"
)

// CartRef names the caller's cart in place of an order id.
const CartRef = "cart"

type Service struct {
	orders   store.OrderStore
	products store.ProductStore
	ledger   *stock.Ledger
	authz    *authz.Authorizer
	events   mq.Publisher
}

func NewService(orders store.OrderStore, products store.ProductStore, ledger *stock.Ledger, az *authz.Authorizer, events mq.Publisher) *Service {
	if events == nil {
		events = mq.Discard{}
	}
	return &Service{orders: orders, products: products, ledger: ledger, authz: az, events: events}
}

func (s *Service) load(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return o, nil
}

// PlaceOrder checks out directly: stock is reserved first and the order is
// only written once every item is held.
func (s *Service) PlaceOrder(ctx context.Context, actor models.Actor, reqs []ItemRequest) (*models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActPlace); err != nil {
		return nil, err
	}

	items, total, err := PriceItems(ctx, s.products, reqs)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.ReserveAll(ctx, items); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &models.Order{
		ID:            utils.GetUUID(),
		Buyer:         actor.ID,
		Products:      items,
		TotalPrice:    total,
		PaymentMethod: models.PaymentNone,
		PaymentStatus: models.PaymentPending,
		Status:        models.OrderPending,
		StockReserved: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.CreateOrder(ctx, o); err != nil {
		s.ledger.ReleaseAll(ctx, items)
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersPlaced.WithLabelValues(string(models.PaymentNone)).Inc()
	logging.FromContext(ctx).Info("order placed",
		zap.String("order", o.ID), zap.String("buyer", actor.ID), zap.String("total", total.String()))
	s.events.Emit(ctx, mq.Event{Type: mq.OrderPlaced, OrderID: o.ID, Actor: actor.ID})
	return o, nil
}

// cartFor resolves orderRef to a cart order the buyer may change. The
// special ref "cart" (or an empty ref) finds or creates the buyer's cart.
func (s *Service) cartFor(ctx context.Context, actor models.Actor, orderRef string, create bool) (*models.Order, error) {
	if orderRef == "" || orderRef == CartRef {
		o, err := s.orders.FindCart(ctx, actor.ID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find cart: %w", err)
		}
		if !create {
			return nil, errs.ErrOrderNotFound
		}
		now := time.Now().UTC()
		o = &models.Order{
			ID:            utils.GetUUID(),
			Buyer:         actor.ID,
			Products:      []models.LineItem{},
			PaymentMethod: models.PaymentNone,
			PaymentStatus: models.PaymentPending,
			Status:        models.OrderPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.orders.CreateOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		return o, nil
	}

	o, err := s.load(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if o.Buyer != actor.ID {
		return nil, errs.ErrForbidden
	}
	if o.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: cannot modify an order that is not pending", errs.ErrInvalidState)
	}
	if !o.IsCart() {
		return nil, fmt.Errorf("%w: only cart orders can be modified", errs.ErrInvalidState)
	}
	return o, nil
}

// reprice refreshes unit prices from the current products. Items whose
// product has been removed keep their last snapshot.
func (s *Service) reprice(ctx context.Context, items []models.LineItem) ([]models.LineItem, error) {
	for i := range items {
		p, err := s.products.GetProduct(ctx, items[i].Product)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", items[i].Product, err)
		}
		items[i].UnitPrice = p.Price
		items[i].Farmer = p.Farmer
	}
	return items, nil
}

func (s *Service) saveCart(ctx context.Context, o *models.Order, items []models.LineItem) (*models.Order, error) {
	items, err := s.reprice(ctx, items)
	if err != nil {
		return nil, err
	}
	total := models.Total(items)
	if err := s.orders.SaveCart(ctx, o.ID, items, total); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order is no longer pending", errs.ErrInvalidState)
		}
		return nil, fmt.Errorf("save cart: %w", err)
	}
	o.Products = items
	o.TotalPrice = total
	return o, nil
}

// AddLineItem adds amount units of a product to a cart. No stock is held;
// the cumulative amount may not exceed what is currently in stock.
func (s *Service) AddLineItem(ctx context.Context, actor models.Actor, orderRef, productID string, amount int) (*models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjCart, authz.ActModify); err != nil {
		return nil, err
	}
	if productID == "" || amount <= 0 {
		return nil, fmt.Errorf("%w: product and a positive purchase amount are required", errs.ErrInvalidInput)
	}

	p, err := getProduct(ctx, s.products, productID)
	if err != nil {
		return nil, err
	}
	o, err := s.cartFor(ctx, actor, orderRef, true)
	if err != nil {
		return nil, err
	}

	items := append([]models.LineItem(nil), o.Products...)
	found := false
	for i := range items {
		if items[i].Product == productID {
			items[i].PurchaseAmount += amount
			amount = items[i].PurchaseAmount
			found = true
			break
		}
	}
	if !found {
		items = append(items, models.LineItem{Product: p.ID, PurchaseAmount: amount, UnitPrice: p.Price, Farmer: p.Farmer})
	}
	if p.Stock < amount {
		return nil, fmt.Errorf("%w available", errs.ErrInsufficientStock)
	}

	return s.saveCart(ctx, o, items)
}

// RemoveLineItem drops a product from a cart.
func (s *Service) RemoveLineItem(ctx context.Context, actor models.Actor, orderID, productID string) (*models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjCart, authz.ActModify); err != nil {
		return nil, err
	}
	o, err := s.cartFor(ctx, actor, orderID, false)
	if err != nil {
		return nil, err
	}

	items := make([]models.LineItem, 0, len(o.Products))
	for _, it := range o.Products {
		if it.Product != productID {
			items = append(items, it)
		}
	}
	if len(items) == len(o.Products) {
		return nil, fmt.Errorf("%w in order", errs.ErrProductNotFound)
	}
	return s.saveCart(ctx, o, items)
}

// UpdateStatus lets a farmer with at least one product in the order set its
// status to any valid value.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, orderID string, status models.OrderStatus) (*models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActUpdateStatus); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.HasFarmer(actor.ID) {
		return nil, fmt.Errorf("%w to update this order", errs.ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status value", errs.ErrInvalidInput)
	}

	moved, err := s.orders.TransitionStatus(ctx, o.ID, o.Status, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("%w: order changed concurrently, retry", errs.ErrInvalidState)
	}
	prev := o.Status
	o.Status = status

	if status == models.OrderCancelled && prev != models.OrderCancelled {
		s.releaseReserved(ctx, o)
	}

	logging.FromContext(ctx).Info("order status updated",
		zap.String("order", o.ID), zap.String("from", string(prev)), zap.String("to", string(status)))
	s.events.Emit(ctx, mq.Event{Type: mq.OrderStatus, OrderID: o.ID, Actor: actor.ID, Status: string(status)})
	return o, nil
}

// CancelOrder cancels a pending order of the buyer and returns any stock it
// holds.
func (s *Service) CancelOrder(ctx context.Context, actor models.Actor, orderID string) error {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActCancel); err != nil {
		return err
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Buyer != actor.ID {
		return fmt.Errorf("%w to cancel this order", errs.ErrForbidden)
	}
	if o.Status != models.OrderPending {
		return fmt.Errorf("%w: only pending orders can be cancelled", errs.ErrInvalidState)
	}

	moved, err := s.orders.TransitionStatus(ctx, o.ID, models.OrderPending, models.OrderCancelled)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if !moved {
		return fmt.Errorf("%w: only pending orders can be cancelled", errs.ErrInvalidState)
	}
	o.Status = models.OrderCancelled
	s.releaseReserved(ctx, o)

	s.events.Emit(ctx, mq.Event{Type: mq.OrderCancelled, OrderID: o.ID, Actor: actor.ID})
	return nil
}

// releaseReserved gives back the stock held by a cancelled order. It
// re-reads the flag so a payment confirmed meanwhile is seen.
func (s *Service) releaseReserved(ctx context.Context, o *models.Order) {
	fresh, err := s.orders.GetOrder(ctx, o.ID)
	if err != nil || !fresh.StockReserved {
		return
	}
	if err := s.orders.SetStockReserved(ctx, o.ID, false); err != nil {
		logging.FromContext(ctx).Error("clear stock flag", zap.String("order", o.ID), zap.Error(err))
		return
	}
	s.ledger.ReleaseAll(ctx, fresh.Products)
	o.StockReserved = false
}

func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActListOwn); err != nil {
		return nil, err
	}
	return s.orders.ListOrdersByBuyer(ctx, actor.ID)
}

func (s *Service) ListForFarmer(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActListFarmer); err != nil {
		return nil, err
	}
	return s.orders.ListOrdersByFarmer(ctx, actor.ID)
}

// Get returns an order to its buyer, to a farmer selling in it, or to a
// delivery agent.
func (s *Service) Get(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjOrder, authz.ActView); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleBuyer:
		if o.Buyer != actor.ID {
			return nil, errs.ErrForbidden
		}
	case models.RoleFarmer:
		if !o.HasFarmer(actor.ID) {
			return nil, errs.ErrForbidden
		}
	}
	return o, nil
}
