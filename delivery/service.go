// Package delivery assigns confirmed orders to delivery agents, one active
// delivery per agent, and tracks the hand-off until the order is delivered.
package delivery

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
	"farmgate/rdx"
	"farmgate/store"
	"farmgate/utils"

	"go.uber.org/zap"
)

// Locker serialises accepts per agent. Implemented by rdx.Locker.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Service struct {
	deliveries store.DeliveryStore
	orders     store.OrderStore
	authz      *authz.Authorizer
	locker     Locker
	events     mq.Publisher
	slipSecret []byte
}

// NewService wires the service. locker and events may be nil; exclusivity
// then rests on the store alone.
func NewService(deliveries store.DeliveryStore, orders store.OrderStore, az *authz.Authorizer, locker Locker, events mq.Publisher, slipSecret []byte) *Service {
	if events == nil {
		events = mq.Discard{}
	}
	return &Service{
		deliveries: deliveries,
		orders:     orders,
		authz:      az,
		locker:     locker,
		events:     events,
		slipSecret: slipSecret,
	}
}

// Detail is a delivery with its order.
type Detail struct {
	models.Delivery
	Order *models.Order `json:"order"`
}

func (s *Service) lock(ctx context.Context, agent string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, agent)
	if errors.Is(err, rdx.ErrLocked) {
		return nil, fmt.Errorf("%w: another accept is in progress", errs.ErrBusy)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("delivery lock unavailable, continuing", zap.Error(err))
		return func() {}, nil
	}
	return release, nil
}

// Accept assigns a confirmed, unassigned order to the agent.
func (s *Service) Accept(ctx context.Context, actor models.Actor, orderID string) (*models.Delivery, error) {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActAccept); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", errs.ErrInvalidInput)
	}

	release, err := s.lock(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	_, err = s.deliveries.FindActiveDelivery(ctx, actor.ID)
	if err == nil {
		return nil, errs.ErrAlreadyActive
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find active delivery: %w", err)
	}

	if _, err := s.orders.ClaimForDelivery(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrOrderNotAvailable
		}
		return nil, fmt.Errorf("claim order: %w", err)
	}

	now := time.Now().UTC()
	d := &models.Delivery{
		ID:            utils.GetUUID(),
		Order:         orderID,
		DeliveryAgent: actor.ID,
		Status:        models.DeliveryPending,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.deliveries.CreateDelivery(ctx, d); err != nil {
		s.unclaim(ctx, orderID)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.ErrAlreadyActive
		}
		return nil, fmt.Errorf("create delivery: %w", err)
	}

	metrics.Deliveries.WithLabelValues("accepted").Inc()
	logging.FromContext(ctx).Info("delivery accepted",
		zap.String("delivery", d.ID), zap.String("order", orderID), zap.String("agent", actor.ID))
	s.events.Emit(ctx, mq.Event{Type: mq.DeliveryAccepted, OrderID: orderID, DeliveryID: d.ID, Actor: actor.ID})
	return d, nil
}

func (s *Service) unclaim(ctx context.Context, orderID string) {
	if err := s.orders.ReleaseDeliveryClaim(context.WithoutCancel(ctx), orderID); err != nil {
		logging.FromContext(ctx).Error("release delivery claim", zap.String("order", orderID), zap.Error(err))
	}
}

func (s *Service) owned(ctx context.Context, actor models.Actor, id string) (*models.Delivery, error) {
	d, err := s.deliveries.GetDelivery(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load delivery %s: %w", id, err)
	}
	if d.DeliveryAgent != actor.ID {
		return nil, fmt.Errorf("%w to change this delivery", errs.ErrForbidden)
	}
	return d, nil
}

// UpdateStatus moves the agent's delivery to status. Delivered also marks
// the order delivered.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.DeliveryStatus) (*models.Delivery, error) {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActUpdate); err != nil {
		return nil, err
	}
	d, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status value", errs.ErrInvalidInput)
	}

	var deliveredAt *time.Time
	if status == models.DeliveryDelivered {
		now := time.Now().UTC()
		deliveredAt = &now
	}
	if err := s.deliveries.UpdateDeliveryStatus(ctx, d.ID, status, deliveredAt); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.ErrAlreadyActive
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("update delivery: %w", err)
	}
	d.Status = status
	d.Active = status.Active()
	if deliveredAt != nil {
		d.DeliveryDate = deliveredAt
	}

	if status == models.DeliveryDelivered {
		if err := s.orders.SetStatus(ctx, d.Order, models.OrderDelivered); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("mark order delivered: %w", err)
		}
	}

	metrics.Deliveries.WithLabelValues(string(status)).Inc()
	s.events.Emit(ctx, mq.Event{Type: mq.DeliveryPrefix + string(status), OrderID: d.Order, DeliveryID: d.ID, Actor: actor.ID, Status: string(status)})
	return d, nil
}

// Cancel gives up a pending delivery and returns the order to the pool.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id string) error {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActCancel); err != nil {
		return err
	}
	d, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if d.Status != models.DeliveryPending {
		return fmt.Errorf("%w: only pending deliveries can be cancelled", errs.ErrInvalidState)
	}

	if err := s.deliveries.DeleteDelivery(ctx, d.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.ErrDeliveryNotFound
		}
		return fmt.Errorf("delete delivery: %w", err)
	}
	s.unclaim(ctx, d.Order)

	metrics.Deliveries.WithLabelValues("cancelled").Inc()
	s.events.Emit(ctx, mq.Event{Type: mq.DeliveryPrefix + "cancelled", OrderID: d.Order, DeliveryID: d.ID, Actor: actor.ID})
	return nil
}

// Active returns the agent's current delivery with its order.
func (s *Service) Active(ctx context.Context, actor models.Actor) (*Detail, error) {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActView); err != nil {
		return nil, err
	}
	d, err := s.deliveries.FindActiveDelivery(ctx, actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no active delivery assigned", errs.ErrDeliveryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active delivery: %w", err)
	}

	o, err := s.orders.GetOrder(ctx, d.Order)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &Detail{Delivery: *d, Order: o}, nil
}

// Available lists confirmed orders nobody has accepted yet.
func (s *Service) Available(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActListAvail); err != nil {
		return nil, err
	}
	return s.orders.ListAssignableOrders(ctx)
}
