// Package memstore is an in-process implementation of the store ports. It
// gives the same atomicity guarantees as the Mongo adapter by holding a
// single mutex per call and is used by tests and STORE=memory runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"farmgate/models"
	"farmgate/store"
)

type Store struct {
	mu         sync.RWMutex
	products   map[string]*models.Product
	orders     map[string]*models.Order
	deliveries map[string]*models.Delivery
	users      map[string]*models.User
}

var (
	_ store.ProductStore  = (*Store)(nil)
	_ store.OrderStore    = (*Store)(nil)
	_ store.DeliveryStore = (*Store)(nil)
	_ store.UserStore     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		products:   make(map[string]*models.Product),
		orders:     make(map[string]*models.Order),
		deliveries: make(map[string]*models.Delivery),
		users:      make(map[string]*models.User),
	}
}

// ---- products ----

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(_ context.Context, f store.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Product{}
	for _, p := range s.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Farmer != "" && p.Farmer != f.Farmer {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.Offset > 0 {
		if f.Offset >= int64(len(out)) {
			return []models.Product{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Name = p.Name
	cur.Category = p.Category
	cur.Price = p.Price
	cur.Image = p.Image
	cur.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.Stock < amount {
		return store.ErrInsufficientStock
	}
	p.Stock -= amount
	return nil
}

func (s *Store) IncrementStock(_ context.Context, productID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += amount
	return nil
}

// ---- orders ----

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Products = append([]models.LineItem(nil), o.Products...)
	return &cp
}

func (s *Store) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return store.ErrDuplicate
	}
	if o.PaymentIntentID != "" {
		for _, other := range s.orders {
			if other.PaymentIntentID == o.PaymentIntentID {
				return store.ErrDuplicate
			}
		}
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) FindOrderByPaymentIntent(_ context.Context, intentID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if intentID != "" && o.PaymentIntentID == intentID {
			return cloneOrder(o), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindCart(_ context.Context, buyer string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Order
	for _, o := range s.orders {
		if o.Buyer != buyer || !o.IsCart() {
			continue
		}
		if found == nil || o.CreatedAt.Before(found.CreatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return cloneOrder(found), nil
}

func (s *Store) listOrders(match func(*models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Order{}
	for _, o := range s.orders {
		if match(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListOrdersByBuyer(_ context.Context, buyer string) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool { return o.Buyer == buyer }), nil
}

func (s *Store) ListOrdersByFarmer(_ context.Context, farmer string) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool { return o.HasFarmer(farmer) }), nil
}

func (s *Store) ListAssignableOrders(_ context.Context) ([]models.Order, error) {
	return s.listOrders(func(o *models.Order) bool {
		return o.Status == models.OrderConfirmed && !o.IsDeliveryAssigned
	}), nil
}

func (s *Store) SaveCart(_ context.Context, id string, items []models.LineItem, total models.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderPending {
		return store.ErrNotFound
	}
	o.Products = append([]models.LineItem(nil), items...)
	o.TotalPrice = total
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetStatus(_ context.Context, id string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, id string, from, to models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) SetStockReserved(_ context.Context, id string, reserved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.StockReserved = reserved
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkPaid(_ context.Context, intentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if intentID == "" || o.PaymentIntentID != intentID {
			continue
		}
		if o.PaymentStatus == models.PaymentPaid || o.Status == models.OrderCancelled {
			return nil, store.ErrNotFound
		}
		o.PaymentStatus = models.PaymentPaid
		if o.Status == models.OrderPending {
			o.Status = models.OrderConfirmed
		}
		o.UpdatedAt = time.Now().UTC()
		return cloneOrder(o), nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) MarkPaymentFailed(_ context.Context, intentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if intentID == "" || o.PaymentIntentID != intentID {
			continue
		}
		if o.PaymentStatus != models.PaymentPending {
			return false, nil
		}
		o.PaymentStatus = models.PaymentFailed
		o.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, nil
}

func (s *Store) ClaimForDelivery(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != models.OrderConfirmed || o.IsDeliveryAssigned {
		return nil, store.ErrNotFound
	}
	o.IsDeliveryAssigned = true
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

func (s *Store) ReleaseDeliveryClaim(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.IsDeliveryAssigned = false
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- deliveries ----

// activeConflict mirrors the partial unique indexes on agent and order.
func (s *Store) activeConflict(d *models.Delivery) bool {
	for _, other := range s.deliveries {
		if other.ID == d.ID || !other.Active {
			continue
		}
		if other.DeliveryAgent == d.DeliveryAgent || other.Order == d.Order {
			return true
		}
	}
	return false
}

func (s *Store) CreateDelivery(_ context.Context, d *models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *d
	cp.Active = cp.Status.Active()
	if cp.Active && s.activeConflict(&cp) {
		return store.ErrDuplicate
	}
	s.deliveries[d.ID] = &cp
	return nil
}

func (s *Store) GetDelivery(_ context.Context, id string) (*models.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) FindActiveDelivery(_ context.Context, agent string) (*models.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deliveries {
		if d.DeliveryAgent == agent && d.Active {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateDeliveryStatus(_ context.Context, id string, status models.DeliveryStatus, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return store.ErrNotFound
	}
	next := *d
	next.Status = status
	next.Active = status.Active()
	if next.Active && !d.Active && s.activeConflict(&next) {
		return store.ErrDuplicate
	}
	if deliveredAt != nil {
		next.DeliveryDate = deliveredAt
	}
	next.UpdatedAt = time.Now().UTC()
	s.deliveries[id] = &next
	return nil
}

func (s *Store) DeleteDelivery(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.deliveries, id)
	return nil
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.ID == u.ID || other.Username == u.Username || other.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}
