// Package store holds the persistence ports used by the services, the Mongo
// adapter and the Redis-backed product cache.
package store

import (
	"context"
	"errors"
	"time"

	"farmgate/models"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrDuplicate         = errors.New("store: duplicate")
	ErrInsufficientStock = errors.New("store: not enough stock")
)

type ProductFilter struct {
	Category models.Category
	Farmer   string
	Search   string
	Limit    int64
	Offset   int64
}

// StockStore is the atomic primitive behind the stock ledger.
type StockStore interface {
	// DecrementStock subtracts amount only if stock >= amount, as one update.
	DecrementStock(ctx context.Context, productID string, amount int) error
	IncrementStock(ctx context.Context, productID string, amount int) error
}

type ProductStore interface {
	StockStore
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)
	// UpdateProduct rewrites the listing fields; stock is left untouched.
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	// FindCart returns the buyer's oldest cart order.
	FindCart(ctx context.Context, buyer string) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error)
	ListOrdersByFarmer(ctx context.Context, farmer string) ([]models.Order, error)
	ListAssignableOrders(ctx context.Context) ([]models.Order, error)

	// SaveCart replaces the line items and total of a still-pending order.
	SaveCart(ctx context.Context, id string, items []models.LineItem, total models.Money) error
	SetStatus(ctx context.Context, id string, status models.OrderStatus) error
	// TransitionStatus moves the order from one status to another and reports
	// whether this call performed the move.
	TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)
	SetStockReserved(ctx context.Context, id string, reserved bool) error

	// MarkPaid claims a not yet paid, not cancelled order for the intent and
	// marks it paid. A pending order also moves to confirmed; later statuses
	// are kept. ErrNotFound means nothing was claimed.
	MarkPaid(ctx context.Context, intentID string) (*models.Order, error)
	// MarkPaymentFailed flags a still-pending payment as failed.
	MarkPaymentFailed(ctx context.Context, intentID string) (bool, error)

	// ClaimForDelivery flips isDeliveryAssigned on a confirmed, unassigned
	// order. ErrNotFound means the order is not available.
	ClaimForDelivery(ctx context.Context, id string) (*models.Order, error)
	ReleaseDeliveryClaim(ctx context.Context, id string) error
}

type DeliveryStore interface {
	// CreateDelivery fails with ErrDuplicate when the agent or the order
	// already has an active delivery.
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	FindActiveDelivery(ctx context.Context, agent string) (*models.Delivery, error)
	// UpdateDeliveryStatus fails with ErrDuplicate when reactivating would
	// give the agent a second active delivery.
	UpdateDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus, deliveredAt *time.Time) error
	DeleteDelivery(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}
