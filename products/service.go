// Package products is the farmers' catalogue: listing, lookup and
// farmer-owned create, update and delete.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmgate/authz"
	"farmgate/errs"
	"farmgate/logging"
	"farmgate/models"
	"farmgate/stock"
	"farmgate/store"
	"farmgate/utils"

	"go.uber.org/zap"
)

const defaultImage = "default.jpg"

type Service struct {
	products store.ProductStore
	ledger   *stock.Ledger
	authz    *authz.Authorizer
}

func NewService(products store.ProductStore, ledger *stock.Ledger, az *authz.Authorizer) *Service {
	return &Service{products: products, ledger: ledger, authz: az}
}

// Input carries product fields. Nil fields are left unchanged on update.
type Input struct {
	Name     *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Category *models.Category `json:"category"`
	Price    *models.Money    `json:"price"`
	Stock    *int             `json:"stock" validate:"omitempty,min=0"`
	Image    *string          `json:"image" validate:"omitempty,max=2048"`
}

func (in Input) validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", errs.ErrInvalidInput)
	}
	if in.Category != nil && !in.Category.Valid() {
		return fmt.Errorf("%w: unknown category", errs.ErrInvalidInput)
	}
	if in.Price != nil && !in.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", errs.ErrInvalidInput)
	}
	if in.Stock != nil && *in.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", errs.ErrInvalidInput)
	}
	return nil
}

func (s *Service) List(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category", errs.ErrInvalidInput)
	}
	return s.products.ListProducts(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.ErrProductNotFound
	}
	return p, err
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*models.Product, error) {
	if err := s.authz.Check(actor, authz.ObjProduct, authz.ActCreate); err != nil {
		return nil, err
	}
	if in.Name == nil || in.Category == nil || in.Price == nil {
		return nil, fmt.Errorf("%w: name, category and price are required", errs.ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &models.Product{
		ID:        utils.GetUUID(),
		Name:      strings.TrimSpace(*in.Name),
		Category:  *in.Category,
		Price:     *in.Price,
		Image:     defaultImage,
		Farmer:    actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Image != nil && *in.Image != "" {
		p.Image = *in.Image
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	logging.FromContext(ctx).Info("product created", zap.String("product", p.ID), zap.String("farmer", actor.ID))
	return p, nil
}

func (s *Service) owned(ctx context.Context, actor models.Actor, id, act string) (*models.Product, error) {
	if err := s.authz.Check(actor, authz.ObjProduct, act); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Farmer != actor.ID {
		return nil, fmt.Errorf("%w to %s this product", errs.ErrForbidden, act)
	}
	return p, nil
}

// Update rewrites the listing fields. A new stock level is applied first, as
// a ledger adjustment against the stored level, so concurrent reservations
// are never overwritten and a refused adjustment leaves the listing as it was.
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, in Input) (*models.Product, error) {
	if _, err := s.owned(ctx, actor, id, authz.ActUpdate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Stock != nil {
		switch delta := *in.Stock - p.Stock; {
		case delta > 0:
			err = s.ledger.Release(ctx, p.ID, delta)
		case delta < 0:
			err = s.ledger.Reserve(ctx, p.ID, -delta)
		}
		if err != nil {
			return nil, err
		}
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Image != nil && *in.Image != "" {
		p.Image = *in.Image
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.Get(ctx, p.ID)
}

// current reads the product from behind any cache.
func (s *Service) current(ctx context.Context, id string) (*models.Product, error) {
	src := s.products
	if c, ok := src.(interface{ Uncached() store.ProductStore }); ok {
		src = c.Uncached()
	}
	p, err := src.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.ErrProductNotFound
	}
	return p, err
}

func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	p, err := s.owned(ctx, actor, id, authz.ActDelete)
	if err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, p.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	logging.FromContext(ctx).Info("product deleted", zap.String("product", p.ID), zap.String("farmer", actor.ID))
	return nil
}
