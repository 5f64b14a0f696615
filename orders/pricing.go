package orders

import (
	"context"
	"errors"
	"fmt"

	"farmgate/errs"
	"farmgate/models"
	"farmgate/store"
)

// ItemRequest is one requested product and quantity.
type ItemRequest struct {
	ProductID      string `json:"product" validate:"required"`
	PurchaseAmount int    `json:"purchaseAmount" validate:"gt=0"`
}

// PriceItems resolves the requested products, snapshots their current price
// and farmer, and returns the line items with their total. Repeated products
// are merged. Stock is checked but not reserved.
func PriceItems(ctx context.Context, products store.ProductStore, reqs []ItemRequest) ([]models.LineItem, models.Money, error) {
	if len(reqs) == 0 {
		return nil, models.Money{}, fmt.Errorf("%w: at least one product is required", errs.ErrInvalidInput)
	}

	merged := make([]ItemRequest, 0, len(reqs))
	index := make(map[string]int, len(reqs))
	for _, r := range reqs {
		if r.ProductID == "" {
			return nil, models.Money{}, fmt.Errorf("%w: product id is required", errs.ErrInvalidInput)
		}
		if r.PurchaseAmount <= 0 {
			return nil, models.Money{}, fmt.Errorf("%w: purchase amount must be positive", errs.ErrInvalidInput)
		}
		if i, ok := index[r.ProductID]; ok {
			merged[i].PurchaseAmount += r.PurchaseAmount
			continue
		}
		index[r.ProductID] = len(merged)
		merged = append(merged, r)
	}

	items := make([]models.LineItem, 0, len(merged))
	for _, r := range merged {
		p, err := getProduct(ctx, products, r.ProductID)
		if err != nil {
			return nil, models.Money{}, err
		}
		if p.Stock < r.PurchaseAmount {
			return nil, models.Money{}, fmt.Errorf("%w for product: %s", errs.ErrInsufficientStock, p.Name)
		}
		items = append(items, models.LineItem{
			Product:        p.ID,
			PurchaseAmount: r.PurchaseAmount,
			UnitPrice:      p.Price,
			Farmer:         p.Farmer,
		})
	}
	return items, models.Total(items), nil
}

func getProduct(ctx context.Context, products store.ProductStore, id string) (*models.Product, error) {
	p, err := products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", errs.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}
	return p, nil
}
