package stock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"farmgate/errs"
	"farmgate/models"
	"farmgate/store"
	"farmgate/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *memstore.Store, id string, stock int) {
	t.Helper()
	require.NoError(t, s.CreateProduct(context.Background(), &models.Product{
		ID: id, Name: id, Price: models.MoneyFromInt(5), Stock: stock,
	}))
}

func stockOf(t *testing.T, s *memstore.Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestReserve(t *testing.T) {
	s := memstore.New()
	seed(t, s, "p1", 10)
	l := NewLedger(s)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, "p1", 3))
	assert.Equal(t, 7, stockOf(t, s, "p1"))

	assert.ErrorIs(t, l.Reserve(ctx, "p1", 8), errs.ErrInsufficientStock)
	assert.Equal(t, 7, stockOf(t, s, "p1"))

	assert.ErrorIs(t, l.Reserve(ctx, "ghost", 1), errs.ErrProductNotFound)
	assert.ErrorIs(t, l.Reserve(ctx, "p1", 0), errs.ErrInvalidInput)
	assert.ErrorIs(t, l.Reserve(ctx, "p1", -2), errs.ErrInvalidInput)

	require.NoError(t, l.Release(ctx, "p1", 3))
	assert.Equal(t, 10, stockOf(t, s, "p1"))
}

func TestReserveExactStock(t *testing.T) {
	s := memstore.New()
	seed(t, s, "p1", 4)
	l := NewLedger(s)

	require.NoError(t, l.Reserve(context.Background(), "p1", 4))
	assert.Equal(t, 0, stockOf(t, s, "p1"))
}

func TestReserveAllRollsBack(t *testing.T) {
	s := memstore.New()
	seed(t, s, "a", 10)
	seed(t, s, "b", 10)
	seed(t, s, "c", 1)
	l := NewLedger(s)

	err := l.ReserveAll(context.Background(), []models.LineItem{
		{Product: "a", PurchaseAmount: 2},
		{Product: "b", PurchaseAmount: 5},
		{Product: "c", PurchaseAmount: 2},
	})
	assert.ErrorIs(t, err, errs.ErrInsufficientStock)
	assert.Equal(t, 10, stockOf(t, s, "a"))
	assert.Equal(t, 10, stockOf(t, s, "b"))
	assert.Equal(t, 1, stockOf(t, s, "c"))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	s := memstore.New()
	seed(t, s, "p1", 10)
	l := NewLedger(s)

	var wg sync.WaitGroup
	var ok, short atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Reserve(context.Background(), "p1", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, errs.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 15, short.Load())
	assert.Equal(t, 0, stockOf(t, s, "p1"))
}

type failingStore struct {
	store.StockStore
	released []string
}

func (f *failingStore) DecrementStock(context.Context, string, int) error {
	return errors.New("connection reset")
}

func (f *failingStore) IncrementStock(_ context.Context, id string, _ int) error {
	f.released = append(f.released, id)
	return nil
}

func TestReserveStoreErrorIsInternal(t *testing.T) {
	l := NewLedger(&failingStore{})
	err := l.Reserve(context.Background(), "p1", 1)
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}
