package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
)

// DemandRepository provides in-memory demand storage
type DemandRepository struct {
	mu       sync.RWMutex
	series   map[string]domain.DemandSeries
	rejected map[string]error
}

// NewDemandRepository creates a repository holding the given read result.
func NewDemandRepository(result dataset.ReadResult) *DemandRepository {
	r := &DemandRepository{
		series:   make(map[string]domain.DemandSeries, len(result.Series)),
		rejected: make(map[string]error, len(result.Rejected)),
	}
	for _, s := range result.Series {
		r.series[s.SKU()] = s
	}
	for sku, err := range result.Rejected {
		r.rejected[sku] = err
	}
	return r
}

// Verify interface compliance
var _ repository.DemandRepository = (*DemandRepository)(nil)

func (r *DemandRepository) ListSKUs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skus := make([]string, 0, len(r.series))
	for sku := range r.series {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus, nil
}

func (r *DemandRepository) GetSeries(ctx context.Context, sku string) (domain.DemandSeries, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.series[sku]; ok {
		return s, nil
	}
	if err, ok := r.rejected[sku]; ok {
		return domain.DemandSeries{}, err
	}
	return domain.DemandSeries{}, fmt.Errorf("%w: %s", domain.ErrSKUNotFound, sku)
}

func (r *DemandRepository) LoadAll(ctx context.Context) (dataset.ReadResult, error) {
	skus, _ := r.ListSKUs(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := dataset.ReadResult{
		Series:   make([]domain.DemandSeries, 0, len(skus)),
		Rejected: make(map[string]error, len(r.rejected)),
	}
	for _, sku := range skus {
		result.Series = append(result.Series, r.series[sku])
	}
	for sku, err := range r.rejected {
		result.Rejected[sku] = err
	}
	return result, nil
}

func (r *DemandRepository) SaveSeries(ctx context.Context, series []domain.DemandSeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range series {
		r.series[s.SKU()] = s
		delete(r.rejected, s.SKU())
	}
	return nil
}

// InventoryRepository provides in-memory on-hand storage
type InventoryRepository struct {
	mu     sync.RWMutex
	onHand map[string]float64
}

func NewInventoryRepository(onHand map[string]float64) *InventoryRepository {
	r := &InventoryRepository{onHand: make(map[string]float64, len(onHand))}
	for sku, qty := range onHand {
		r.onHand[sku] = qty
	}
	return r
}

var _ repository.InventoryRepository = (*InventoryRepository)(nil)

func (r *InventoryRepository) OnHand(ctx context.Context) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.onHand))
	for sku, qty := range r.onHand {
		out[sku] = qty
	}
	return out, nil
}

func (r *InventoryRepository) SaveOnHand(ctx context.Context, onHand map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sku, qty := range onHand {
		r.onHand[sku] = qty
	}
	return nil
}
