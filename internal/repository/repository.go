// backend-go/internal/repository/repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// DemandRepository serves weekly demand history per SKU.
type DemandRepository interface {
	ListSKUs(ctx context.Context) ([]string, error)
	// GetSeries returns domain.ErrSKUNotFound when the SKU has no history.
	GetSeries(ctx context.Context, sku string) (domain.DemandSeries, error)
	// LoadAll returns every valid series; SKUs breaking the input contract are
	// reported in Rejected.
	LoadAll(ctx context.Context) (dataset.ReadResult, error)
	SaveSeries(ctx context.Context, series []domain.DemandSeries) error
}

// InventoryRepository serves current on-hand quantities.
type InventoryRepository interface {
	OnHand(ctx context.Context) (map[string]float64, error)
	SaveOnHand(ctx context.Context, onHand map[string]float64) error
}

// DecisionRepository persists the output of a recommendation run.
type DecisionRepository interface {
	SaveOutcomes(ctx context.Context, run domain.RunSummary, decisions []domain.DecisionRecord, exclusions []domain.ExclusionRecord) error
	LatestDecisions(ctx context.Context, sku string) ([]domain.DecisionRecord, error)
}
