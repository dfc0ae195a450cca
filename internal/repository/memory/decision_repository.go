package memory

import (
	"context"
	"sync"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
)

// DecisionRepository keeps every saved run in memory, newest last.
type DecisionRepository struct {
	mu         sync.RWMutex
	runs       []domain.RunSummary
	decisions  map[string][]domain.DecisionRecord
	exclusions map[string][]domain.ExclusionRecord
}

func NewDecisionRepository() *DecisionRepository {
	return &DecisionRepository{
		decisions:  make(map[string][]domain.DecisionRecord),
		exclusions: make(map[string][]domain.ExclusionRecord),
	}
}

var _ repository.DecisionRepository = (*DecisionRepository)(nil)

func (r *DecisionRepository) SaveOutcomes(ctx context.Context, run domain.RunSummary, decisions []domain.DecisionRecord, exclusions []domain.ExclusionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, run)
	r.decisions[run.ID] = append([]domain.DecisionRecord(nil), decisions...)
	r.exclusions[run.ID] = append([]domain.ExclusionRecord(nil), exclusions...)
	return nil
}

// LatestDecisions returns the decisions for sku from the most recent run that
// produced any.
func (r *DecisionRepository) LatestDecisions(ctx context.Context, sku string) ([]domain.DecisionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.runs) - 1; i >= 0; i-- {
		var out []domain.DecisionRecord
		for _, d := range r.decisions[r.runs[i].ID] {
			if d.SKU == sku {
				out = append(out, d)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}

// Runs returns the saved run summaries in save order.
func (r *DecisionRepository) Runs() []domain.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.RunSummary(nil), r.runs...)
}

// Exclusions returns the exclusions saved for a run.
func (r *DecisionRepository) Exclusions(runID string) []domain.ExclusionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ExclusionRecord(nil), r.exclusions[runID]...)
}
