package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

func series(t *testing.T, sku string, values ...float64) domain.DemandSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	weeks := make([]domain.WeekDemand, len(values))
	for i, v := range values {
		weeks[i] = domain.WeekDemand{WeekStart: start.Add(time.Duration(i) * domain.Week), Units: v}
	}
	s, err := domain.NewDemandSeries(sku, weeks)
	require.NoError(t, err)
	return s
}

func TestDemandRepository(t *testing.T) {
	ctx := context.Background()
	rejectErr := errors.New("bad rows")
	repo := NewDemandRepository(dataset.ReadResult{
		Series:   []domain.DemandSeries{series(t, "B", 1, 2), series(t, "A", 3)},
		Rejected: map[string]error{"C": rejectErr},
	})

	skus, err := repo.ListSKUs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, skus)

	got, err := repo.GetSeries(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got.Values())

	_, err = repo.GetSeries(ctx, "C")
	assert.ErrorIs(t, err, rejectErr)

	_, err = repo.GetSeries(ctx, "Z")
	assert.ErrorIs(t, err, domain.ErrSKUNotFound)

	require.NoError(t, repo.SaveSeries(ctx, []domain.DemandSeries{series(t, "C", 4, 4, 4)}))
	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all.Series, 3)
	assert.Equal(t, "C", all.Series[2].SKU())
	assert.Empty(t, all.Rejected)
}

func TestInventoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository(map[string]float64{"A": 5})
	require.NoError(t, repo.SaveOnHand(ctx, map[string]float64{"B": 7, "A": 6}))

	onHand, err := repo.OnHand(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 6, "B": 7}, onHand)

	onHand["A"] = 100
	again, _ := repo.OnHand(ctx)
	assert.Equal(t, 6.0, again["A"])
}

func TestDecisionRepository_LatestDecisions(t *testing.T) {
	ctx := context.Background()
	repo := NewDecisionRepository()

	require.NoError(t, repo.SaveOutcomes(ctx, domain.RunSummary{ID: "r1"},
		[]domain.DecisionRecord{{SKU: "A", LeadTimeWeeks: 2}, {SKU: "B", LeadTimeWeeks: 2}}, nil))
	require.NoError(t, repo.SaveOutcomes(ctx, domain.RunSummary{ID: "r2"},
		[]domain.DecisionRecord{{SKU: "A", LeadTimeWeeks: 4}},
		[]domain.ExclusionRecord{{SKU: "B", Reason: domain.KindUnevaluable}}))

	a, err := repo.LatestDecisions(ctx, "A")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, 4, a[0].LeadTimeWeeks)

	b, err := repo.LatestDecisions(ctx, "B")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, 2, b[0].LeadTimeWeeks)

	assert.Len(t, repo.Runs(), 2)
	assert.Equal(t, domain.KindUnevaluable, repo.Exclusions("r2")[0].Reason)
}
