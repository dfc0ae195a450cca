package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
)

// ForecastProvider yields forecasts for a series, possibly from a cache.
type ForecastProvider interface {
	ForecastSeries(ctx context.Context, series domain.DemandSeries, horizon int) (domain.ForecastResult, error)
}

type directForecasts struct {
	forecaster forecast.Forecaster
}

// DirectForecasts adapts a forecaster that needs no context.
func DirectForecasts(f forecast.Forecaster) ForecastProvider {
	return directForecasts{forecaster: f}
}

func (d directForecasts) ForecastSeries(_ context.Context, series domain.DemandSeries, horizon int) (domain.ForecastResult, error) {
	return d.forecaster.Forecast(series, horizon)
}

// PipelineConfig holds configuration for a recommendation run
type PipelineConfig struct {
	Name           string
	WorkerCount    int       // Number of concurrent workers
	LeadTimes      []int     // Lead times swept for every SKU, in weeks
	ServiceLevels  []float64 // Service levels swept for every SKU
	DefaultHorizon int       // Minimum forecast horizon in weeks
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig(name string) PipelineConfig {
	return PipelineConfig{
		Name:           name,
		WorkerCount:    4,
		LeadTimes:      []int{2, 4, 6},
		ServiceLevels:  []float64{0.90, 0.95, 0.99},
		DefaultHorizon: 8,
	}
}

func (c PipelineConfig) maxLeadTime() int {
	longest := 0
	for _, lt := range c.LeadTimes {
		if lt > longest {
			longest = lt
		}
	}
	return longest
}

// forecastHorizon covers every swept lead time.
func (c PipelineConfig) forecastHorizon() int {
	h := c.maxLeadTime()
	if c.DefaultHorizon > h {
		h = c.DefaultHorizon
	}
	if h < 1 {
		h = 1
	}
	return h
}

// PipelineStatus represents the current state of a run
type PipelineStatus string

const (
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
)

// SKUOutcome is the result for one SKU: either a set of decisions or the
// reason the SKU was excluded.
type SKUOutcome struct {
	SKU       string                  `json:"sku"`
	Status    domain.OutcomeStatus    `json:"status"`
	Reason    domain.ErrorKind        `json:"reason,omitempty"`
	Detail    string                  `json:"detail,omitempty"`
	Forecast  *domain.ForecastResult  `json:"forecast,omitempty"`
	Backtest  *domain.BacktestReport  `json:"backtest,omitempty"`
	Decisions []domain.PolicyDecision `json:"decisions,omitempty"`
	Duration  time.Duration           `json:"duration"`
}

// RunResult tracks a single execution over a set of SKUs
type RunResult struct {
	Run      domain.RunSummary
	Status   PipelineStatus
	Outcomes []SKUOutcome // sorted by SKU
}

// Decisions flattens every recommended scenario into records.
func (r RunResult) Decisions() []domain.DecisionRecord {
	var out []domain.DecisionRecord
	for _, o := range r.Outcomes {
		for _, d := range o.Decisions {
			out = append(out, domain.NewDecisionRecord(d))
		}
	}
	return out
}

// Exclusions lists the excluded SKUs with their reason.
func (r RunResult) Exclusions() []domain.ExclusionRecord {
	var out []domain.ExclusionRecord
	for _, o := range r.Outcomes {
		if o.Status == domain.OutcomeExcluded {
			out = append(out, domain.ExclusionRecord{SKU: o.SKU, Reason: o.Reason, Detail: o.Detail})
		}
	}
	return out
}

// ExclusionsByReason counts excluded SKUs per reason.
func (r RunResult) ExclusionsByReason() map[domain.ErrorKind]int {
	counts := make(map[domain.ErrorKind]int)
	for _, o := range r.Outcomes {
		if o.Status == domain.OutcomeExcluded {
			counts[o.Reason]++
		}
	}
	return counts
}

func sortOutcomes(outcomes []SKUOutcome) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].SKU < outcomes[j].SKU })
}
