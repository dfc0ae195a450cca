package forecast

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Baseline forecasts with a point Strategy and estimates σ from the
// one-step-ahead errors of that same strategy, replayed in-sample through
// Backtest. The uncertainty therefore always belongs to the strategy in use.
type Baseline struct {
	strategy Strategy
	cfg      Config
}

// NewBaseline creates a forecaster. A nil strategy defaults to the moving
// average described by cfg.
func NewBaseline(strategy Strategy, cfg Config) (*Baseline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = NewMovingAverage(cfg)
	}
	return &Baseline{strategy: strategy, cfg: cfg}, nil
}

// Strategy returns the point strategy used by the forecaster.
func (b *Baseline) Strategy() Strategy {
	return b.strategy
}

// Config returns the engine parameters the forecaster was built with.
func (b *Baseline) Config() Config {
	return b.cfg
}

// MinHistory is the shortest series Forecast accepts.
func (b *Baseline) MinHistory() int {
	if b.cfg.MinimumHistoryWeeks > b.strategy.MinHistory() {
		return b.cfg.MinimumHistoryWeeks
	}
	return b.strategy.MinHistory()
}

// Forecast returns the next horizon weeks of demand for series.
func (b *Baseline) Forecast(series domain.DemandSeries, horizon int) (domain.ForecastResult, error) {
	if err := validateHorizon(horizon); err != nil {
		return domain.ForecastResult{}, err
	}
	if series.Len() < b.MinHistory() {
		return domain.ForecastResult{}, fmt.Errorf("%w: sku %s has %d weeks, need %d",
			domain.ErrInsufficientHistory, series.SKU(), series.Len(), b.MinHistory())
	}

	weekly, err := b.strategy.Predict(series.Values(), horizon)
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("sku %s: %w", series.SKU(), err)
	}
	for i, v := range weekly {
		weekly[i] = math.Max(0, v)
	}

	result := domain.ForecastResult{
		SKU:          series.SKU(),
		Strategy:     b.strategy.Name(),
		Horizon:      horizon,
		FirstWeek:    series.NextWeekStart(),
		Weekly:       weekly,
		HistoryWeeks: series.Len(),
	}

	report, err := Backtest(series, 1, b.strategy)
	switch {
	case err == nil:
		result.Residuals = report.Errors()
		if len(result.Residuals) >= b.cfg.MinResidualSamples {
			sigma := report.RMSE
			result.Sigma = &sigma
		}
	case domain.KindOf(err) == domain.KindUnevaluable:
		// too short for a single one-step origin: σ stays undefined
	default:
		return domain.ForecastResult{}, err
	}

	return result, nil
}

var _ Forecaster = (*Baseline)(nil)
