// backend-go/internal/domain/models.go
package domain

import (
	"math"
	"time"
)

// ForecastResult is the point forecast for the next Horizon weeks of a SKU
// together with the residual-based uncertainty of the strategy that made it.
type ForecastResult struct {
	SKU          string    `json:"sku"`
	Strategy     string    `json:"strategy"`
	Horizon      int       `json:"horizon"`
	FirstWeek    time.Time `json:"first_week"`
	Weekly       []float64 `json:"forecast_weekly"`
	Sigma        *float64  `json:"uncertainty_sigma"` // nil when undefined
	Residuals    []float64 `json:"residuals"`
	HistoryWeeks int       `json:"history_weeks"`
}

// Uncertainty returns σ and whether it is defined.
func (f ForecastResult) Uncertainty() (float64, bool) {
	if f.Sigma == nil {
		return 0, false
	}
	return *f.Sigma, true
}

// Band returns the per-week prediction interval μ ± zσ, with the lower bound
// floored at zero. Both slices are nil when σ is undefined.
func (f ForecastResult) Band(z float64) (lower, upper []float64) {
	sigma, ok := f.Uncertainty()
	if !ok {
		return nil, nil
	}
	lower = make([]float64, len(f.Weekly))
	upper = make([]float64, len(f.Weekly))
	for i, mu := range f.Weekly {
		lower[i] = math.Max(0, mu-z*sigma)
		upper[i] = mu + z*sigma
	}
	return lower, upper
}

// BacktestStatus marks whether a backtest produced any evaluation origin.
type BacktestStatus string

const (
	BacktestEvaluated   BacktestStatus = "evaluated"
	BacktestUnevaluable BacktestStatus = "unevaluable"
)

// BacktestPoint is one (forecast, actual) pair at a rolling origin.
type BacktestPoint struct {
	Origin   time.Time `json:"origin"`
	Step     int       `json:"step"`
	Forecast float64   `json:"forecast"`
	Actual   float64   `json:"actual"`
	Error    float64   `json:"error"` // actual - forecast
}

// BacktestReport aggregates out-of-sample errors of a strategy over history.
type BacktestReport struct {
	SKU      string          `json:"sku"`
	Strategy string          `json:"strategy"`
	Horizon  int             `json:"horizon"`
	Window   int             `json:"window"`
	Origins  int             `json:"origins"`
	Points   []BacktestPoint `json:"points"`
	MAE      float64         `json:"mae"`
	RMSE     float64         `json:"rmse"`
	Status   BacktestStatus  `json:"status"`
}

// Evaluable reports whether at least one origin was scored.
func (r BacktestReport) Evaluable() bool {
	return r.Status == BacktestEvaluated
}

// Errors returns the residuals of every scored pair in origin order.
func (r BacktestReport) Errors() []float64 {
	errs := make([]float64, len(r.Points))
	for i, p := range r.Points {
		errs[i] = p.Error
	}
	return errs
}

// PolicyInputs are the operating parameters of one reorder decision.
// Series is optional and only needed when Forecast does not cover the lead time.
type PolicyInputs struct {
	LeadTimeWeeks int
	ServiceLevel  float64
	OnHand        float64
	Forecast      ForecastResult
	Series        *DemandSeries
}

// PolicyDecision is the reorder recommendation for one SKU and scenario,
// echoing every input it was derived from.
type PolicyDecision struct {
	SKU                    string    `json:"sku"`
	LeadTimeWeeks          int       `json:"lead_time_weeks"`
	ServiceLevel           float64   `json:"service_level"`
	OnHand                 float64   `json:"on_hand"`
	Z                      float64   `json:"z"`
	Sigma                  float64   `json:"uncertainty_sigma"`
	ExpectedLeadTimeDemand float64   `json:"expected_lead_time_demand"`
	SafetyStock            float64   `json:"safety_stock"`
	ReorderPoint           float64   `json:"reorder_point"`
	OrderQuantity          float64   `json:"order_quantity"`
	ForecastWeekly         []float64 `json:"forecast_weekly"`
}
