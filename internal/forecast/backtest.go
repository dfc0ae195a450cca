package forecast

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Backtest replays strategy over series at every rolling origin that has
// MinHistory weeks of trailing history and horizon weeks of future actuals.
// The strategy only ever sees weeks strictly before the origin.
//
// When no origin qualifies the report is marked unevaluable and the returned
// error wraps domain.ErrUnevaluable.
func Backtest(series domain.DemandSeries, horizon int, strategy Strategy) (domain.BacktestReport, error) {
	report := domain.BacktestReport{
		SKU:      series.SKU(),
		Strategy: strategy.Name(),
		Horizon:  horizon,
		Window:   strategy.MinHistory(),
		Status:   domain.BacktestUnevaluable,
	}
	if err := validateHorizon(horizon); err != nil {
		return report, err
	}

	values := series.Values()
	n := len(values)
	first := strategy.MinHistory()
	last := n - horizon // inclusive; origin is the index of the first forecast week
	if last < first {
		return report, fmt.Errorf("%w: sku %s has %d weeks, need %d for horizon %d",
			domain.ErrUnevaluable, series.SKU(), n, first+horizon, horizon)
	}

	report.Points = make([]domain.BacktestPoint, 0, (last-first+1)*horizon)
	var absSum, sqSum float64
	// bounded by n: origin advances one week per iteration and stops at last
	for origin := first; origin <= last && origin < n; origin++ {
		predicted, err := strategy.Predict(values[:origin:origin], horizon)
		if err != nil {
			return report, fmt.Errorf("sku %s origin %d: %w", series.SKU(), origin, err)
		}
		if len(predicted) != horizon {
			return report, fmt.Errorf("sku %s origin %d: strategy %s returned %d values for horizon %d",
				series.SKU(), origin, strategy.Name(), len(predicted), horizon)
		}

		originWeek := series.WeekStart(origin)
		for step := 0; step < horizon; step++ {
			f := math.Max(0, predicted[step])
			actual := values[origin+step]
			e := actual - f
			absSum += math.Abs(e)
			sqSum += e * e
			report.Points = append(report.Points, domain.BacktestPoint{
				Origin:   originWeek,
				Step:     step + 1,
				Forecast: f,
				Actual:   actual,
				Error:    e,
			})
		}
		report.Origins++
	}

	count := float64(len(report.Points))
	report.MAE = absSum / count
	report.RMSE = math.Sqrt(sqSum / count)
	report.Status = domain.BacktestEvaluated
	return report, nil
}

// CompareWindows backtests a moving average for each candidate window and
// orders the reports best first: lowest RMSE, then MAE, then smaller window.
// Unevaluable windows are kept at the end so callers can see why they dropped.
func CompareWindows(series domain.DemandSeries, horizon int, windows []int, seasonLength int) ([]domain.BacktestReport, error) {
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: no candidate windows", domain.ErrInvalidParameter)
	}

	reports := make([]domain.BacktestReport, 0, len(windows))
	for _, w := range windows {
		if w < 1 {
			return nil, fmt.Errorf("%w: window must be >= 1, got %d", domain.ErrInvalidParameter, w)
		}
		ma := &MovingAverage{Window: w, SeasonLength: seasonLength}
		report, err := Backtest(series, horizon, ma)
		if err != nil && domain.KindOf(err) != domain.KindUnevaluable {
			return nil, err
		}
		report.Window = w
		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.Evaluable() != b.Evaluable() {
			return a.Evaluable()
		}
		if a.RMSE != b.RMSE {
			return a.RMSE < b.RMSE
		}
		if a.MAE != b.MAE {
			return a.MAE < b.MAE
		}
		return a.Window < b.Window
	})
	return reports, nil
}
