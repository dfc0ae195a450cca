package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

var firstMonday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mustSeries(t *testing.T, sku string, values ...float64) domain.DemandSeries {
	t.Helper()
	weeks := make([]domain.WeekDemand, len(values))
	for i, v := range values {
		weeks[i] = domain.WeekDemand{WeekStart: firstMonday.Add(time.Duration(i) * domain.Week), Units: v}
	}
	series, err := domain.NewDemandSeries(sku, weeks)
	require.NoError(t, err)
	return series
}

func newBaseline(t *testing.T, cfg Config) *Baseline {
	t.Helper()
	b, err := NewBaseline(nil, cfg)
	require.NoError(t, err)
	return b
}

// spyStrategy records how much history each Predict call received.
type spyStrategy struct {
	inner    Strategy
	lengths  []int
	lastSeen []float64
}

func (s *spyStrategy) Name() string    { return "spy" }
func (s *spyStrategy) MinHistory() int { return s.inner.MinHistory() }
func (s *spyStrategy) Predict(history []float64, horizon int) ([]float64, error) {
	s.lengths = append(s.lengths, len(history))
	s.lastSeen = append(s.lastSeen, history[len(history)-1])
	return s.inner.Predict(history, horizon)
}

func TestMovingAverage_FlatMeanOfTrailingWindow(t *testing.T) {
	ma := &MovingAverage{Window: 4, SeasonLength: 1}

	got, err := ma.Predict([]float64{10, 20, 30, 40, 50}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{35, 35, 35}, got)
	assert.Equal(t, "moving_average(w=4,s=1)", ma.Name())
}

func TestMovingAverage_SeasonalComparableWeeks(t *testing.T) {
	ma := &MovingAverage{Window: 2, SeasonLength: 2}

	got, err := ma.Predict([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	// week 7 ~ weeks 5,3; week 8 ~ weeks 6,4; week 9 ~ weeks 5,3
	assert.Equal(t, []float64{4, 5, 4}, got)
	assert.Equal(t, 4, ma.MinHistory())
}

func TestExponentialSmoothing_Predict(t *testing.T) {
	es := &ExponentialSmoothing{Alpha: 0.5, Window: 2}

	got, err := es.Predict([]float64{10, 20}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{15, 15}, got)

	_, err = es.Predict([]float64{10}, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, err = (&ExponentialSmoothing{Alpha: 0, Window: 1}).Predict([]float64{1}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestNewStrategy(t *testing.T) {
	cfg := DefaultConfig()

	s, err := NewStrategy("", cfg, 0.3)
	require.NoError(t, err)
	assert.IsType(t, &MovingAverage{}, s)

	s, err = NewStrategy(StrategyExpSmoothing, cfg, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 4, s.MinHistory())

	_, err = NewStrategy("arima", cfg, 0.3)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestForecast_InsufficientHistoryBelowWindow(t *testing.T) {
	b := newBaseline(t, DefaultConfig())

	for n := 0; n < 4; n++ {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(10 * (i + 1))
		}
		series := mustSeries(t, "SKU-1", values...)

		_, err := b.Forecast(series, 4)
		require.Error(t, err, "length %d", n)
		assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
		assert.Equal(t, domain.KindInsufficientHistory, domain.KindOf(err))
	}
}

func TestForecast_MinimumHistoryAboveWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinimumHistoryWeeks = 8
	b := newBaseline(t, cfg)

	_, err := b.Forecast(mustSeries(t, "SKU-1", 1, 2, 3, 4, 5, 6, 7), 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestForecast_InvalidHorizon(t *testing.T) {
	b := newBaseline(t, DefaultConfig())

	_, err := b.Forecast(mustSeries(t, "SKU-1", 1, 2, 3, 4, 5), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestForecast_NonNegative(t *testing.T) {
	b := newBaseline(t, DefaultConfig())
	series := mustSeries(t, "SPIKY", 0, 0, 0, 40, 0, 0, 0, 0, 0, 120, 0, 0, 3, 0)

	result, err := b.Forecast(series, 8)
	require.NoError(t, err)
	require.Len(t, result.Weekly, 8)
	for _, v := range result.Weekly {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.Equal(t, series.NextWeekStart(), result.FirstWeek)
	assert.Equal(t, 14, result.HistoryWeeks)
}

func TestForecast_SigmaIsOneStepBacktestRMSE(t *testing.T) {
	b := newBaseline(t, DefaultConfig())
	series := mustSeries(t, "SKU-1", 10, 10, 10, 10, 20, 0)

	result, err := b.Forecast(series, 2)
	require.NoError(t, err)

	report, err := Backtest(series, 1, b.Strategy())
	require.NoError(t, err)

	sigma, ok := result.Uncertainty()
	require.True(t, ok)
	assert.InDelta(t, report.RMSE, sigma, 1e-12)
	assert.InDelta(t, math.Sqrt((100+156.25)/2), sigma, 1e-12)
	assert.Equal(t, []float64{10, -12.5}, result.Residuals)
	assert.Equal(t, []float64{10, 10}, result.Weekly)
}

func TestForecast_SigmaUndefinedWithTooFewResiduals(t *testing.T) {
	b := newBaseline(t, DefaultConfig())

	// exactly the window: no one-step origin at all
	result, err := b.Forecast(mustSeries(t, "SKU-1", 5, 5, 5, 5), 4)
	require.NoError(t, err)
	_, ok := result.Uncertainty()
	assert.False(t, ok)
	assert.Nil(t, result.Sigma)
	assert.Empty(t, result.Residuals)

	// one residual is below the minimum sample size
	result, err = b.Forecast(mustSeries(t, "SKU-1", 5, 5, 5, 5, 7), 4)
	require.NoError(t, err)
	assert.Nil(t, result.Sigma)
	assert.Len(t, result.Residuals, 1)

	result, err = b.Forecast(mustSeries(t, "SKU-1", 5, 5, 5, 5, 7, 3), 4)
	require.NoError(t, err)
	assert.NotNil(t, result.Sigma)
}

func TestForecast_ZeroDemandHasZeroSigma(t *testing.T) {
	b := newBaseline(t, DefaultConfig())

	result, err := b.Forecast(mustSeries(t, "DEAD", 0, 0, 0, 0, 0, 0, 0), 3)
	require.NoError(t, err)
	sigma, ok := result.Uncertainty()
	require.True(t, ok)
	assert.Equal(t, 0.0, sigma)
	assert.Equal(t, []float64{0, 0, 0}, result.Weekly)
}

func TestBacktest_OriginCount(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		horizon   int
		want      int
		evaluable bool
	}{
		{"one step", 10, 1, 6, true},
		{"three steps", 10, 3, 4, true},
		{"single origin", 7, 3, 1, true},
		{"no origin", 6, 3, 0, false},
		{"shorter than window", 3, 1, 0, false},
	}

	ma := &MovingAverage{Window: 4, SeasonLength: 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, tt.length)
			for i := range values {
				values[i] = float64(i % 3)
			}
			series := mustSeries(t, "SKU-1", values...)

			report, err := Backtest(series, tt.horizon, ma)
			if !tt.evaluable {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrUnevaluable)
				assert.Equal(t, domain.BacktestUnevaluable, report.Status)
				assert.False(t, report.Evaluable())
				assert.Zero(t, report.Origins)
				assert.Empty(t, report.Points)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.length-4-tt.horizon+1, report.Origins)
			assert.Equal(t, tt.want, report.Origins)
			assert.Len(t, report.Points, tt.want*tt.horizon)
			assert.True(t, report.Evaluable())
		})
	}
}

func TestBacktest_PooledErrors(t *testing.T) {
	series := mustSeries(t, "SKU-1", 10, 10, 10, 10, 20, 0, 30)

	report, err := Backtest(series, 2, &MovingAverage{Window: 4, SeasonLength: 1})
	require.NoError(t, err)

	// origin 4 predicts 10 for weeks (20, 0); origin 5 predicts 12.5 for weeks (0, 30)
	require.Equal(t, 2, report.Origins)
	errs := report.Errors()
	assert.Equal(t, []float64{10, -10, -12.5, 17.5}, errs)
	assert.InDelta(t, (10+10+12.5+17.5)/4.0, report.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt((100+100+156.25+306.25)/4.0), report.RMSE, 1e-12)
	assert.Equal(t, series.WeekStart(4), report.Points[0].Origin)
	assert.Equal(t, 2, report.Points[1].Step)
}

func TestBacktest_NoLookAhead(t *testing.T) {
	series := mustSeries(t, "SKU-1", 1, 2, 3, 4, 5, 6, 7, 8, 9)
	spy := &spyStrategy{inner: &MovingAverage{Window: 3, SeasonLength: 1}}

	report, err := Backtest(series, 2, spy)
	require.NoError(t, err)

	require.Len(t, spy.lengths, report.Origins)
	for i, n := range spy.lengths {
		origin := 3 + i
		assert.Equal(t, origin, n, "history must end right before the origin")
		assert.Equal(t, float64(origin), spy.lastSeen[i])
	}
}

func TestBacktest_InvalidHorizon(t *testing.T) {
	_, err := Backtest(mustSeries(t, "SKU-1", 1, 2, 3, 4, 5), 0, &MovingAverage{Window: 2, SeasonLength: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestCompareWindows_OrdersByError(t *testing.T) {
	series := mustSeries(t, "SHIFT", 0, 0, 0, 0, 0, 0, 0, 0, 10, 10, 10, 10, 10, 10, 10, 10)

	reports, err := CompareWindows(series, 1, []int{8, 20, 4, 1}, 1)
	require.NoError(t, err)
	require.Len(t, reports, 4)

	windows := make([]int, len(reports))
	for i, r := range reports {
		windows[i] = r.Window
	}
	assert.Equal(t, []int{1, 4, 8, 20}, windows)
	assert.False(t, reports[3].Evaluable())
	assert.InDelta(t, math.Sqrt(100.0/15.0), reports[0].RMSE, 1e-12)

	_, err = CompareWindows(series, 1, nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = CompareWindows(series, 1, []int{0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SmoothingWindow = 0
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.MinResidualSamples = 0
	_, err := NewBaseline(nil, cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
