package forecast

import (
	"fmt"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Strategy produces point forecasts from a plain history of weekly values.
// Implementations must only read history and must not retain it.
type Strategy interface {
	// Name identifies the strategy and its parameters, e.g. "moving_average(w=4,s=1)"
	Name() string

	// MinHistory is the number of weeks Predict needs before it can forecast
	MinHistory() int

	// Predict forecasts the horizon weeks following history
	Predict(history []float64, horizon int) ([]float64, error)
}

// Forecaster turns a demand series into a forecast with uncertainty.
type Forecaster interface {
	Forecast(series domain.DemandSeries, horizon int) (domain.ForecastResult, error)
}

// Config carries the engine parameters. It is passed by value into every call;
// there is no package-level configuration.
type Config struct {
	SmoothingWindow     int
	SeasonLength        int
	MinimumHistoryWeeks int
	MinResidualSamples  int
}

// DefaultConfig returns the baseline engine parameters.
func DefaultConfig() Config {
	return Config{
		SmoothingWindow:     4,
		SeasonLength:        1,
		MinimumHistoryWeeks: 4,
		MinResidualSamples:  2,
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	if c.SmoothingWindow < 1 {
		return fmt.Errorf("%w: smoothing window must be >= 1, got %d", domain.ErrInvalidParameter, c.SmoothingWindow)
	}
	if c.SeasonLength < 1 {
		return fmt.Errorf("%w: season length must be >= 1, got %d", domain.ErrInvalidParameter, c.SeasonLength)
	}
	if c.MinimumHistoryWeeks < 0 {
		return fmt.Errorf("%w: minimum history weeks cannot be negative, got %d", domain.ErrInvalidParameter, c.MinimumHistoryWeeks)
	}
	if c.MinResidualSamples < 1 {
		return fmt.Errorf("%w: minimum residual samples must be >= 1, got %d", domain.ErrInvalidParameter, c.MinResidualSamples)
	}
	return nil
}

func validateHorizon(horizon int) error {
	if horizon < 1 {
		return fmt.Errorf("%w: horizon must be >= 1, got %d", domain.ErrInvalidParameter, horizon)
	}
	return nil
}

// Strategy names accepted by NewStrategy.
const (
	StrategyMovingAverage = "moving_average"
	StrategyExpSmoothing  = "exp_smoothing"
)

// NewStrategy builds a named strategy from the engine config. alpha is only
// used by exponential smoothing.
func NewStrategy(name string, cfg Config, alpha float64) (Strategy, error) {
	switch name {
	case "", StrategyMovingAverage:
		return NewMovingAverage(cfg), nil
	case StrategyExpSmoothing:
		return &ExponentialSmoothing{Alpha: alpha, Window: cfg.SmoothingWindow}, nil
	default:
		return nil, fmt.Errorf("%w: unknown forecasting strategy %q", domain.ErrInvalidParameter, name)
	}
}
