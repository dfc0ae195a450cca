package forecast

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// MovingAverage is a seasonal-naive forecast smoothed over the Window most
// recent comparable weeks. Comparable weeks of a target week T are T-S, T-2S, ...
// for season length S. With S = 1 every horizon step gets the mean of the last
// Window weeks, so the forecast is flat and never extrapolates a trend.
type MovingAverage struct {
	Window       int
	SeasonLength int
}

// NewMovingAverage builds the strategy from the engine config.
func NewMovingAverage(cfg Config) *MovingAverage {
	season := cfg.SeasonLength
	if season < 1 {
		season = 1
	}
	return &MovingAverage{Window: cfg.SmoothingWindow, SeasonLength: season}
}

func (m *MovingAverage) Name() string {
	return fmt.Sprintf("moving_average(w=%d,s=%d)", m.Window, m.season())
}

func (m *MovingAverage) MinHistory() int {
	return m.Window * m.season()
}

func (m *MovingAverage) Predict(history []float64, horizon int) ([]float64, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	if m.Window < 1 {
		return nil, fmt.Errorf("%w: window must be >= 1, got %d", domain.ErrInvalidParameter, m.Window)
	}
	n := len(history)
	if n < m.MinHistory() {
		return nil, fmt.Errorf("%w: need %d weeks, have %d", domain.ErrInsufficientHistory, m.MinHistory(), n)
	}

	season := m.season()
	out := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		target := n - 1 + h
		// first comparable lag that lands inside the observed history
		k := (h + season - 1) / season
		var sum float64
		for i := 0; i < m.Window; i++ {
			sum += history[target-(k+i)*season]
		}
		out[h-1] = math.Max(0, sum/float64(m.Window))
	}
	return out, nil
}

func (m *MovingAverage) season() int {
	if m.SeasonLength < 1 {
		return 1
	}
	return m.SeasonLength
}

var _ Strategy = (*MovingAverage)(nil)
