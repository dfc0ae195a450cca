package forecast

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// ExponentialSmoothing is simple (level-only) exponential smoothing. The
// forecast is flat at the last smoothed level.
type ExponentialSmoothing struct {
	Alpha  float64
	Window int // minimum weeks before forecasting
}

func (e *ExponentialSmoothing) Name() string {
	return fmt.Sprintf("exp_smoothing(a=%.2f,w=%d)", e.Alpha, e.Window)
}

func (e *ExponentialSmoothing) MinHistory() int {
	if e.Window < 1 {
		return 1
	}
	return e.Window
}

func (e *ExponentialSmoothing) Predict(history []float64, horizon int) ([]float64, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	if e.Alpha <= 0 || e.Alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be in (0,1], got %v", domain.ErrInvalidParameter, e.Alpha)
	}
	if len(history) < e.MinHistory() {
		return nil, fmt.Errorf("%w: need %d weeks, have %d", domain.ErrInsufficientHistory, e.MinHistory(), len(history))
	}

	level := history[0]
	for _, y := range history[1:] {
		level = e.Alpha*y + (1-e.Alpha)*level
	}
	level = math.Max(0, level)

	out := make([]float64, horizon)
	for i := range out {
		out[i] = level
	}
	return out, nil
}

var _ Strategy = (*ExponentialSmoothing)(nil)
