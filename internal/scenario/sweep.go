package scenario

import (
	"fmt"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/policy"
)

// Driver sweeps lead times and service levels through the policy calculator.
type Driver struct {
	calculator *policy.Calculator
	forecaster forecast.Forecaster
}

// NewDriver creates a driver. forecaster may be nil when templates always
// carry a forecast covering the longest lead time.
func NewDriver(calculator *policy.Calculator, forecaster forecast.Forecaster) *Driver {
	return &Driver{calculator: calculator, forecaster: forecaster}
}

// Sweep returns one decision per (lead time, service level) pair, lead time
// major, in the order given. The forecast and on-hand inventory of template
// are held fixed; if the forecast is too short for the longest lead time it is
// recomputed once before the sweep rather than per combination.
func (d *Driver) Sweep(template domain.PolicyInputs, leadTimes []int, serviceLevels []float64) ([]domain.PolicyDecision, error) {
	if len(leadTimes) == 0 || len(serviceLevels) == 0 {
		return nil, fmt.Errorf("%w: sweep needs at least one lead time and one service level", domain.ErrInvalidParameter)
	}

	maxLead := 0
	for _, lt := range leadTimes {
		if lt > maxLead {
			maxLead = lt
		}
	}

	base := template
	if maxLead > len(base.Forecast.Weekly) && base.Series != nil && d.forecaster != nil {
		fc, err := d.forecaster.Forecast(*base.Series, maxLead)
		if err != nil {
			return nil, fmt.Errorf("forecast for sweep: %w", err)
		}
		base.Forecast = fc
	}

	decisions := make([]domain.PolicyDecision, 0, len(leadTimes)*len(serviceLevels))
	for _, lt := range leadTimes {
		for _, sl := range serviceLevels {
			in := base
			in.LeadTimeWeeks = lt
			in.ServiceLevel = sl

			decision, err := d.calculator.ComputePolicy(in)
			if err != nil {
				return nil, fmt.Errorf("scenario lead_time=%d service_level=%v: %w", lt, sl, err)
			}
			decisions = append(decisions, decision)
		}
	}

	return decisions, nil
}
