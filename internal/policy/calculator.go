package policy

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
)

// Calculator turns a forecast and operating parameters into a reorder policy.
//
//	safety stock  = z(service level) × σ × √(lead time)
//	reorder point = Σ forecast over the lead time + safety stock
//	order qty     = max(0, reorder point − on hand)
//
// The √(lead time) scaling assumes weekly forecast errors are independent and
// identically distributed within the lead time. It is a simplification, not a
// guarantee.
type Calculator struct {
	forecaster forecast.Forecaster
	zTable     ZTable
}

// NewCalculator creates a calculator. forecaster is used only to extend a
// forecast whose horizon is shorter than the requested lead time; it may be nil
// when callers always supply a long enough forecast.
func NewCalculator(forecaster forecast.Forecaster, zTable ZTable) *Calculator {
	if zTable == nil {
		zTable = DefaultZTable()
	}
	return &Calculator{forecaster: forecaster, zTable: zTable}
}

// ZTable returns the service level table of the calculator.
func (c *Calculator) ZTable() ZTable {
	return c.zTable
}

// ComputePolicy derives safety stock, reorder point and order quantity.
func (c *Calculator) ComputePolicy(in domain.PolicyInputs) (domain.PolicyDecision, error) {
	if err := validateInputs(in); err != nil {
		return domain.PolicyDecision{}, err
	}

	fc, err := c.coverLeadTime(in)
	if err != nil {
		return domain.PolicyDecision{}, err
	}

	sigma, ok := fc.Uncertainty()
	if !ok {
		return domain.PolicyDecision{}, fmt.Errorf("%w: sku %s has no residual estimate (%d weeks of history)",
			domain.ErrUndefinedUncertainty, fc.SKU, fc.HistoryWeeks)
	}

	z, err := c.zTable.Z(in.ServiceLevel)
	if err != nil {
		return domain.PolicyDecision{}, err
	}

	var demand float64
	for _, v := range fc.Weekly[:in.LeadTimeWeeks] {
		demand += v
	}

	// service levels below 0.5 have a negative z; the buffer never goes below zero
	safety := math.Max(0, z*sigma*math.Sqrt(float64(in.LeadTimeWeeks)))
	reorderPoint := demand + safety
	order := math.Max(0, reorderPoint-in.OnHand)

	return domain.PolicyDecision{
		SKU:                    fc.SKU,
		LeadTimeWeeks:          in.LeadTimeWeeks,
		ServiceLevel:           in.ServiceLevel,
		OnHand:                 in.OnHand,
		Z:                      z,
		Sigma:                  sigma,
		ExpectedLeadTimeDemand: demand,
		SafetyStock:            safety,
		ReorderPoint:           reorderPoint,
		OrderQuantity:          order,
		ForecastWeekly:         append([]float64(nil), fc.Weekly...),
	}, nil
}

// coverLeadTime returns a forecast spanning at least the lead time, asking the
// forecaster for a longer horizon when needed.
func (c *Calculator) coverLeadTime(in domain.PolicyInputs) (domain.ForecastResult, error) {
	if len(in.Forecast.Weekly) >= in.LeadTimeWeeks {
		return in.Forecast, nil
	}
	if in.Series == nil || c.forecaster == nil {
		return domain.ForecastResult{}, fmt.Errorf("%w: forecast covers %d weeks but lead time is %d and no series was given to extend it",
			domain.ErrInvalidParameter, len(in.Forecast.Weekly), in.LeadTimeWeeks)
	}
	fc, err := c.forecaster.Forecast(*in.Series, in.LeadTimeWeeks)
	if err != nil {
		return domain.ForecastResult{}, fmt.Errorf("extend forecast to %d weeks: %w", in.LeadTimeWeeks, err)
	}
	return fc, nil
}

func validateInputs(in domain.PolicyInputs) error {
	if in.LeadTimeWeeks < 1 {
		return fmt.Errorf("%w: lead time must be a positive number of weeks, got %d", domain.ErrInvalidParameter, in.LeadTimeWeeks)
	}
	if math.IsNaN(in.ServiceLevel) || in.ServiceLevel <= 0 || in.ServiceLevel >= 1 {
		return fmt.Errorf("%w: service level must be in (0,1), got %v", domain.ErrInvalidParameter, in.ServiceLevel)
	}
	if math.IsNaN(in.OnHand) || math.IsInf(in.OnHand, 0) || in.OnHand < 0 {
		return fmt.Errorf("%w: on-hand inventory must be a non-negative number, got %v", domain.ErrInvalidParameter, in.OnHand)
	}
	return nil
}
