package policy

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// ZTable maps common service levels to their one-sided standard-normal
// quantile. Levels missing from the table fall back to the inverse normal CDF.
type ZTable map[float64]float64

// DefaultZTable returns the tabulated service levels used across reports.
func DefaultZTable() ZTable {
	return ZTable{
		0.80: 0.8416,
		0.85: 1.0364,
		0.90: 1.2816,
		0.95: 1.6449,
		0.97: 1.8808,
		0.98: 2.0537,
		0.99: 2.3263,
	}
}

// tableTolerance absorbs float noise from parsed or computed service levels.
const tableTolerance = 1e-9

// Z returns the quantile for serviceLevel, which must lie in (0,1).
func (t ZTable) Z(serviceLevel float64) (float64, error) {
	if math.IsNaN(serviceLevel) || serviceLevel <= 0 || serviceLevel >= 1 {
		return 0, fmt.Errorf("%w: service level must be in (0,1), got %v", domain.ErrInvalidParameter, serviceLevel)
	}
	for level, z := range t {
		if math.Abs(level-serviceLevel) <= tableTolerance {
			return z, nil
		}
	}
	return InverseNormalCDF(serviceLevel), nil
}

// InverseNormalCDF is the standard-normal quantile function.
func InverseNormalCDF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
