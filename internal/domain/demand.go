// backend-go/internal/domain/demand.go
package domain

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// Week is the spacing between consecutive entries of a demand series.
const Week = 7 * 24 * time.Hour

// WeekDemand is the quantity sold for one SKU in the week starting at WeekStart.
type WeekDemand struct {
	WeekStart time.Time `json:"week_start" db:"week_start"`
	Units     float64   `json:"units" db:"units"`
}

// DemandSeries is the contiguous weekly demand history of one SKU.
// It is built once by NewDemandSeries and never modified afterwards.
type DemandSeries struct {
	sku   string
	weeks []WeekDemand
}

// NewDemandSeries validates and copies weeks into an immutable series.
// Weeks must be ordered, exactly one week apart and carry non-negative units;
// gaps have to be filled with explicit zero weeks by the caller.
func NewDemandSeries(sku string, weeks []WeekDemand) (DemandSeries, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return DemandSeries{}, fmt.Errorf("%w: sku cannot be empty", ErrInvalidParameter)
	}

	copied := make([]WeekDemand, len(weeks))
	for i, w := range weeks {
		if math.IsNaN(w.Units) || math.IsInf(w.Units, 0) || w.Units < 0 {
			return DemandSeries{}, fmt.Errorf("%w: sku %s week %s has invalid units %v",
				ErrInvalidParameter, sku, w.WeekStart.Format("2006-01-02"), w.Units)
		}
		start := w.WeekStart.UTC().Truncate(24 * time.Hour)
		if i > 0 {
			prev := copied[i-1].WeekStart
			if !start.Equal(prev.Add(Week)) {
				return DemandSeries{}, fmt.Errorf("%w: sku %s weeks not contiguous between %s and %s",
					ErrInvalidParameter, sku, prev.Format("2006-01-02"), start.Format("2006-01-02"))
			}
		}
		copied[i] = WeekDemand{WeekStart: start, Units: w.Units}
	}

	return DemandSeries{sku: sku, weeks: copied}, nil
}

// SKU returns the series identifier.
func (s DemandSeries) SKU() string {
	return s.sku
}

// Len returns the number of weeks of history.
func (s DemandSeries) Len() int {
	return len(s.weeks)
}

// Values returns a copy of the weekly quantities, oldest first.
func (s DemandSeries) Values() []float64 {
	values := make([]float64, len(s.weeks))
	for i, w := range s.weeks {
		values[i] = w.Units
	}
	return values
}

// Weeks returns a copy of the underlying weeks.
func (s DemandSeries) Weeks() []WeekDemand {
	return append([]WeekDemand(nil), s.weeks...)
}

// WeekStart returns the start date of the i-th week. Indices past the end of
// the history are projected forward in whole weeks.
func (s DemandSeries) WeekStart(i int) time.Time {
	if len(s.weeks) == 0 {
		return time.Time{}
	}
	if i < len(s.weeks) {
		return s.weeks[i].WeekStart
	}
	last := s.weeks[len(s.weeks)-1].WeekStart
	return last.Add(time.Duration(i-len(s.weeks)+1) * Week)
}

// NextWeekStart is the first week after the observed history.
func (s DemandSeries) NextWeekStart() time.Time {
	return s.WeekStart(len(s.weeks))
}

// Fingerprint identifies the exact contents of the series. Two series with the
// same SKU, start week and quantities share a fingerprint.
func (s DemandSeries) Fingerprint() string {
	h := sha1.New()
	h.Write([]byte(s.sku))
	buf := make([]byte, 8)
	if len(s.weeks) > 0 {
		binary.BigEndian.PutUint64(buf, uint64(s.weeks[0].WeekStart.Unix()))
		h.Write(buf)
	}
	for _, w := range s.weeks {
		binary.BigEndian.PutUint64(buf, math.Float64bits(w.Units))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
