// Package dataset reads weekly demand and on-hand files and writes decision
// exports.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Header aliases, matched case-insensitively.
var (
	skuColumns   = []string{"stockcode", "sku", "stock_code"}
	weekColumns  = []string{"weekstart", "week_start", "week"}
	unitsColumns = []string{"weekly_units", "units", "quantity"}
	onHandColumn = []string{"on_hand", "onhand", "current_inventory"}
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ReadResult holds the series built from a weekly demand file. SKUs whose
// rows break the input contract land in Rejected instead of Series.
type ReadResult struct {
	Series   []domain.DemandSeries
	Rejected map[string]error
}

// ReadWeekly parses StockCode,WeekStart,weekly_units rows. Rows may come in
// any order; they are grouped by SKU and sorted by week before validation.
func ReadWeekly(r io.Reader) (ReadResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return ReadResult{}, fmt.Errorf("weekly demand CSV is empty")
	}
	if err != nil {
		return ReadResult{}, fmt.Errorf("failed to read weekly demand header: %w", err)
	}

	cols, err := locate(header, skuColumns, weekColumns, unitsColumns)
	if err != nil {
		return ReadResult{}, fmt.Errorf("weekly demand CSV: %w", err)
	}
	skuIdx, weekIdx, unitsIdx := cols[0], cols[1], cols[2]

	grouped := make(map[string][]domain.WeekDemand)
	rejected := make(map[string]error)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return ReadResult{}, fmt.Errorf("weekly demand CSV row %d: %w", line, err)
		}

		sku := strings.TrimSpace(record[skuIdx])
		if sku == "" {
			continue
		}
		if _, bad := rejected[sku]; bad {
			continue
		}

		week, err := parseDate(record[weekIdx])
		if err != nil {
			rejected[sku] = fmt.Errorf("%w: row %d: %v", domain.ErrInvalidParameter, line, err)
			continue
		}
		units, err := strconv.ParseFloat(strings.TrimSpace(record[unitsIdx]), 64)
		if err != nil {
			rejected[sku] = fmt.Errorf("%w: row %d: invalid units %q", domain.ErrInvalidParameter, line, record[unitsIdx])
			continue
		}

		grouped[sku] = append(grouped[sku], domain.WeekDemand{WeekStart: week, Units: units})
	}

	skus := make([]string, 0, len(grouped))
	for sku := range grouped {
		if _, bad := rejected[sku]; !bad {
			skus = append(skus, sku)
		}
	}
	sort.Strings(skus)

	result := ReadResult{Rejected: rejected}
	for _, sku := range skus {
		weeks := grouped[sku]
		sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].WeekStart.Before(weeks[j].WeekStart) })

		series, err := domain.NewDemandSeries(sku, weeks)
		if err != nil {
			rejected[sku] = err
			continue
		}
		result.Series = append(result.Series, series)
	}

	return result, nil
}

// ReadOnHand parses sku,on_hand rows into a lookup. A SKU listed twice keeps
// the last value.
func ReadOnHand(r io.Reader) (map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read on-hand CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("on-hand CSV must have a header")
	}

	cols, err := locate(records[0], skuColumns, onHandColumn)
	if err != nil {
		return nil, fmt.Errorf("on-hand CSV: %w", err)
	}

	onHand := make(map[string]float64, len(records)-1)
	for i, record := range records[1:] {
		sku := strings.TrimSpace(record[cols[0]])
		if sku == "" {
			continue
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(record[cols[1]]), 64)
		if err != nil {
			return nil, fmt.Errorf("on-hand CSV row %d: invalid quantity %q", i+2, record[cols[1]])
		}
		onHand[sku] = qty
	}

	return onHand, nil
}

func locate(header []string, wanted ...[]string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	out := make([]int, len(wanted))
	for i, aliases := range wanted {
		found := -1
		for _, alias := range aliases {
			if idx, ok := index[alias]; ok {
				found = idx
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("missing column %s (have %v)", aliases[0], header)
		}
		out[i] = found
	}
	return out, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid week start " + strconv.Quote(raw))
}
