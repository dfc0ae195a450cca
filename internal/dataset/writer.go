package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

// Export formats accepted by WriteDecisions.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

var decisionHeader = []string{
	"sku",
	"lead_time_weeks",
	"service_level",
	"on_hand",
	"expected_lead_time_demand",
	"safety_stock",
	"reorder_point",
	"order_quantity",
	"uncertainty_sigma",
	"forecast_weekly",
}

// WriteDecisions writes records in the given format.
func WriteDecisions(w io.Writer, format string, records []domain.DecisionRecord) error {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return WriteDecisionsCSV(w, records)
	case FormatJSONL, "json":
		return WriteDecisionsJSONL(w, records)
	default:
		return fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidParameter, format)
	}
}

// WriteDecisionsCSV writes one row per record. The weekly forecast is a
// semicolon separated list in the last column.
func WriteDecisionsCSV(w io.Writer, records []domain.DecisionRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(decisionHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		weekly := make([]string, len(rec.ForecastWeekly))
		for i, v := range rec.ForecastWeekly {
			weekly[i] = formatFloat(v)
		}

		row := []string{
			rec.SKU,
			strconv.Itoa(rec.LeadTimeWeeks),
			formatFloat(rec.ServiceLevel),
			formatFloat(rec.OnHand),
			formatFloat(rec.ExpectedLeadTimeDemand),
			formatFloat(rec.SafetyStock),
			formatFloat(rec.ReorderPoint),
			formatFloat(rec.OrderQuantity),
			formatFloat(rec.UncertaintySigma),
			strings.Join(weekly, ";"),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.SKU, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteDecisionsJSONL writes one JSON object per line.
func WriteDecisionsJSONL(w io.Writer, records []domain.DecisionRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record for %s: %w", rec.SKU, err)
		}
	}
	return nil
}

// WriteExclusionsCSV writes the SKUs that received no recommendation.
func WriteExclusionsCSV(w io.Writer, records []domain.ExclusionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"sku", "reason", "detail"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write([]string{rec.SKU, string(rec.Reason), rec.Detail}); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.SKU, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
