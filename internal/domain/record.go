package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// recordPlaces is the number of decimals kept in exported records.
const recordPlaces = 2

// DecisionRecord is the flat, serialisable form of a PolicyDecision handed to
// dashboards and reports.
type DecisionRecord struct {
	SKU                    string    `json:"sku" db:"sku"`
	LeadTimeWeeks          int       `json:"lead_time_weeks" db:"lead_time_weeks"`
	ServiceLevel           float64   `json:"service_level" db:"service_level"`
	OnHand                 float64   `json:"on_hand" db:"on_hand"`
	ExpectedLeadTimeDemand float64   `json:"expected_lead_time_demand" db:"expected_lead_time_demand"`
	SafetyStock            float64   `json:"safety_stock" db:"safety_stock"`
	ReorderPoint           float64   `json:"reorder_point" db:"reorder_point"`
	OrderQuantity          float64   `json:"order_quantity" db:"order_quantity"`
	ForecastWeekly         []float64 `json:"forecast_weekly" db:"-"` // scanned separately as an array
	UncertaintySigma       float64   `json:"uncertainty_sigma" db:"uncertainty_sigma"`
}

// NewDecisionRecord flattens d, rounding quantities half away from zero.
func NewDecisionRecord(d PolicyDecision) DecisionRecord {
	weekly := make([]float64, len(d.ForecastWeekly))
	for i, v := range d.ForecastWeekly {
		weekly[i] = round(v)
	}

	return DecisionRecord{
		SKU:                    d.SKU,
		LeadTimeWeeks:          d.LeadTimeWeeks,
		ServiceLevel:           d.ServiceLevel,
		OnHand:                 round(d.OnHand),
		ExpectedLeadTimeDemand: round(d.ExpectedLeadTimeDemand),
		SafetyStock:            round(d.SafetyStock),
		ReorderPoint:           round(d.ReorderPoint),
		OrderQuantity:          round(d.OrderQuantity),
		ForecastWeekly:         weekly,
		UncertaintySigma:       round(d.Sigma),
	}
}

// ExclusionRecord names a SKU that received no recommendation and why.
type ExclusionRecord struct {
	SKU    string    `json:"sku" db:"sku"`
	Reason ErrorKind `json:"reason" db:"reason"`
	Detail string    `json:"detail" db:"detail"`
}

// RunSummary describes one batch recommendation run.
type RunSummary struct {
	ID          string    `json:"id" db:"id"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at" db:"finished_at"`
	Recommended int       `json:"recommended" db:"recommended"`
	Excluded    int       `json:"excluded" db:"excluded"`
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(recordPlaces).InexactFloat64()
}

// Explain renders the decision as the short owner-facing breakdown shown
// next to the recommendation.
func (d PolicyDecision) Explain() []string {
	pct := decimal.NewFromFloat(d.ServiceLevel).Shift(2).Round(1).String()
	return []string{
		fmt.Sprintf("Expected demand during lead time (%d weeks): %.1f units", d.LeadTimeWeeks, d.ExpectedLeadTimeDemand),
		fmt.Sprintf("Safety stock at ~%s%% service level (z=%.4f, sigma=%.1f): %.1f units", pct, d.Z, d.Sigma, d.SafetyStock),
		fmt.Sprintf("Reorder point: %.1f units", d.ReorderPoint),
		fmt.Sprintf("Current inventory: %.1f units", d.OnHand),
		fmt.Sprintf("Recommended order quantity: %.1f units", d.OrderQuantity),
	}
}
