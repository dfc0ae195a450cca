package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
)

type decisionRepository struct {
	db *DB
}

func NewDecisionRepository(db *DB) repository.DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) SaveOutcomes(ctx context.Context, run domain.RunSummary, decisions []domain.DecisionRecord, exclusions []domain.ExclusionRecord) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// 1. Record the run
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reorder_runs (id, started_at, finished_at, recommended, excluded)
			VALUES ($1, $2, $3, $4, $5)
		`, run.ID, run.StartedAt, run.FinishedAt, run.Recommended, run.Excluded)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		// 2. Save decisions
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO reorder_decisions (
				run_id, sku, lead_time_weeks, service_level, on_hand,
				expected_lead_time_demand, safety_stock, reorder_point,
				order_quantity, uncertainty_sigma, forecast_weekly
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, d := range decisions {
			_, err := stmt.ExecContext(ctx,
				run.ID,
				d.SKU,
				d.LeadTimeWeeks,
				d.ServiceLevel,
				d.OnHand,
				d.ExpectedLeadTimeDemand,
				d.SafetyStock,
				d.ReorderPoint,
				d.OrderQuantity,
				d.UncertaintySigma,
				pq.Array(d.ForecastWeekly),
			)
			if err != nil {
				return fmt.Errorf("failed to insert decision for %s: %w", d.SKU, err)
			}
		}

		// 3. Save exclusions
		for _, e := range exclusions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sku_exclusions (run_id, sku, reason, detail)
				VALUES ($1, $2, $3, $4)
			`, run.ID, e.SKU, string(e.Reason), e.Detail)
			if err != nil {
				return fmt.Errorf("failed to insert exclusion for %s: %w", e.SKU, err)
			}
		}

		return nil
	})
}

type decisionRow struct {
	domain.DecisionRecord
	Weekly pq.Float64Array `db:"forecast_weekly"`
}

func (r *decisionRepository) LatestDecisions(ctx context.Context, sku string) ([]domain.DecisionRecord, error) {
	query := `
		SELECT
			d.sku,
			d.lead_time_weeks,
			d.service_level,
			d.on_hand,
			d.expected_lead_time_demand,
			d.safety_stock,
			d.reorder_point,
			d.order_quantity,
			d.uncertainty_sigma,
			d.forecast_weekly
		FROM reorder_decisions d
		WHERE d.sku = $1
		  AND d.run_id = (
			SELECT run_id FROM reorder_decisions
			WHERE sku = $1
			ORDER BY created_at DESC
			LIMIT 1
		  )
		ORDER BY d.lead_time_weeks, d.service_level
	`

	var rows []decisionRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, sku); err != nil {
		return nil, fmt.Errorf("failed to get decisions for %s: %w", sku, err)
	}

	out := make([]domain.DecisionRecord, len(rows))
	for i, row := range rows {
		rec := row.DecisionRecord
		rec.ForecastWeekly = []float64(row.Weekly)
		out[i] = rec
	}
	return out, nil
}
