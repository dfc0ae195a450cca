package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
)

type demandRepository struct {
	db *DB
}

func NewDemandRepository(db *DB) repository.DemandRepository {
	return &demandRepository{db: db}
}

type demandRow struct {
	SKU       string    `db:"sku"`
	WeekStart time.Time `db:"week_start"`
	Units     float64   `db:"units"`
}

func (r *demandRepository) ListSKUs(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT sku
		FROM weekly_sku_demand
		ORDER BY sku
	`

	var skus []string
	if err := sqlx.SelectContext(ctx, r.db, &skus, query); err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	return skus, nil
}

func (r *demandRepository) GetSeries(ctx context.Context, sku string) (domain.DemandSeries, error) {
	query := `
		SELECT week_start, units
		FROM weekly_sku_demand
		WHERE sku = $1
		ORDER BY week_start
	`

	var weeks []domain.WeekDemand
	if err := sqlx.SelectContext(ctx, r.db, &weeks, query, sku); err != nil {
		return domain.DemandSeries{}, fmt.Errorf("failed to get demand for %s: %w", sku, err)
	}
	if len(weeks) == 0 {
		return domain.DemandSeries{}, fmt.Errorf("%w: %s", domain.ErrSKUNotFound, sku)
	}

	return domain.NewDemandSeries(sku, weeks)
}

func (r *demandRepository) LoadAll(ctx context.Context) (dataset.ReadResult, error) {
	query := `
		SELECT sku, week_start, units
		FROM weekly_sku_demand
		ORDER BY sku, week_start
	`

	var rows []demandRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return dataset.ReadResult{}, fmt.Errorf("failed to load demand: %w", err)
	}

	result := dataset.ReadResult{Rejected: make(map[string]error)}
	flush := func(sku string, weeks []domain.WeekDemand) {
		if sku == "" {
			return
		}
		series, err := domain.NewDemandSeries(sku, weeks)
		if err != nil {
			result.Rejected[sku] = err
			return
		}
		result.Series = append(result.Series, series)
	}

	var (
		current string
		weeks   []domain.WeekDemand
	)
	for _, row := range rows {
		if row.SKU != current {
			flush(current, weeks)
			current = row.SKU
			weeks = nil
		}
		weeks = append(weeks, domain.WeekDemand{WeekStart: row.WeekStart, Units: row.Units})
	}
	flush(current, weeks)

	return result, nil
}

// SaveSeries replaces the stored history of every SKU in series.
func (r *demandRepository) SaveSeries(ctx context.Context, series []domain.DemandSeries) error {
	if len(series) == 0 {
		return nil
	}

	skus := make([]string, len(series))
	for i, s := range series {
		skus[i] = s.SKU()
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_sku_demand WHERE sku = ANY($1)`, pq.Array(skus)); err != nil {
			return fmt.Errorf("failed to clear demand history: %w", err)
		}

		query := `
			INSERT INTO weekly_sku_demand (sku, week_start, units, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (sku, week_start)
			DO UPDATE SET
				units = EXCLUDED.units,
				updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range series {
			for _, w := range s.Weeks() {
				if _, err := stmt.ExecContext(ctx, s.SKU(), w.WeekStart, w.Units); err != nil {
					return fmt.Errorf("failed to upsert demand for %s: %w", s.SKU(), err)
				}
			}
		}
		return nil
	})
}

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) OnHand(ctx context.Context) (map[string]float64, error) {
	query := `SELECT sku, on_hand FROM sku_on_hand`

	var rows []struct {
		SKU    string  `db:"sku"`
		OnHand float64 `db:"on_hand"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load on-hand: %w", err)
	}

	onHand := make(map[string]float64, len(rows))
	for _, row := range rows {
		onHand[row.SKU] = row.OnHand
	}
	return onHand, nil
}

func (r *inventoryRepository) SaveOnHand(ctx context.Context, onHand map[string]float64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sku_on_hand (sku, on_hand, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (sku)
			DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for sku, qty := range onHand {
			if _, err := stmt.ExecContext(ctx, sku, qty); err != nil {
				return fmt.Errorf("failed to upsert on-hand for %s: %w", sku, err)
			}
		}
		return nil
	})
}
