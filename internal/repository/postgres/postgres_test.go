package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewWithDB(sqlx.NewDb(raw, "postgres"), 2), mock
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "autopo", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=autopo sslmode=disable", DSN(cfg))

	cfg.URL = "postgres://u:p@db/autopo"
	assert.Equal(t, "postgres://u:p@db/autopo", DSN(cfg))
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS weekly_sku_demand").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandRepository_GetSeries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	rows := sqlmock.NewRows([]string{"week_start", "units"}).
		AddRow(jan1, 4.0).
		AddRow(jan1.Add(domain.Week), 6.0)
	mock.ExpectQuery("SELECT week_start, units").WithArgs("SKU-1").WillReturnRows(rows)

	series, err := repo.GetSeries(context.Background(), "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", series.SKU())
	assert.Equal(t, []float64{4, 6}, series.Values())

	mock.ExpectQuery("SELECT week_start, units").WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"week_start", "units"}))
	_, err = repo.GetSeries(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrSKUNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandRepository_LoadAllRejectsGaps(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	rows := sqlmock.NewRows([]string{"sku", "week_start", "units"}).
		AddRow("A", jan1, 1.0).
		AddRow("A", jan1.Add(domain.Week), 2.0).
		AddRow("B", jan1, 1.0).
		AddRow("B", jan1.Add(3*domain.Week), 1.0).
		AddRow("C", jan1, 0.0)
	mock.ExpectQuery("SELECT sku, week_start, units").WillReturnRows(rows)

	result, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Series, 2)
	assert.Equal(t, "A", result.Series[0].SKU())
	assert.Equal(t, "C", result.Series[1].SKU())
	require.Contains(t, result.Rejected, "B")
	assert.ErrorIs(t, result.Rejected["B"], domain.ErrInvalidParameter)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandRepository_ListSKUs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	mock.ExpectQuery("SELECT DISTINCT sku").WillReturnRows(sqlmock.NewRows([]string{"sku"}).AddRow("A").AddRow("B"))

	skus, err := repo.ListSKUs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, skus)
}

func TestDemandRepository_SaveSeries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	series, err := domain.NewDemandSeries("A", []domain.WeekDemand{
		{WeekStart: jan1, Units: 3},
		{WeekStart: jan1.Add(domain.Week), Units: 5},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM weekly_sku_demand WHERE sku = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	prep := mock.ExpectPrepare("INSERT INTO weekly_sku_demand")
	prep.ExpectExec().WithArgs("A", jan1, 3.0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("A", jan1.Add(domain.Week), 5.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveSeries(context.Background(), []domain.DemandSeries{series}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandRepository_SaveSeriesReplacesShiftedWindow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	later := jan1.Add(10 * domain.Week)
	series, err := domain.NewDemandSeries("A", []domain.WeekDemand{
		{WeekStart: later, Units: 7},
		{WeekStart: later.Add(domain.Week), Units: 9},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM weekly_sku_demand WHERE sku = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	prep := mock.ExpectPrepare("INSERT INTO weekly_sku_demand")
	prep.ExpectExec().WithArgs("A", later, 7.0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("A", later.Add(domain.Week), 9.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.SaveSeries(context.Background(), []domain.DemandSeries{series}))

	mock.ExpectQuery("SELECT week_start, units").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows([]string{"week_start", "units"}).
			AddRow(later, 7.0).
			AddRow(later.Add(domain.Week), 9.0))

	got, err := repo.GetSeries(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 9}, got.Values())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemandRepository_SaveSeriesRollsBackOnDeleteFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandRepository(db)

	series, err := domain.NewDemandSeries("A", []domain.WeekDemand{{WeekStart: jan1, Units: 3}})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM weekly_sku_demand").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err = repo.SaveSeries(context.Background(), []domain.DemandSeries{series})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear demand history")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_OnHand(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInventoryRepository(db)

	mock.ExpectQuery("SELECT sku, on_hand FROM sku_on_hand").
		WillReturnRows(sqlmock.NewRows([]string{"sku", "on_hand"}).AddRow("A", 10.0).AddRow("B", 0.0))

	onHand, err := repo.OnHand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 10, "B": 0}, onHand)
}

func TestDecisionRepository_SaveOutcomes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDecisionRepository(db)

	run := domain.RunSummary{ID: "6f1c2d8e-0000-4000-8000-000000000001", StartedAt: jan1, FinishedAt: jan1.Add(time.Second), Recommended: 1, Excluded: 1}
	decisions := []domain.DecisionRecord{{SKU: "A", LeadTimeWeeks: 4, ServiceLevel: 0.95, ForecastWeekly: []float64{10, 10}}}
	exclusions := []domain.ExclusionRecord{{SKU: "B", Reason: domain.KindInsufficientHistory, Detail: "need 4 weeks"}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reorder_runs").
		WithArgs(run.ID, run.StartedAt, run.FinishedAt, 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO reorder_decisions")
	prep.ExpectExec().
		WithArgs(run.ID, "A", 4, 0.95, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sku_exclusions").
		WithArgs(run.ID, "B", "insufficient_history", "need 4 weeks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveOutcomes(context.Background(), run, decisions, exclusions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionRepository_SaveOutcomesRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDecisionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reorder_runs").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.SaveOutcomes(context.Background(), domain.RunSummary{ID: "x"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionRepository_LatestDecisions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDecisionRepository(db)

	cols := []string{
		"sku", "lead_time_weeks", "service_level", "on_hand", "expected_lead_time_demand",
		"safety_stock", "reorder_point", "order_quantity", "uncertainty_sigma", "forecast_weekly",
	}
	mock.ExpectQuery("FROM reorder_decisions d").WithArgs("A").WillReturnRows(
		sqlmock.NewRows(cols).AddRow("A", 4, 0.95, 350.0, 400.0, 65.8, 465.8, 115.8, 20.0, []byte("{100,100}")),
	)

	got, err := repo.LatestDecisions(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 465.8, got[0].ReorderPoint)
	assert.Equal(t, []float64{100, 100}, got[0].ForecastWeekly)
	require.NoError(t, mock.ExpectationsWereMet())
}
