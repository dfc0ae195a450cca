package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Measure rolling-origin forecast accuracy per SKU",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:  "source",
				Usage: "Where demand is read from: csv or db",
				Value: sourceCSV,
			},
			&cli.StringFlag{
				Name:    "demand",
				Usage:   "Weekly demand CSV for the csv source",
				EnvVars: []string{"DEMAND_CSV"},
			},
			&cli.StringSliceFlag{
				Name:  "sku",
				Usage: "Only backtest these SKUs",
			},
			&cli.IntFlag{
				Name:  "horizon",
				Usage: "Weeks ahead scored at each origin (defaults to ENGINE_DEFAULT_HORIZON)",
			},
			&cli.StringFlag{
				Name:  "windows",
				Usage: "Compare these moving-average windows instead of the configured strategy, e.g. 2,4,8",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print one JSON report per line",
			},
		},
		Before: func(c *cli.Context) error {
			if c.String("source") == sourceDB {
				return initDB(c)
			}
			return nil
		},
		After:  closeDB,
		Action: runBacktest,
	}
}

func runBacktest(c *cli.Context) error {
	cfg := configFrom(c)

	data, err := loadSeries(c)
	if err != nil {
		return err
	}
	for sku, rejectErr := range data.Rejected {
		logger.Log.Warn().Str("sku", sku).Err(rejectErr).Msg("skipping invalid series")
	}

	horizon := c.Int("horizon")
	if horizon == 0 {
		horizon = cfg.Engine.DefaultHorizon
	}

	var windows []int
	if c.IsSet("windows") {
		if windows, err = config.ParseInts(c.String("windows")); err != nil {
			return fmt.Errorf("--windows: %w", err)
		}
	}

	baseline, err := cfg.Engine.NewForecaster()
	if err != nil {
		return err
	}

	wanted := map[string]bool{}
	for _, sku := range c.StringSlice("sku") {
		wanted[sku] = true
	}

	var reports []domain.BacktestReport
	for _, series := range data.Series {
		if len(wanted) > 0 && !wanted[series.SKU()] {
			continue
		}

		if len(windows) > 0 {
			ranked, err := forecast.CompareWindows(series, horizon, windows, cfg.Engine.SeasonLength)
			if err != nil {
				return err
			}
			reports = append(reports, ranked...)
			continue
		}

		report, err := forecast.Backtest(series, horizon, baseline.Strategy())
		if err != nil && domain.KindOf(err) != domain.KindUnevaluable {
			return err
		}
		reports = append(reports, report)
	}

	if c.Bool("json") {
		return writeReportsJSON(os.Stdout, reports)
	}
	return writeReportsTable(os.Stdout, reports)
}

func loadSeries(c *cli.Context) (dataset.ReadResult, error) {
	switch c.String("source") {
	case sourceCSV:
		path := c.String("demand")
		if path == "" {
			return dataset.ReadResult{}, fmt.Errorf("--demand is required for the csv source")
		}
		f, err := os.Open(path)
		if err != nil {
			return dataset.ReadResult{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return dataset.WeeklyReaderFor(path)(f)
	case sourceDB:
		db, err := dbFrom(c)
		if err != nil {
			return dataset.ReadResult{}, err
		}
		return postgres.NewDemandRepository(db).LoadAll(c.Context)
	default:
		return dataset.ReadResult{}, fmt.Errorf("unknown source %q (want csv or db)", c.String("source"))
	}
}

func writeReportsJSON(w io.Writer, reports []domain.BacktestReport) error {
	enc := json.NewEncoder(w)
	for _, r := range reports {
		r.Points = nil
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeReportsTable(w io.Writer, reports []domain.BacktestReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tSTRATEGY\tHORIZON\tORIGINS\tMAE\tRMSE\tSTATUS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.3f\t%.3f\t%s\n",
			r.SKU, r.Strategy, r.Horizon, r.Origins, r.MAE, r.RMSE, r.Status)
	}
	return tw.Flush()
}
