package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/service"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/storage"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create or update the reorder tables",
		Flags:  []cli.Flag{newDBURLFlag()},
		Before: initDB,
		After:  closeDB,
		Action: func(c *cli.Context) error {
			db, err := dbFrom(c)
			if err != nil {
				return err
			}
			if err := db.Migrate(c.Context); err != nil {
				return err
			}
			logger.Log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load weekly demand and on-hand files (CSV or XLSX) into the database",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:    "demand",
				Usage:   "Weekly demand file",
				EnvVars: []string{"DEMAND_CSV"},
			},
			&cli.StringFlag{
				Name:    "on-hand",
				Usage:   "On-hand file",
				EnvVars: []string{"ON_HAND_CSV"},
			},
			&cli.StringFlag{
				Name:  "from-storage",
				Usage: "Import every demand file under this object storage prefix (STORAGE_BACKEND)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply migrations before importing",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	cfg := configFrom(c)
	db, err := dbFrom(c)
	if err != nil {
		return err
	}
	if c.String("demand") == "" && c.String("on-hand") == "" && c.String("from-storage") == "" {
		return fmt.Errorf("nothing to import: pass --demand, --on-hand or --from-storage")
	}

	if c.Bool("migrate") {
		if err := db.Migrate(c.Context); err != nil {
			return err
		}
	}

	baseline, err := cfg.Engine.NewForecaster()
	if err != nil {
		return err
	}
	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("forecast cache unavailable, cached forecasts will not be invalidated")
		forecastCache = cache.NewNoopForecastCache()
	}
	svc := service.NewReorderService(postgres.NewDemandRepository(db), baseline, service.Options{
		Inventory:     postgres.NewInventoryRepository(db),
		ForecastCache: forecastCache,
	})

	if path := c.String("demand"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		result, err := svc.ImportDemand(c.Context, path, f)
		if err != nil {
			return err
		}
		logImport(result)
	}

	if prefix := c.String("from-storage"); prefix != "" {
		store, err := storage.New(c.Context, cfg.Storage)
		if err != nil {
			return err
		}
		result, err := svc.ImportFromStorage(c.Context, store, prefix)
		if err != nil {
			return err
		}
		logImport(result)
	}

	if path := c.String("on-hand"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		count, err := svc.ImportOnHand(c.Context, path, f)
		if err != nil {
			return err
		}
		logger.Log.Info().Int("skus", count).Msg("on-hand imported")
	}
	return nil
}

func logImport(result *service.ImportResult) {
	for sku, reason := range result.Rejected {
		logger.Log.Warn().Str("sku", sku).Str("reason", reason).Msg("skipped invalid series")
	}
	logger.Log.Info().
		Strs("files", result.Files).
		Int("skus", result.Imported).
		Int("rejected", len(result.Rejected)).
		Msg("demand imported")
}
