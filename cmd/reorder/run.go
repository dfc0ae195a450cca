package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/service"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/storage"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

const (
	sourceCSV     = "csv"
	sourceDB      = "db"
	sourceStorage = "storage"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Recommend reorder quantities for every SKU over the configured scenario grid",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:  "source",
				Usage: "Where demand is read from: csv, db or storage (STORAGE_BACKEND)",
				Value: sourceCSV,
			},
			&cli.StringFlag{
				Name:    "demand",
				Usage:   "Weekly demand CSV (path for csv, object key for storage)",
				EnvVars: []string{"DEMAND_CSV"},
			},
			&cli.StringFlag{
				Name:    "on-hand",
				Usage:   "On-hand CSV (path for csv, object key for storage)",
				EnvVars: []string{"ON_HAND_CSV"},
			},
			&cli.Float64Flag{
				Name:  "default-on-hand",
				Usage: "On-hand quantity for SKUs the inventory does not list",
			},
			&cli.StringFlag{
				Name:  "lead-times",
				Usage: "Comma separated lead times in weeks (defaults to ENGINE_LEAD_TIMES)",
			},
			&cli.StringFlag{
				Name:  "service-levels",
				Usage: "Comma separated service levels in (0,1) (defaults to ENGINE_SERVICE_LEVELS)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent SKU workers (defaults to PIPELINE_WORKERS)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: csv or jsonl",
				Value: dataset.FormatCSV,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Decision output file, - for stdout",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "exclusions",
				Usage: "Write excluded SKUs and their reasons to this CSV",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Persist the run and its decisions to the database",
			},
			&cli.StringFlag{
				Name:  "upload-prefix",
				Usage: "Upload decisions and exclusions to object storage under this prefix",
			},
		},
		Before: func(c *cli.Context) error {
			if c.String("source") == sourceDB || c.Bool("save") {
				return initDB(c)
			}
			return nil
		},
		After:  closeDB,
		Action: runRecommendations,
	}
}

func runRecommendations(c *cli.Context) error {
	cfg := configFrom(c)

	pipelineCfg, err := pipelineConfig(c, cfg)
	if err != nil {
		return err
	}

	baseline, err := cfg.Engine.NewForecaster()
	if err != nil {
		return err
	}
	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialise forecast cache: %w", err)
	}

	// only ForecastSeries is used here; demand comes from the run source
	forecasts := service.NewReorderService(nil, baseline, service.Options{
		ForecastCache:  forecastCache,
		DefaultHorizon: pipelineCfg.DefaultHorizon,
	})

	runner, err := pipeline.NewRunner(baseline, forecasts, pipelineCfg, nil)
	if err != nil {
		return err
	}

	var objects storage.ObjectStorage
	if c.String("source") == sourceStorage || c.IsSet("upload-prefix") {
		if objects, err = storage.New(c.Context, cfg.Storage); err != nil {
			return err
		}
	}

	source, err := demandSource(c, objects)
	if err != nil {
		return err
	}
	sinks, err := decisionSinks(c, objects)
	if err != nil {
		return err
	}

	result, err := pipeline.NewOrchestrator(runner, nil, sinks...).Run(c.Context, source)
	if err != nil {
		return err
	}

	for reason, count := range result.ExclusionsByReason() {
		logger.Log.Info().Str("reason", string(reason)).Int("skus", count).Msg("excluded")
	}
	return nil
}

func pipelineConfig(c *cli.Context, cfg *config.Config) (pipeline.PipelineConfig, error) {
	pc := pipeline.DefaultPipelineConfig("cli")
	pc.LeadTimes = cfg.Engine.LeadTimes
	pc.ServiceLevels = cfg.Engine.ServiceLevels
	pc.DefaultHorizon = cfg.Engine.DefaultHorizon
	if cfg.Pipeline.Workers > 0 {
		pc.WorkerCount = cfg.Pipeline.Workers
	}

	if c.IsSet("lead-times") {
		leadTimes, err := config.ParseInts(c.String("lead-times"))
		if err != nil {
			return pc, fmt.Errorf("--lead-times: %w", err)
		}
		pc.LeadTimes = leadTimes
	}
	if c.IsSet("service-levels") {
		levels, err := config.ParseFloats(c.String("service-levels"))
		if err != nil {
			return pc, fmt.Errorf("--service-levels: %w", err)
		}
		pc.ServiceLevels = levels
	}
	if c.Int("workers") > 0 {
		pc.WorkerCount = c.Int("workers")
	}
	return pc, nil
}

func demandSource(c *cli.Context, objects storage.ObjectStorage) (pipeline.DemandSource, error) {
	var defaultOnHand *float64
	if c.IsSet("default-on-hand") {
		v := c.Float64("default-on-hand")
		defaultOnHand = &v
	}

	switch strings.ToLower(c.String("source")) {
	case sourceCSV:
		if c.String("demand") == "" {
			return nil, fmt.Errorf("--demand is required for the csv source")
		}
		return pipeline.FileSource{
			DemandPath:    c.String("demand"),
			OnHandPath:    c.String("on-hand"),
			DefaultOnHand: defaultOnHand,
		}, nil
	case sourceStorage:
		if c.String("demand") == "" {
			return nil, fmt.Errorf("--demand object key is required for the storage source")
		}
		return pipeline.StorageSource{
			Storage:       objects,
			DemandKey:     c.String("demand"),
			OnHandKey:     c.String("on-hand"),
			DefaultOnHand: defaultOnHand,
		}, nil
	case sourceDB:
		db, err := dbFrom(c)
		if err != nil {
			return nil, err
		}
		return pipeline.RepositorySource{
			Demand:        postgres.NewDemandRepository(db),
			Inventory:     postgres.NewInventoryRepository(db),
			DefaultOnHand: defaultOnHand,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want csv, db or storage)", c.String("source"))
	}
}

func decisionSinks(c *cli.Context, objects storage.ObjectStorage) ([]pipeline.DecisionSink, error) {
	format := c.String("format")
	var sinks []pipeline.DecisionSink

	if out := c.String("output"); out == "-" || out == "" {
		sinks = append(sinks, pipeline.WriterSink{W: os.Stdout, Format: format})
		if c.String("exclusions") != "" {
			sinks = append(sinks, pipeline.FileSink{ExclusionsPath: c.String("exclusions")})
		}
	} else {
		sinks = append(sinks, pipeline.FileSink{Path: out, Format: format, ExclusionsPath: c.String("exclusions")})
	}

	if c.Bool("save") {
		db, err := dbFrom(c)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pipeline.RepositorySink{Repo: postgres.NewDecisionRepository(db)})
	}

	if prefix := c.String("upload-prefix"); prefix != "" {
		sinks = append(sinks, pipeline.StorageSink{Storage: objects, Prefix: prefix, Format: format})
	}
	return sinks, nil
}
