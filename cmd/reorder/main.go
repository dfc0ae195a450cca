package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

type ctxKey string

const (
	configKey ctxKey = "config"
	dbKey     ctxKey = "db"
)

func loadConfig(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	logger.Configure(cfg.Log.Format, cfg.Log.Level)

	c.Context = context.WithValue(c.Context, configKey, cfg)
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.Context.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (overrides DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	cfg := configFrom(c).Database
	if c.IsSet("db-url") {
		cfg.URL = c.String("db-url")
	}

	db, err := postgres.NewDB(&cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Store the database connection in the context
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) (*postgres.DB, error) {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db, nil
	}
	return nil, fmt.Errorf("database is not initialised")
}

func main() {
	app := &cli.App{
		Name:  "reorder",
		Usage: "Forecast weekly SKU demand and recommend reorder quantities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (console or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			runCommand(),
			backtestCommand(),
			importCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("reorder failed")
		os.Exit(1)
	}
}
