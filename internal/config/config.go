// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // "postgres" (lib/pq) or "pgx"
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type StorageConfig struct {
	Backend   string // "s3" or "gdrive"
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	DriveCredentialsJSON string
	DriveFolderID        string
}

// EngineConfig holds the forecasting and policy parameters. The core never
// reads it directly; callers convert it with ForecastConfig.
type EngineConfig struct {
	Strategy            string
	SmoothingWindow     int
	SeasonLength        int
	MinimumHistoryWeeks int
	MinResidualSamples  int
	SmoothingAlpha      float64
	DefaultHorizon      int
	LeadTimes           []int
	ServiceLevels       []float64
}

type PipelineConfig struct {
	Workers int
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load returns the process configuration, reading .env and the environment once.
func Load() (*Config, error) {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance, loadErr = New()
	})

	return instance, loadErr
}

// New builds a fresh configuration from defaults and the current environment.
func New() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	window := v.GetInt("ENGINE_SMOOTHING_WINDOW")
	minHistory := v.GetInt("ENGINE_MIN_HISTORY_WEEKS")
	if minHistory <= 0 {
		minHistory = window
	}

	leadTimes, err := ParseInts(v.GetString("ENGINE_LEAD_TIMES"))
	if err != nil {
		return nil, fmt.Errorf("ENGINE_LEAD_TIMES: %w", err)
	}
	serviceLevels, err := ParseFloats(v.GetString("ENGINE_SERVICE_LEVELS"))
	if err != nil {
		return nil, fmt.Errorf("ENGINE_SERVICE_LEVELS: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Backend:              v.GetString("STORAGE_BACKEND"),
			Endpoint:             v.GetString("S3_ENDPOINT"),
			AccessKey:            v.GetString("S3_ACCESS_KEY"),
			SecretKey:            v.GetString("S3_SECRET_KEY"),
			Bucket:               v.GetString("S3_BUCKET"),
			Region:               v.GetString("S3_REGION"),
			UseSSL:               v.GetBool("S3_USE_SSL"),
			DriveCredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			DriveFolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
		Engine: EngineConfig{
			Strategy:            v.GetString("ENGINE_STRATEGY"),
			SmoothingWindow:     window,
			SeasonLength:        v.GetInt("ENGINE_SEASON_LENGTH"),
			MinimumHistoryWeeks: minHistory,
			MinResidualSamples:  v.GetInt("ENGINE_MIN_RESIDUAL_SAMPLES"),
			SmoothingAlpha:      v.GetFloat64("ENGINE_SMOOTHING_ALPHA"),
			DefaultHorizon:      v.GetInt("ENGINE_DEFAULT_HORIZON"),
			LeadTimes:           leadTimes,
			ServiceLevels:       serviceLevels,
		},
		Pipeline: PipelineConfig{
			Workers: v.GetInt("PIPELINE_WORKERS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autopo")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_FORECAST_TTL_SECONDS", 3600)
	v.SetDefault("STORAGE_BACKEND", "s3")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "root")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("ENGINE_STRATEGY", forecast.StrategyMovingAverage)
	v.SetDefault("ENGINE_SMOOTHING_WINDOW", 4)
	v.SetDefault("ENGINE_SEASON_LENGTH", 1)
	v.SetDefault("ENGINE_MIN_HISTORY_WEEKS", 0) // 0 = same as the smoothing window
	v.SetDefault("ENGINE_MIN_RESIDUAL_SAMPLES", 2)
	v.SetDefault("ENGINE_SMOOTHING_ALPHA", 0.3)
	v.SetDefault("ENGINE_DEFAULT_HORIZON", 8)
	v.SetDefault("ENGINE_LEAD_TIMES", "2,4,6")
	v.SetDefault("ENGINE_SERVICE_LEVELS", "0.90,0.95,0.99")
	v.SetDefault("PIPELINE_WORKERS", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// ForecastConfig converts the engine settings into the value passed to the core.
func (e EngineConfig) ForecastConfig() forecast.Config {
	return forecast.Config{
		SmoothingWindow:     e.SmoothingWindow,
		SeasonLength:        e.SeasonLength,
		MinimumHistoryWeeks: e.MinimumHistoryWeeks,
		MinResidualSamples:  e.MinResidualSamples,
	}
}

// NewForecaster builds the configured strategy wrapped in a baseline forecaster.
func (e EngineConfig) NewForecaster() (*forecast.Baseline, error) {
	cfg := e.ForecastConfig()
	strategy, err := forecast.NewStrategy(e.Strategy, cfg, e.SmoothingAlpha)
	if err != nil {
		return nil, err
	}
	return forecast.NewBaseline(strategy, cfg)
}

// ParseInts parses a comma separated list. Blank entries are skipped; a
// malformed entry or an empty list is an error.
func ParseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q in %q", part, raw)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no entries in %q", raw)
	}
	return out, nil
}

// ParseFloats parses a comma separated list. Blank entries are skipped; a
// malformed entry or an empty list is an error.
func ParseFloats(raw string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in %q", part, raw)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no entries in %q", raw)
	}
	return out, nil
}
