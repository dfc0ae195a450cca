package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/policy"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/scenario"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/storage"
)

// ReorderService answers forecast, backtest and policy questions for a SKU
// by id, caching forecasts and evaluated backtests.
type ReorderService struct {
	demand         repository.DemandRepository
	inventory      repository.InventoryRepository
	decisions      repository.DecisionRepository
	baseline       *forecast.Baseline
	calculator     *policy.Calculator
	driver         *scenario.Driver
	forecasts      cache.ForecastCache
	backtests      cache.BacktestCache
	defaultHorizon int
}

// Options carries the optional collaborators of a ReorderService.
type Options struct {
	Inventory      repository.InventoryRepository
	Decisions      repository.DecisionRepository
	ForecastCache  cache.ForecastCache
	BacktestCache  cache.BacktestCache
	DefaultHorizon int
}

func NewReorderService(demand repository.DemandRepository, baseline *forecast.Baseline, opts Options) *ReorderService {
	if opts.ForecastCache == nil {
		opts.ForecastCache = cache.NewNoopForecastCache()
	}
	if opts.BacktestCache == nil {
		opts.BacktestCache = cache.NewNoopBacktestCache()
	}
	if opts.DefaultHorizon < 1 {
		opts.DefaultHorizon = 8
	}

	calculator := policy.NewCalculator(baseline, nil)
	return &ReorderService{
		demand:         demand,
		inventory:      opts.Inventory,
		decisions:      opts.Decisions,
		baseline:       baseline,
		calculator:     calculator,
		driver:         scenario.NewDriver(calculator, baseline),
		forecasts:      opts.ForecastCache,
		backtests:      opts.BacktestCache,
		defaultHorizon: opts.DefaultHorizon,
	}
}

// ForecastView is a forecast with the per-week dates and prediction band at
// the requested service level.
type ForecastView struct {
	domain.ForecastResult
	Weeks        []time.Time `json:"weeks"`
	ServiceLevel float64     `json:"service_level"`
	Z            float64     `json:"z"`
	Lower        []float64   `json:"lower,omitempty"`
	Upper        []float64   `json:"upper,omitempty"`
}

// PolicyView is a single decision with its plain-language explanation.
type PolicyView struct {
	domain.PolicyDecision
	Explanation []string `json:"explanation"`
}

func (s *ReorderService) ListSKUs(ctx context.Context) ([]string, error) {
	return s.demand.ListSKUs(ctx)
}

// ForecastSeries returns the forecast for series, served from the cache when
// the same history, strategy and horizon were forecast before.
func (s *ReorderService) ForecastSeries(ctx context.Context, series domain.DemandSeries, horizon int) (domain.ForecastResult, error) {
	key := cache.ForecastKey{
		SKU:         series.SKU(),
		Strategy:    s.baseline.Strategy().Name(),
		Config:      s.baseline.Config(),
		Horizon:     horizon,
		Fingerprint: series.Fingerprint(),
	}

	if result, ok, err := s.forecasts.Get(ctx, key); err == nil && ok {
		return result, nil
	} else if err != nil {
		log.Warn().Err(err).Str("sku", series.SKU()).Msg("reorder: cache get forecast failed")
	}

	result, err := s.baseline.Forecast(series, horizon)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	if err := s.forecasts.Set(ctx, key, result); err != nil {
		log.Warn().Err(err).Str("sku", series.SKU()).Msg("reorder: cache set forecast failed")
	}
	return result, nil
}

// GetForecast forecasts horizon weeks for sku (0 means the default horizon)
// and attaches the band at serviceLevel when σ is defined.
func (s *ReorderService) GetForecast(ctx context.Context, sku string, horizon int, serviceLevel float64) (*ForecastView, error) {
	if horizon == 0 {
		horizon = s.defaultHorizon
	}
	z, err := s.calculator.ZTable().Z(serviceLevel)
	if err != nil {
		return nil, err
	}

	series, err := s.demand.GetSeries(ctx, sku)
	if err != nil {
		return nil, err
	}
	fc, err := s.ForecastSeries(ctx, series, horizon)
	if err != nil {
		return nil, err
	}

	weeks := make([]time.Time, fc.Horizon)
	for i := range weeks {
		weeks[i] = series.WeekStart(series.Len() + i)
	}
	lower, upper := fc.Band(z)

	return &ForecastView{
		ForecastResult: fc,
		Weeks:          weeks,
		ServiceLevel:   serviceLevel,
		Z:              z,
		Lower:          lower,
		Upper:          upper,
	}, nil
}

// Backtest evaluates the configured strategy, or a moving average of the
// given window when window > 0. An unevaluable history returns the report
// together with an error wrapping domain.ErrUnevaluable.
func (s *ReorderService) Backtest(ctx context.Context, sku string, horizon, window int) (*domain.BacktestReport, error) {
	if horizon == 0 {
		horizon = s.defaultHorizon
	}
	series, err := s.demand.GetSeries(ctx, sku)
	if err != nil {
		return nil, err
	}

	strategy := s.baseline.Strategy()
	if window > 0 {
		cfg := s.baseline.Config()
		cfg.SmoothingWindow = window
		strategy = forecast.NewMovingAverage(cfg)
	}

	key := cache.BacktestKey{SKU: sku, Strategy: strategy.Name(), Horizon: horizon, Fingerprint: series.Fingerprint()}
	if report, ok, err := s.backtests.GetReport(ctx, key); err == nil && ok {
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("reorder: cache get backtest failed")
	}

	report, err := forecast.Backtest(series, horizon, strategy)
	if err != nil {
		return &report, err
	}

	if err := s.backtests.SetReport(ctx, key, &report); err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("reorder: cache set backtest failed")
	}
	return &report, nil
}

// CompareWindows ranks moving-average windows for sku by backtest RMSE.
func (s *ReorderService) CompareWindows(ctx context.Context, sku string, horizon int, windows []int) ([]domain.BacktestReport, error) {
	if horizon == 0 {
		horizon = s.defaultHorizon
	}
	series, err := s.demand.GetSeries(ctx, sku)
	if err != nil {
		return nil, err
	}
	return forecast.CompareWindows(series, horizon, windows, s.baseline.Config().SeasonLength)
}

// Recommend computes one reorder decision for sku.
func (s *ReorderService) Recommend(ctx context.Context, sku string, leadTime int, serviceLevel, onHand float64) (*PolicyView, error) {
	series, fc, err := s.seriesAndForecast(ctx, sku, leadTime)
	if err != nil {
		return nil, err
	}

	decision, err := s.calculator.ComputePolicy(domain.PolicyInputs{
		LeadTimeWeeks: leadTime,
		ServiceLevel:  serviceLevel,
		OnHand:        onHand,
		Forecast:      fc,
		Series:        &series,
	})
	if err != nil {
		return nil, err
	}

	return &PolicyView{PolicyDecision: decision, Explanation: decision.Explain()}, nil
}

// Sweep computes decisions for every lead time and service level pair.
func (s *ReorderService) Sweep(ctx context.Context, sku string, leadTimes []int, serviceLevels []float64, onHand float64) ([]domain.PolicyDecision, error) {
	longest := 0
	for _, lt := range leadTimes {
		if lt > longest {
			longest = lt
		}
	}

	series, fc, err := s.seriesAndForecast(ctx, sku, longest)
	if err != nil {
		return nil, err
	}

	return s.driver.Sweep(domain.PolicyInputs{OnHand: onHand, Forecast: fc, Series: &series}, leadTimes, serviceLevels)
}

func (s *ReorderService) seriesAndForecast(ctx context.Context, sku string, leadTime int) (domain.DemandSeries, domain.ForecastResult, error) {
	series, err := s.demand.GetSeries(ctx, sku)
	if err != nil {
		return domain.DemandSeries{}, domain.ForecastResult{}, err
	}

	horizon := s.defaultHorizon
	if leadTime > horizon {
		horizon = leadTime
	}
	fc, err := s.ForecastSeries(ctx, series, horizon)
	if err != nil {
		return domain.DemandSeries{}, domain.ForecastResult{}, err
	}
	return series, fc, nil
}

// LatestDecisions returns the decisions stored for sku by the last batch run.
func (s *ReorderService) LatestDecisions(ctx context.Context, sku string) ([]domain.DecisionRecord, error) {
	if s.decisions == nil {
		return nil, fmt.Errorf("%w: decision history", domain.ErrNotConfigured)
	}
	return s.decisions.LatestDecisions(ctx, sku)
}

// ImportResult summarises an upload.
type ImportResult struct {
	Files    []string          `json:"files,omitempty"`
	Imported int               `json:"imported"`
	Rejected map[string]string `json:"rejected,omitempty"`
}

func (r *ImportResult) merge(other *ImportResult) {
	r.Files = append(r.Files, other.Files...)
	r.Imported += other.Imported
	for sku, reason := range other.Rejected {
		if r.Rejected == nil {
			r.Rejected = make(map[string]string)
		}
		r.Rejected[sku] = reason
	}
}

// ImportDemand stores every valid series of a weekly demand file and drops
// cached forecasts of the imported SKUs. name selects the CSV or XLSX reader.
func (s *ReorderService) ImportDemand(ctx context.Context, name string, r io.Reader) (*ImportResult, error) {
	data, err := dataset.WeeklyReaderFor(name)(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidParameter, name, err)
	}

	if err := s.demand.SaveSeries(ctx, data.Series); err != nil {
		return nil, err
	}
	for _, series := range data.Series {
		if err := s.forecasts.InvalidateSKU(ctx, series.SKU()); err != nil {
			log.Warn().Err(err).Str("sku", series.SKU()).Msg("reorder: cache invalidate failed")
		}
	}

	result := &ImportResult{Files: []string{name}, Imported: len(data.Series)}
	if len(data.Rejected) > 0 {
		result.Rejected = make(map[string]string, len(data.Rejected))
		for sku, rejectErr := range data.Rejected {
			result.Rejected[sku] = rejectErr.Error()
		}
	}
	return result, nil
}

// ImportFromStorage imports every CSV and XLSX demand file listed under
// prefix, in key order. A SKU present in several files keeps the last one.
func (s *ReorderService) ImportFromStorage(ctx context.Context, store storage.ObjectStorage, prefix string) (*ImportResult, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	total := &ImportResult{}
	for _, obj := range objects {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		if !dataset.IsSupported(obj.Key) {
			continue
		}

		body, err := store.OpenObject(ctx, obj.Key)
		if err != nil {
			return total, err
		}
		result, err := s.ImportDemand(ctx, obj.Key, body)
		body.Close()
		if err != nil {
			return total, err
		}

		log.Info().Str("key", obj.Key).Int("imported", result.Imported).Int("rejected", len(result.Rejected)).Msg("demand file imported")
		total.merge(result)
	}
	return total, nil
}

// ImportOnHand stores the quantities of an on-hand file.
func (s *ReorderService) ImportOnHand(ctx context.Context, name string, r io.Reader) (int, error) {
	if s.inventory == nil {
		return 0, fmt.Errorf("%w: inventory storage", domain.ErrNotConfigured)
	}
	onHand, err := dataset.OnHandReaderFor(name)(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidParameter, name, err)
	}
	if err := s.inventory.SaveOnHand(ctx, onHand); err != nil {
		return 0, err
	}
	return len(onHand), nil
}

// OnHand looks up the stored on-hand quantity for sku.
func (s *ReorderService) OnHand(ctx context.Context, sku string) (float64, bool, error) {
	if s.inventory == nil {
		return 0, false, nil
	}
	all, err := s.inventory.OnHand(ctx)
	if err != nil {
		return 0, false, err
	}
	qty, ok := all[sku]
	return qty, ok, nil
}
