package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/policy"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/scenario"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

// Runner turns demand series into reorder outcomes using a worker pool.
// Each SKU is processed independently; one SKU failing never affects another.
type Runner struct {
	config    PipelineConfig
	strategy  forecast.Strategy
	forecasts ForecastProvider
	driver    *scenario.Driver
	metrics   *Metrics
	log       zerolog.Logger
}

// NewRunner creates a runner. forecasts may be nil, in which case baseline is
// called directly.
func NewRunner(baseline *forecast.Baseline, forecasts ForecastProvider, config PipelineConfig, metrics *Metrics) (*Runner, error) {
	if baseline == nil {
		return nil, fmt.Errorf("%w: baseline forecaster is required", domain.ErrInvalidParameter)
	}
	if len(config.LeadTimes) == 0 || len(config.ServiceLevels) == 0 {
		return nil, fmt.Errorf("%w: lead times and service levels must not be empty", domain.ErrInvalidParameter)
	}
	if forecasts == nil {
		forecasts = DirectForecasts(baseline)
	}

	calculator := policy.NewCalculator(baseline, nil)

	return &Runner{
		config:    config,
		strategy:  baseline.Strategy(),
		forecasts: forecasts,
		driver:    scenario.NewDriver(calculator, baseline),
		metrics:   metrics,
		log:       logger.Log.With().Str("pipeline", config.Name).Logger(),
	}, nil
}

// Run processes every series. onHand supplies the current inventory per SKU;
// SKUs missing from it are excluded. Cancelling ctx stops enqueueing new SKUs
// and returns ctx.Err() with the outcomes finished so far.
func (r *Runner) Run(ctx context.Context, series []domain.DemandSeries, onHand map[string]float64) ([]SKUOutcome, error) {
	workerCount := r.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	type job struct {
		index  int
		series domain.DemandSeries
	}

	jobChan := make(chan job, workerCount)
	results := make([]SKUOutcome, len(series))
	done := make([]bool, len(series))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobChan {
				qty, ok := onHand[j.series.SKU()]
				var onHandPtr *float64
				if ok {
					onHandPtr = &qty
				}
				outcome := r.ProcessSKU(ctx, j.series, onHandPtr)
				r.log.Debug().
					Int("worker", workerID).
					Str("sku", outcome.SKU).
					Str("status", outcome.Status.String()).
					Dur("duration", outcome.Duration).
					Msg("sku processed")
				results[j.index] = outcome
				done[j.index] = true
			}
		}(i)
	}

	// Enqueue jobs
	var runErr error
enqueue:
	for i, s := range series {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break enqueue
		case jobChan <- job{index: i, series: s}:
		}
	}
	close(jobChan)

	// Wait for all workers
	wg.Wait()

	outcomes := make([]SKUOutcome, 0, len(series))
	for i, ok := range done {
		if ok {
			outcomes = append(outcomes, results[i])
		}
	}
	sortOutcomes(outcomes)

	return outcomes, runErr
}

// ProcessSKU runs forecast, backtest eligibility and the scenario sweep for
// one series. onHand nil excludes the SKU.
func (r *Runner) ProcessSKU(ctx context.Context, series domain.DemandSeries, onHand *float64) SKUOutcome {
	start := time.Now()
	outcome := r.processSKU(ctx, series, onHand)
	outcome.Duration = time.Since(start)
	r.metrics.observe(outcome)

	if outcome.Status == domain.OutcomeExcluded {
		log := logger.ForSKU(outcome.SKU)
		log.Info().
			Str("reason", string(outcome.Reason)).
			Str("detail", outcome.Detail).
			Msg("sku excluded")
	}
	return outcome
}

func (r *Runner) processSKU(ctx context.Context, series domain.DemandSeries, onHand *float64) SKUOutcome {
	outcome := SKUOutcome{SKU: series.SKU()}

	// 1. Forecast
	fc, err := r.forecasts.ForecastSeries(ctx, series, r.config.forecastHorizon())
	if err != nil {
		return exclude(outcome, err)
	}
	outcome.Forecast = &fc

	// 2. Sufficient history: the longest lead time must be evaluable
	report, err := forecast.Backtest(series, r.config.maxLeadTime(), r.strategy)
	outcome.Backtest = &report
	if err != nil {
		return exclude(outcome, err)
	}

	// 3. Inventory position
	if onHand == nil {
		return exclude(outcome, fmt.Errorf("%w: no on-hand quantity for %s", domain.ErrInvalidParameter, series.SKU()))
	}

	// 4. Scenario sweep
	decisions, err := r.driver.Sweep(domain.PolicyInputs{
		OnHand:   *onHand,
		Forecast: fc,
		Series:   &series,
	}, r.config.LeadTimes, r.config.ServiceLevels)
	if err != nil {
		return exclude(outcome, err)
	}

	outcome.Status = domain.OutcomeRecommended
	outcome.Decisions = decisions
	return outcome
}

func exclude(outcome SKUOutcome, err error) SKUOutcome {
	outcome.Status = domain.OutcomeExcluded
	outcome.Reason = domain.KindOf(err)
	outcome.Detail = err.Error()
	return outcome
}
