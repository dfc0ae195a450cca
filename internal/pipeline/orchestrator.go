package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/dataset"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/pkg/logger"
)

// DemandSource supplies the series and on-hand quantities of one run.
type DemandSource interface {
	Load(ctx context.Context) (dataset.ReadResult, map[string]float64, error)
}

// DecisionSink receives the result of a finished run.
type DecisionSink interface {
	Write(ctx context.Context, result RunResult) error
}

// Orchestrator coordinates one recommendation run: load, fan out, publish.
type Orchestrator struct {
	runner  *Runner
	sinks   []DecisionSink
	metrics *Metrics
	now     func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(runner *Runner, metrics *Metrics, sinks ...DecisionSink) *Orchestrator {
	return &Orchestrator{
		runner:  runner,
		sinks:   sinks,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run loads demand from source, computes outcomes for every SKU and writes
// them to each sink in order. SKUs the source rejected are reported as
// invalid_parameter exclusions.
func (o *Orchestrator) Run(ctx context.Context, source DemandSource) (RunResult, error) {
	result := RunResult{
		Run:    domain.RunSummary{ID: uuid.NewString(), StartedAt: o.now().UTC()},
		Status: StatusProcessing,
	}
	log := logger.Log.With().Str("run_id", result.Run.ID).Logger()

	data, onHand, err := source.Load(ctx)
	if err != nil {
		return o.fail(result, fmt.Errorf("failed to load demand: %w", err))
	}
	log.Info().
		Int("series", len(data.Series)).
		Int("rejected", len(data.Rejected)).
		Int("on_hand", len(onHand)).
		Msg("demand loaded")

	outcomes, err := o.runner.Run(ctx, data.Series, onHand)
	if err != nil {
		return o.fail(result, fmt.Errorf("run interrupted after %d skus: %w", len(outcomes), err))
	}

	for sku, rejectErr := range data.Rejected {
		outcome := exclude(SKUOutcome{SKU: sku}, rejectErr)
		o.metrics.observe(outcome)
		outcomes = append(outcomes, outcome)
	}
	sortOutcomes(outcomes)

	result.Outcomes = outcomes
	for _, outcome := range outcomes {
		if outcome.Status == domain.OutcomeRecommended {
			result.Run.Recommended++
		} else {
			result.Run.Excluded++
		}
	}
	result.Run.FinishedAt = o.now().UTC()
	result.Status = StatusCompleted

	for _, sink := range o.sinks {
		if err := sink.Write(ctx, result); err != nil {
			result.Status = StatusFailed
			o.metrics.observeRun(result.Status)
			return result, fmt.Errorf("failed to write results: %w", err)
		}
	}

	o.metrics.observeRun(result.Status)
	log.Info().
		Int("recommended", result.Run.Recommended).
		Int("excluded", result.Run.Excluded).
		Dur("elapsed", result.Run.FinishedAt.Sub(result.Run.StartedAt)).
		Msg("run completed")

	return result, nil
}

func (o *Orchestrator) fail(result RunResult, err error) (RunResult, error) {
	result.Status = StatusFailed
	result.Run.FinishedAt = o.now().UTC()
	o.metrics.observeRun(result.Status)
	logger.Log.Error().Err(err).Str("run_id", result.Run.ID).Msg("run failed")
	return result, err
}
