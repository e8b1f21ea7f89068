// Package engine - Estimation pipeline orchestrator
// ENFORCES the execution flow of one run:
// 1. Build method decision (advisory, heuristic fallback)
// 2. Cost computation (catalog failure is fatal)
// 3. Optimization suggestions and cost review
// 4. Risk computation and narrative
// 5. Simulation and aggregation
// 6. Output validation (bounded retry loop)
// 7. Strategy note or governance escalation
// 8. Memory commit
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/metrics"
)

// OrchestrationPhase represents execution phases
type OrchestrationPhase int

const (
	PhaseInit OrchestrationPhase = iota
	PhaseBuildMethodDecision
	PhaseCostComputation
	PhaseOptimizationSuggestion
	PhaseCostValidation
	PhaseRiskComputation
	PhaseRiskNarrative
	PhaseSimulation
	PhaseAggregation
	PhaseOutputValidation
	PhaseStrategyNote
	PhaseMemoryCommit
	PhaseDone
)

// String returns the phase name
func (p OrchestrationPhase) String() string {
	names := []string{
		"init", "build_method_decision", "cost_computation", "optimization_suggestion",
		"cost_validation", "risk_computation", "risk_narrative", "simulation",
		"aggregation", "output_validation", "strategy_note", "memory_commit", "done",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// Stage outcomes, as reported to metrics
const (
	outcomeOK       = "ok"
	outcomeFallback = "fallback"
	outcomeError    = "error"
)

// PhaseOrderError indicates phases executed out of order
type PhaseOrderError struct {
	Required OrchestrationPhase
	Current  OrchestrationPhase
}

func (e *PhaseOrderError) Error() string {
	return fmt.Sprintf("phase %s cannot follow %s", e.Required, e.Current)
}

// pipelineRun tracks the phase of one estimation run.
// Phases only move forward; a retry rewinds explicitly.
type pipelineRun struct {
	requestID string
	attempt   int
	phase     OrchestrationPhase
	started   bool
	fallbacks int

	log    *zap.Logger
	tracer trace.Tracer
}

func newPipelineRun(requestID string, log *zap.Logger, tracer trace.Tracer) *pipelineRun {
	return &pipelineRun{
		requestID: requestID,
		phase:     PhaseInit,
		log:       log,
		tracer:    tracer,
	}
}

// rewind moves the run back to phase for another attempt
func (r *pipelineRun) rewind(phase OrchestrationPhase) {
	r.phase = phase - 1
	r.started = true
}

// stage executes fn as the given phase. fn reports whether it fell back to a
// sentinel; a returned error is fatal for the run.
func (r *pipelineRun) stage(ctx context.Context, phase OrchestrationPhase, fn func(ctx context.Context) (bool, error)) error {
	if r.started && phase <= r.phase {
		err := &PhaseOrderError{Required: phase, Current: r.phase}
		metrics.IncPhase(phase.String(), outcomeError)
		r.log.Error("stage skipped", zap.Int("attempt", r.attempt), zap.Error(err))
		return ferrors.Wrap(ferrors.TypeInternal, "estimation pipeline out of order", err)
	}
	r.phase = phase
	r.started = true

	ctx, span := r.tracer.Start(ctx, "engine."+phase.String(),
		trace.WithAttributes(
			attribute.String("request_id", r.requestID),
			attribute.Int("attempt", r.attempt),
		))
	defer span.End()

	start := time.Now()
	fellBack, err := fn(ctx)

	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case fellBack:
		outcome = outcomeFallback
		r.fallbacks++
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	metrics.IncPhase(phase.String(), outcome)

	r.log.Debug("phase complete",
		zap.String("phase", phase.String()),
		zap.Int("attempt", r.attempt),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
	return err
}
