// Package engine provides the API-primary estimation engine.
// CLI and HTTP are thin wrappers around this engine.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"fibre-cost/core/agents"
	"fibre-cost/core/catalog"
	"fibre-cost/core/cost"
	"fibre-cost/core/geo"
	"fibre-cost/core/history"
	"fibre-cost/core/input"
	"fibre-cost/core/optimization"
	"fibre-cost/core/oracle"
	"fibre-cost/core/risk"
	"fibre-cost/core/simulation"
	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
	"fibre-cost/internal/metrics"
	"fibre-cost/internal/telemetry"
)

// GovernanceMessage replaces the strategy note on high-risk runs
const GovernanceMessage = "Governance approval required due to high risk."

// RetryScope selects what an INVALID verdict re-executes
type RetryScope string

const (
	// RetryFull reruns every stage from the build method decision
	RetryFull RetryScope = "full"

	// RetryValidation repeats only the output validation call
	RetryValidation RetryScope = "validation"
)

// Defaults
const (
	DefaultMaxRetries              = 2
	DefaultAnomalyThreshold        = 200000
	DefaultGovernanceRiskThreshold = 1.5
)

// EngineConfig configures the estimation engine
type EngineConfig struct {
	// MaxRetries bounds INVALID verdicts; attempts = MaxRetries + 1
	MaxRetries int

	// RetryScope selects full reruns or validation-only retries
	RetryScope RetryScope

	// AnomalyThreshold flags final costs above it for review
	AnomalyThreshold decimal.Decimal

	// GovernanceRiskThreshold skips the strategy note above it
	GovernanceRiskThreshold float64

	// NearbyK is the provider lookup size
	NearbyK int
}

// DefaultEngineConfig returns the documented defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRetries:              DefaultMaxRetries,
		RetryScope:              RetryFull,
		AnomalyThreshold:        decimal.NewFromInt(DefaultAnomalyThreshold),
		GovernanceRiskThreshold: DefaultGovernanceRiskThreshold,
		NearbyK:                 geo.DefaultK,
	}
}

// AuditSink receives the full result of every run, keyed by request id
type AuditSink interface {
	Save(ctx context.Context, rec *types.AuditRecord) error
}

// Dependencies are the collaborators of the engine.
// Catalogs is required; everything else may be nil.
type Dependencies struct {
	Catalogs catalog.Store
	Oracle   oracle.Oracle
	History  history.Store
	Audit    AuditSink
	Locator  geo.Locator
}

// Engine is the primary API for estimation.
// All other interfaces (CLI, HTTP) are thin wrappers.
type Engine struct {
	catalogs catalog.Store
	panel    *agents.Panel
	history  history.Store
	audit    AuditSink
	locator  geo.Locator

	config EngineConfig

	log    *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// NewEngine creates a new estimation engine
func NewEngine(deps Dependencies, config EngineConfig) *Engine {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryScope == "" {
		config.RetryScope = RetryFull
	}
	if config.NearbyK <= 0 {
		config.NearbyK = geo.DefaultK
	}
	if !config.AnomalyThreshold.IsPositive() {
		config.AnomalyThreshold = decimal.NewFromInt(DefaultAnomalyThreshold)
	}
	if config.GovernanceRiskThreshold <= 0 {
		config.GovernanceRiskThreshold = DefaultGovernanceRiskThreshold
	}

	return &Engine{
		catalogs: deps.Catalogs,
		panel:    agents.NewPanel(deps.Oracle),
		history:  deps.History,
		audit:    deps.Audit,
		locator:  deps.Locator,
		config:   config,
		log:      logging.Named("engine"),
		tracer:   telemetry.Tracer("engine"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Run executes one estimation. A valid input fails only on a catalog error or
// an internal pipeline fault (a stage out of order); every advisory fault is
// recorded as a sentinel inside the returned request.
func (e *Engine) Run(ctx context.Context, params types.SiteParams) (*types.EstimationRequest, error) {
	start := e.now()

	base, err := input.Normalize(params)
	if err != nil {
		return nil, err
	}
	base.RequestID = e.newID()

	log := e.log.With(zap.String("request_id", base.RequestID))
	ctx, span := e.tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(attribute.String("request_id", base.RequestID)))
	defer span.End()

	run := newPipelineRun(base.RequestID, log, e.tracer)

	if err := run.stage(ctx, PhaseInit, func(ctx context.Context) (bool, error) {
		return e.resolveNearby(ctx, base, log), nil
	}); err != nil {
		return nil, err
	}

	var req *types.EstimationRequest
	for attempt := 1; ; attempt++ {
		run.attempt = attempt

		if attempt == 1 || e.config.RetryScope == RetryFull {
			if attempt > 1 {
				run.rewind(PhaseBuildMethodDecision)
			}
			// each attempt starts from the normalized input; assumptions
			// are append-only across attempts
			var carried []string
			if req != nil {
				carried = req.Assumptions
			}
			req = base.Clone()
			req.Assumptions = append(req.Assumptions, carried...)
			if err := e.estimate(ctx, run, req); err != nil {
				metrics.ObserveRun(strings.ToLower(string(ferrors.TypeOf(err))), attempt, e.now().Sub(start))
				log.Error("estimation aborted", zap.Int("attempt", attempt), zap.Error(err))
				return nil, err
			}
		} else {
			run.rewind(PhaseOutputValidation)
		}
		req.Attempts = attempt

		if err := run.stage(ctx, PhaseOutputValidation, func(ctx context.Context) (bool, error) {
			return e.validate(ctx, req), nil
		}); err != nil {
			return nil, err
		}

		if req.Validation.Passed() || attempt > e.config.MaxRetries {
			break
		}
		log.Info("output validation rejected estimate, retrying",
			zap.Int("attempt", attempt),
			zap.String("validation", req.Validation.String()))
	}

	if err := run.stage(ctx, PhaseStrategyNote, func(ctx context.Context) (bool, error) {
		if req.RiskMultiplier > e.config.GovernanceRiskThreshold {
			req.StrategyNote = GovernanceMessage
			return false, nil
		}
		req.StrategyNote = e.panel.StrategyNote(ctx, req)
		return req.StrategyNote == agents.FallbackStrategyNote, nil
	}); err != nil {
		return nil, err
	}

	if err := run.stage(ctx, PhaseMemoryCommit, func(ctx context.Context) (bool, error) {
		return e.commit(ctx, params, req, log), nil
	}); err != nil {
		return nil, err
	}

	if err := run.stage(ctx, PhaseDone, func(ctx context.Context) (bool, error) {
		return false, nil
	}); err != nil {
		return nil, err
	}

	if req.AnomalyFlag {
		metrics.IncAnomaly()
	}
	metrics.ObserveRun(string(req.Validation.Status), req.Attempts, e.now().Sub(start))
	span.SetAttributes(
		attribute.Int("attempts", req.Attempts),
		attribute.String("validation", string(req.Validation.Status)),
		attribute.String("final_cost", req.FinalCost.StringFixed(2)),
	)

	log.Info("estimation complete",
		zap.String("build_method", req.BuildMethod.String()),
		zap.String("final_cost", req.FinalCost.StringFixed(2)),
		zap.Float64("risk_multiplier", req.RiskMultiplier),
		zap.Bool("anomaly", req.AnomalyFlag),
		zap.String("validation", req.Validation.String()),
		zap.Int("attempts", req.Attempts),
		zap.Int("fallbacks", run.fallbacks))

	return req, nil
}

// estimate runs every stage from the build method decision to aggregation
func (e *Engine) estimate(ctx context.Context, run *pipelineRun, req *types.EstimationRequest) error {
	if err := run.stage(ctx, PhaseBuildMethodDecision, func(ctx context.Context) (bool, error) {
		d := e.panel.DecideBuildMethod(ctx, req)
		d.Apply(req)
		return d.Fallback, nil
	}); err != nil {
		return err
	}

	err := run.stage(ctx, PhaseCostComputation, func(ctx context.Context) (bool, error) {
		c, err := e.loadCatalog(ctx)
		if err != nil {
			return false, err
		}
		cost.Apply(req, c)
		return false, nil
	})
	if err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseOptimizationSuggestion, func(ctx context.Context) (bool, error) {
		suggestions, err := optimization.Suggest(optimization.ContextFrom(req))
		if err != nil {
			run.log.Warn("optimization heuristics failed", zap.Error(err))
			req.OptimizationSuggestions = []types.Suggestion{}
			return true, nil
		}
		req.OptimizationSuggestions = suggestions
		return false, nil
	}); err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseCostValidation, func(ctx context.Context) (bool, error) {
		review := e.panel.ReviewCost(ctx, req)
		req.CostValidation = review.Validation
		req.CostOptimization = agents.MergeOptimization(req.OptimizationSuggestions, review)
		return review.Fallback, nil
	}); err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseRiskComputation, func(ctx context.Context) (bool, error) {
		risk.Apply(req)
		return false, nil
	}); err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseRiskNarrative, func(ctx context.Context) (bool, error) {
		n := e.panel.AssessRisk(ctx, req)
		req.TopRisk = n.TopRisk
		req.RiskMitigation = n.Mitigation
		return n.Fallback, nil
	}); err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseSimulation, func(ctx context.Context) (bool, error) {
		simulation.Apply(req)
		return false, nil
	}); err != nil {
		return err
	}

	if err := run.stage(ctx, PhaseAggregation, func(ctx context.Context) (bool, error) {
		Aggregate(req, e.config.AnomalyThreshold)
		return false, nil
	}); err != nil {
		return err
	}
	return nil
}

func (e *Engine) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if e.catalogs == nil {
		return catalog.StaticStore{}.Load(ctx)
	}
	return e.catalogs.Load(ctx)
}

// validate asks the oracle to judge req and records the verdict.
// It reports true when an oracle failure forced the assumed-valid pass-through.
func (e *Engine) validate(ctx context.Context, req *types.EstimationRequest) bool {
	verdict, err := e.panel.ValidateOutput(ctx, req)
	switch {
	case err != nil:
		req.Validation = types.Validation{Status: types.ValidationErrorAssumedValid, Detail: err.Error()}
		return true
	case verdict.Valid:
		req.Validation = types.Validation{Status: types.ValidationValid}
	default:
		req.Validation = types.Validation{Status: types.ValidationInvalid, Detail: verdict.Issue}
	}
	return false
}

// resolveNearby fills the provider context from the locator when the caller
// supplied coordinates but no providers. It reports whether the lookup failed.
func (e *Engine) resolveNearby(ctx context.Context, req *types.EstimationRequest, log *zap.Logger) bool {
	if len(req.NearbyProviders) > 0 || e.locator == nil || req.Latitude == nil || req.Longitude == nil {
		return false
	}
	providers, err := e.locator.FindNearest(ctx, *req.Latitude, *req.Longitude, e.config.NearbyK)
	if err != nil {
		log.Warn("nearby provider lookup failed", zap.Error(err))
		return true
	}
	req.NearbyProviders = providers
	return false
}

// commit appends the historical record and hands the result to the audit
// sink. Persistence failures are logged; they never fail a finished run.
func (e *Engine) commit(ctx context.Context, params types.SiteParams, req *types.EstimationRequest, log *zap.Logger) bool {
	now := e.now().UTC()
	failed := false

	if e.history != nil {
		if _, err := e.history.Append(ctx, history.NewRecord(req, now)); err != nil {
			log.Error("history append failed", zap.Error(err))
			failed = true
		}
	}

	if e.audit != nil {
		rec := &types.AuditRecord{
			RequestID: req.RequestID,
			SiteRef:   req.SiteRef,
			Status:    types.AuditDraft,
			Inputs:    params,
			Result:    req.Clone(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.audit.Save(ctx, rec); err != nil {
			log.Error("audit hand-off failed", zap.Error(err))
			failed = true
		}
	}
	return failed
}

// Aggregate derives the final cost, confidence and anomaly flag:
// final = base * risk + regulatory + simulation adjustment.
func Aggregate(req *types.EstimationRequest, anomalyThreshold decimal.Decimal) {
	multiplier := req.RiskMultiplier
	if multiplier <= 0 {
		multiplier = risk.Base
	}
	req.FinalCost = req.BaseCost.
		Mul(decimal.NewFromFloat(multiplier)).
		Add(req.RegulatoryCost).
		Add(req.SimulationAdjustment)
	req.ConfidenceScore = risk.Confidence(multiplier)
	req.AnomalyFlag = req.FinalCost.GreaterThan(anomalyThreshold)
}
