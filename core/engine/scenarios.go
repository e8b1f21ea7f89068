package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fibre-cost/core/cost"
	"fibre-cost/core/input"
	"fibre-cost/core/risk"
	"fibre-cost/core/simulation"
	"fibre-cost/core/types"
)

// ScenarioMethods is the fixed comparison order
var ScenarioMethods = []types.BuildMethod{
	types.BuildUnderground,
	types.BuildOverhead,
	types.BuildHybrid,
}

// DefaultScenarioConfidence is reported for a row that failed before scoring
const DefaultScenarioConfidence = 0.6

// CompareScenarios prices the site once per build method without any oracle
// involvement. Methods run concurrently on independent copies; a failing
// method keeps its partial row, so exactly one row per method is returned.
func (e *Engine) CompareScenarios(ctx context.Context, params types.SiteParams) ([]types.ScenarioRow, error) {
	base, err := input.Normalize(params)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.CompareScenarios")
	defer span.End()

	rows := make([]types.ScenarioRow, len(ScenarioMethods))
	g, gctx := errgroup.WithContext(ctx)
	for i, method := range ScenarioMethods {
		g.Go(func() error {
			rows[i] = e.scenario(gctx, base.Clone(), method)
			return nil
		})
	}
	_ = g.Wait()

	for _, row := range rows {
		if row.Error != "" {
			e.log.Warn("scenario degraded",
				zap.String("method", row.Method.String()),
				zap.String("error", row.Error))
		}
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (e *Engine) scenario(ctx context.Context, req *types.EstimationRequest, method types.BuildMethod) (row types.ScenarioRow) {
	ctx, span := e.tracer.Start(ctx, "engine.scenario",
		trace.WithAttributes(attribute.String("method", method.String())))
	defer span.End()

	req.BuildMethod = method
	req.RiskMultiplier = risk.Base
	req.ConfidenceScore = DefaultScenarioConfidence

	defer func() {
		if r := recover(); r != nil {
			row.Error = fmt.Sprintf("scenario panicked: %v", r)
		}
		row.Method = method
		row.BaseCost = req.BaseCost
		row.FinalCost = req.FinalCost
		row.RiskMultiplier = req.RiskMultiplier
		row.ConfidenceScore = req.ConfidenceScore
		row.TotalDays = req.Simulation.TotalDays
	}()

	c, err := e.loadCatalog(ctx)
	if err != nil {
		span.RecordError(err)
		return types.ScenarioRow{Error: err.Error()}
	}

	cost.Apply(req, c)
	risk.Apply(req)
	simulation.Apply(req)
	Aggregate(req, e.config.AnomalyThreshold)
	return types.ScenarioRow{}
}

// Recommend picks the cheapest method whose risk is within the governance
// threshold, or the lowest-risk method when none qualifies. Degraded rows are
// never recommended; ok is false when every row is degraded.
func Recommend(rows []types.ScenarioRow, riskThreshold float64) (types.ScenarioRow, bool) {
	var best types.ScenarioRow
	found := false
	for _, row := range rows {
		if row.Error != "" || row.RiskMultiplier > riskThreshold {
			continue
		}
		if !found || row.FinalCost.LessThan(best.FinalCost) {
			best, found = row, true
		}
	}
	if found {
		return best, true
	}

	for _, row := range rows {
		if row.Error != "" {
			continue
		}
		if !found || row.RiskMultiplier < best.RiskMultiplier {
			best, found = row, true
		}
	}
	return best, found
}
