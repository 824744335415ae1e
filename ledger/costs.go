package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/console/store"
)

// TokenUsage holds token counts for a single model invocation.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// tokenRate prices a model in credits per million tokens.
type tokenRate struct {
	input  float64
	output float64
}

// Credits per million tokens, snapshot of provider list prices. Unknown
// models meter at zero rather than failing the run.
var modelPricing = map[string]tokenRate{
	"claude-sonnet-4-20250514":  {input: 3.0, output: 15.0},
	"claude-opus-4-20250514":    {input: 15.0, output: 75.0},
	"claude-haiku-4-5-20251001": {input: 0.8, output: 4.0},
	"gpt-4o":                    {input: 2.5, output: 10.0},
	"gpt-4o-mini":               {input: 0.15, output: 0.6},
}

// CostCalculator prices model token usage and agent runs. All results are
// rounded to 6 decimal places, matching ledger write precision.
type CostCalculator struct {
	logger *slog.Logger
}

// NewCostCalculator creates a CostCalculator.
func NewCostCalculator(logger *slog.Logger) *CostCalculator {
	return &CostCalculator{logger: logger}
}

// LLMCost computes the credit cost of a model invocation from token counts.
// Unknown models cost zero and log a warning.
func (c *CostCalculator) LLMCost(model string, usage TokenUsage) float64 {
	rate, ok := modelPricing[model]
	if !ok {
		c.logger.Warn("unknown model, metering at zero cost", "model", model)
		return 0
	}
	in := float64(usage.InputTokens) / 1e6 * rate.input
	out := float64(usage.OutputTokens) / 1e6 * rate.output
	return round6(in + out)
}

// RunCost combines an agent's base per-run cost with its model cost.
func (c *CostCalculator) RunCost(baseCost, llmCost float64) float64 {
	return round6(baseCost + llmCost)
}

// PipelineCost sums the costs of a pipeline's completed steps.
func (c *CostCalculator) PipelineCost(stepCosts []float64) float64 {
	var total float64
	for _, cost := range stepCosts {
		total += cost
	}
	return round6(total)
}

// RunUsage describes a completed agent run for metering.
type RunUsage struct {
	RunID        string
	AgentID      string
	Model        string
	InputTokens  int
	OutputTokens int
	BaseCost     float64
}

// Meter prices completed runs and records them as ledger deductions.
type Meter struct {
	calc    *CostCalculator
	credits *Service
	logger  *slog.Logger
}

// NewMeter creates a Meter over the given calculator and ledger service.
func NewMeter(calc *CostCalculator, credits *Service, logger *slog.Logger) *Meter {
	return &Meter{
		calc:    calc,
		credits: credits,
		logger:  logger,
	}
}

// RecordRun deducts the run's credit cost from the tenant's ledger. Runs
// that meter at zero cost leave no ledger trace and return a nil entry.
// InsufficientCreditsError passes through to the caller.
func (m *Meter) RecordRun(ctx context.Context, tenantID string, run RunUsage) (*store.LedgerEntry, error) {
	llm := m.calc.LLMCost(run.Model, TokenUsage{
		InputTokens:  run.InputTokens,
		OutputTokens: run.OutputTokens,
	})
	cost := m.calc.RunCost(run.BaseCost, llm)
	if cost <= 0 {
		m.logger.Debug("run metered at zero cost",
			"tenant_id", tenantID,
			"run_id", run.RunID,
			"model", run.Model,
		)
		return nil, nil
	}

	description := fmt.Sprintf("agent run %s (%s)", run.RunID, run.Model)
	var ref *Ref
	if run.RunID != "" {
		ref = &Ref{ID: run.RunID, Type: "run"}
	}
	return m.credits.Deduct(ctx, tenantID, cost, description, run.AgentID, ref)
}
