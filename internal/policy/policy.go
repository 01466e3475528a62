// Package policy decides the process exit code of a run from its result, the
// on-findings setting and an optional CEL gate over the findings summary.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/sbomscan/internal/config"
	"github.com/daimoniac/sbomscan/internal/orchestrator"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// Exit codes
const (
	ExitOK     = 0
	ExitFailed = 1
)

// Engine evaluates run results against the configured policy
type Engine struct {
	logger     *slog.Logger
	onFindings string
	expression string
	program    cel.Program // nil when no gate is configured
}

// NewEngine creates a policy engine. The policy expression, when set, must
// evaluate to true for the run to pass. It is compiled here so an invalid
// expression fails at startup.
//
// Available gate variables:
//   - total, critical, high, medium, low, info: counts from the findings summary
//   - findings: list of maps with keys severity, title, type, status, recommendation
func NewEngine(cfg config.PolicyConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	onFindings := cfg.OnFindings
	if onFindings == "" {
		onFindings = config.OnFindingsFail
	}

	engine := &Engine{
		logger:     logger,
		onFindings: onFindings,
		expression: cfg.Expression,
	}

	if cfg.Expression == "" {
		return engine, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("total", cel.IntType),
		cel.Variable("critical", cel.IntType),
		cel.Variable("high", cel.IntType),
		cel.Variable("medium", cel.IntType),
		cel.Variable("low", cel.IntType),
		cel.Variable("info", cel.IntType),
		cel.Variable("findings", cel.ListType(cel.MapType(cel.StringType, cel.StringType))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	engine.program = program
	return engine, nil
}

// ExitCode returns the process exit code for result
func (e *Engine) ExitCode(result orchestrator.RunResult) int {
	code := ExitOK
	switch result.(type) {
	case orchestrator.Error:
		code = ExitFailed
	case orchestrator.Failure:
		if e.onFindings == config.OnFindingsFail {
			code = ExitFailed
		}
	}

	summary, ok := orchestrator.SummaryOf(result)
	if !ok || e.program == nil {
		return code
	}

	passed, err := e.Gate(summary)
	if err != nil {
		e.logger.Error("failed to evaluate findings gate",
			"expression", e.expression,
			"error", err)
		return ExitFailed
	}
	if !passed {
		e.logger.Warn("findings gate failed",
			"expression", e.expression,
			"total", summary.Total,
			"critical", summary.Critical,
			"high", summary.High,
			"medium", summary.Medium,
			"low", summary.Low)
		return ExitFailed
	}
	return code
}

// Gate reports whether summary satisfies the policy expression. It passes
// when no expression is configured.
func (e *Engine) Gate(summary scanapi.FindingsSummary) (bool, error) {
	if e.program == nil {
		return true, nil
	}

	findings := make([]map[string]string, 0, len(summary.Findings))
	for _, f := range summary.Findings {
		recommendation := ""
		if f.Recommendation != nil {
			recommendation = f.Recommendation.Description
		}
		findings = append(findings, map[string]string{
			"severity":       string(f.Severity),
			"title":          f.Title,
			"type":           string(f.Type),
			"status":         f.Status,
			"recommendation": recommendation,
		})
	}

	out, _, err := e.program.Eval(map[string]interface{}{
		"total":    summary.Total,
		"critical": summary.Critical,
		"high":     summary.High,
		"medium":   summary.Medium,
		"low":      summary.Low,
		"info":     summary.Info,
		"findings": findings,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy expression: %w", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy expression did not return a boolean: %v", out.Value())
	}
	return passed, nil
}
