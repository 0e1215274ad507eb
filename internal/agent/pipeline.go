// Package agent turns a request into a command plan with three persona
// stages and drives the plan through execution, asking for corrected plans
// when execution fails.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/gdforge/internal/llm"
	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/plan"
	"github.com/rahul/gdforge/internal/tools"
)

const (
	StageAnalysis     = "analysis"
	StageArchitecture = "architecture"
	StageDevelopment  = "development"
	StageCorrection   = "correction"
)

// PromptSource supplies the stage role prompts. *PromptManager implements it.
type PromptSource interface {
	Prompts() (RolePrompts, error)
}

// Catalog lists the commands a plan may use. *tools.Registry implements it.
type Catalog interface {
	List() []tools.Tool
}

// StageError is a failed stage call or an unusable stage artifact.
type StageError struct {
	Stage string
	Err   error
	// Interrupted is the call context's error when the call ran out of
	// time or was cancelled.
	Interrupted error
}

func (e *StageError) Error() string {
	if e.Interrupted != nil {
		return fmt.Sprintf("%s stage interrupted: %v", e.Stage, e.Interrupted)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Interrupted != nil {
		return []error{e.Err, e.Interrupted}
	}
	return []error{e.Err}
}

// Correction is a request for a replacement plan: the plan that failed and
// how it failed.
type Correction struct {
	FailedPlan plan.Plan
	Failure    plan.Failure
}

// Render formats the correction as development-stage input.
func (c Correction) Render() string {
	var b strings.Builder
	b.WriteString("The previous execution plan failed. Your task is to analyze the error and provide a new, corrected JSON plan that fixes the issue.\n")
	b.WriteString("Original Plan that Failed:\n")
	b.WriteString(c.FailedPlan.JSON())
	b.WriteString("\n")
	fmt.Fprintf(&b, "The command at index %d (%s) failed. The error message from the server was:\n", c.Failure.Index, c.Failure.Command.Name)
	b.WriteString(c.Failure.Reason)
	b.WriteString("\n")
	b.WriteString("Please provide a full, new JSON array of commands that corrects this error and still accomplishes the original goal. Do not include any explanations or markdown, only the raw JSON array.")
	return b.String()
}

// Pipeline runs the analysis, architecture and development stages.
type Pipeline struct {
	Generator llm.Generator
	Prompts   PromptSource
	Catalog   Catalog
	// Timeout bounds each generation call. Zero means no per-call limit.
	Timeout time.Duration
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Status  *observability.Status
}

func NewPipeline(gen llm.Generator, prompts PromptSource, catalog Catalog, timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Pipeline{
		Generator: gen,
		Prompts:   prompts,
		Catalog:   catalog,
		Timeout:   timeout,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// Plan produces the first plan for request. Each stage starts only after
// the previous one returned.
func (p *Pipeline) Plan(ctx context.Context, request string) (plan.Plan, error) {
	prompts, err := p.Prompts.Prompts()
	if err != nil {
		return plan.Plan{}, &StageError{Stage: StageAnalysis, Err: err}
	}

	p.Status.Set(observability.PhaseAnalysis, request, 0)
	story, err := p.generate(ctx, StageAnalysis, prompts.Analyst,
		fmt.Sprintf("Refine the following user request into a user story: \"%s\"", request))
	if err != nil {
		return plan.Plan{}, err
	}

	p.Status.Set(observability.PhaseArchitecture, request, 0)
	techPlan, err := p.generate(ctx, StageArchitecture, prompts.Architect,
		fmt.Sprintf("Create a Godot-specific technical plan for the following user story: \"%s\"", story))
	if err != nil {
		return plan.Plan{}, err
	}

	p.Status.Set(observability.PhaseDevelopment, request, 0)
	text, err := p.generate(ctx, StageDevelopment, p.developerPrompt(prompts.Developer),
		fmt.Sprintf("Create a machine-readable JSON command plan for the following technical plan: \"%s\"", techPlan))
	if err != nil {
		return plan.Plan{}, err
	}
	return p.parse(ctx, StageDevelopment, text)
}

// Correct asks the development stage for a full replacement plan.
func (p *Pipeline) Correct(ctx context.Context, c Correction) (plan.Plan, error) {
	prompts, err := p.Prompts.Prompts()
	if err != nil {
		return plan.Plan{}, &StageError{Stage: StageCorrection, Err: err}
	}
	text, err := p.generate(ctx, StageCorrection, p.developerPrompt(prompts.Developer), c.Render())
	if err != nil {
		return plan.Plan{}, err
	}
	return p.parse(ctx, StageCorrection, text)
}

func (p *Pipeline) generate(ctx context.Context, stage, rolePrompt, input string) (string, error) {
	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := p.Generator.Generate(callCtx, rolePrompt, input)
	d := time.Since(start)
	p.Metrics.Generation(stage, d)

	runID := observability.RunID(ctx)
	if err != nil {
		serr := &StageError{Stage: stage, Err: err, Interrupted: callCtx.Err()}
		p.Logger.LogStageError(runID, stage, serr)
		return "", serr
	}
	p.Logger.LogStage(runID, stage, out, d)
	return out, nil
}

func (p *Pipeline) parse(ctx context.Context, stage, text string) (plan.Plan, error) {
	parsed, err := plan.Parse(text)
	if err != nil {
		serr := &StageError{Stage: stage, Err: err}
		p.Logger.LogStageError(observability.RunID(ctx), stage, serr)
		return plan.Plan{}, serr
	}
	return parsed, nil
}

// developerPrompt appends the available commands to the developer persona,
// so the model only plans commands the registry knows.
func (p *Pipeline) developerPrompt(persona string) string {
	if p.Catalog == nil {
		return persona
	}
	var lines []string
	for _, t := range p.Catalog.List() {
		schema, err := json.Marshal(t.Parameters())
		if err != nil {
			schema = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("- %s: %s\n  parameters: %s", t.Name(), t.Description(), schema))
	}
	if len(lines) == 0 {
		return persona
	}
	return fmt.Sprintf("%s\n\n## Available Commands:\n%s\n\nRespond with a JSON array of {\"name\", \"parameters\"} objects using only these commands.", persona, strings.Join(lines, "\n"))
}
