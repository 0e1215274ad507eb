package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/rahul/gdforge/internal/agent"
	"github.com/rahul/gdforge/internal/godot"
	"github.com/rahul/gdforge/internal/governance"
	"github.com/rahul/gdforge/internal/llm"
	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/plan"
	"github.com/rahul/gdforge/internal/store"
	"github.com/rahul/gdforge/internal/tools"
	"github.com/rahul/gdforge/pkg/config"
)

// app owns everything one process invocation builds.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	status   *observability.Status
	term     *observability.TermWriter
	journal  *store.Journal
	workflow *agent.Workflow
	closers  []func()
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, configPath, logLevel, provider string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	term := observability.NewTermWriter(os.Stderr)
	logger, err := observability.NewLogger(observability.Options{
		Level:      cfg.Logging.Level,
		Output:     term,
		LLMLogPath: cfg.Logging.LLMLogPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		status:  observability.NewStatus(),
		term:    term,
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	name, pCfg, err := cfg.GetProvider(provider)
	if err != nil {
		a.Close()
		return nil, err
	}
	gen, err := llm.New(ctx, name, pCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Zap().Info("llm provider selected", zap.String("provider", name), zap.String("model", pCfg.Model))

	prompts := agent.NewPromptManager(cfg.Personas.Directory, cfg.Personas.Analyst, cfg.Personas.Architect, cfg.Personas.Developer)
	if _, err := prompts.Prompts(); err != nil {
		a.Close()
		return nil, err
	}

	registry, closeRegistry := buildRegistry(cfg, logger)
	a.closers = append(a.closers, closeRegistry)

	engine, err := governance.FromConfig(cfg.Policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	guarded := governance.Guard(registry, engine, logger)

	journal, err := store.NewJournal(cfg.Journal.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.journal = journal
	a.closers = append(a.closers, func() { _ = journal.Close() })

	pipeline := agent.NewPipeline(llm.NewRecording(name, gen, logger), prompts, guarded, cfg.Timeouts.Generation.Std(), logger, a.metrics)
	pipeline.Status = a.status
	executor := plan.NewExecutor(guarded, logger, a.metrics, cfg.Timeouts.Command.Std())

	a.workflow = agent.NewWorkflow(pipeline, executor, logger, a.metrics)
	a.workflow.Recorder = journal
	a.workflow.Status = a.status
	return a, nil
}

// buildRegistry registers the editor and headless commands. The returned
// func releases the editor session and stops any running project.
func buildRegistry(cfg *config.Config, logger *observability.Logger) (*tools.Registry, func()) {
	session := godot.NewSession(cfg.Godot.URL)
	process := godot.NewProcess(cfg.Godot.Executable)

	registry := tools.NewRegistry()
	tools.RegisterEditorCommands(registry, session)
	tools.RegisterHeadlessCommands(registry, process, cfg.Godot.ProjectPath)
	tools.RegisterProjectFiles(registry, cfg.Godot.ProjectPath)

	return registry, func() {
		if process.Running() {
			logger.Zap().Info("stopping project", zap.String("result", process.StopProject()))
		}
		_ = session.Close()
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) printRun(w io.Writer, res *agent.Result, err error) {
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s\nrun %s: %d attempt(s), %d correction(s)\n", res.Message, res.RunID, res.Attempts, res.Corrections)
	if attempts, jerr := a.journal.Attempts(res.RunID); jerr == nil {
		for _, at := range attempts {
			status := "ok"
			if at.FailedIndex >= 0 {
				status = fmt.Sprintf("failed at command %d: %s", at.FailedIndex, at.Reason)
			}
			fmt.Fprintf(w, "  attempt %d: %s\n", at.Number, status)
		}
	}
}
