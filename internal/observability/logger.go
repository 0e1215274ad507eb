package observability

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStage       EventType = "stage"
	EventTypePlan        EventType = "plan"
	EventTypeAttempt     EventType = "attempt"
	EventTypeCorrection  EventType = "correction"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeWorkflow    EventType = "workflow"
	EventTypeLLM         EventType = "llm"
)

// Logger emits structured events. Every event carries its type under the
// "event" key and, when known, the workflow run id under "run_id".
type Logger struct {
	z   *zap.Logger
	llm *zap.Logger
}

// Options configures NewLogger.
type Options struct {
	Level string
	// Output receives the console log. It defaults to stderr.
	Output io.Writer
	// LLMLogPath, when set, receives a copy of every llm event.
	LLMLogPath string
	// MaxLLMLogSize is the size at which the llm log is rotated.
	MaxLLMLogSize int64
}

func NewLogger(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var out zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.Output != nil {
		out = zapcore.AddSync(opts.Output)
	}
	z := zap.New(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), out, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	l := &Logger{z: z, llm: z}
	if opts.LLMLogPath != "" {
		maxSize := opts.MaxLLMLogSize
		if maxSize <= 0 {
			maxSize = 10 * 1024 * 1024 // 10MB
		}
		file := &rotatingFile{path: opts.LLMLogPath, maxSize: maxSize}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(cfg.EncoderConfig),
			zapcore.AddSync(file),
			zapcore.DebugLevel,
		)
		l.llm = z.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	return l, nil
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return FromZap(zap.NewNop())
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z, llm: z}
}

// Zap exposes the underlying logger for collaborators that need one.
func (l *Logger) Zap() *zap.Logger { return l.z }

func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) event(t EventType, runID string, fields ...zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	out = append(out, zap.String("event", string(t)))
	if runID != "" {
		out = append(out, zap.String("run_id", runID))
	}
	return append(out, fields...)
}

// Helper methods for common events

func (l *Logger) LogWorkflowStart(runID, prompt string) {
	l.z.Info("workflow started", l.event(EventTypeWorkflow, runID, zap.String("prompt", prompt))...)
}

func (l *Logger) LogWorkflowEnd(runID string, attempts int, err error) {
	if err != nil {
		l.z.Error("workflow failed", l.event(EventTypeWorkflow, runID, zap.Int("attempts", attempts), zap.Error(err))...)
		return
	}
	l.z.Info("workflow completed", l.event(EventTypeWorkflow, runID, zap.Int("attempts", attempts))...)
}

func (l *Logger) LogStage(runID, stage string, output string, d time.Duration) {
	l.z.Info("stage completed", l.event(EventTypeStage, runID,
		zap.String("stage", stage),
		zap.Int("output_bytes", len(output)),
		zap.Duration("duration", d),
	)...)
	l.z.Debug("stage output", l.event(EventTypeStage, runID, zap.String("stage", stage), zap.String("output", output))...)
}

func (l *Logger) LogStageError(runID, stage string, err error) {
	l.z.Error("stage failed", l.event(EventTypeStage, runID, zap.String("stage", stage), zap.Error(err))...)
}

func (l *Logger) LogPlan(runID string, attempt int, commands []string) {
	l.z.Info("plan ready", l.event(EventTypePlan, runID, zap.Int("attempt", attempt), zap.Strings("commands", commands))...)
}

func (l *Logger) LogAttempt(runID string, attempt, maxAttempts int, failedIndex int, reason string) {
	if reason == "" {
		l.z.Info("attempt succeeded", l.event(EventTypeAttempt, runID, zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts))...)
		return
	}
	l.z.Warn("attempt failed", l.event(EventTypeAttempt, runID,
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", maxAttempts),
		zap.Int("failed_index", failedIndex),
		zap.String("reason", reason),
	)...)
}

func (l *Logger) LogCorrection(runID string, attempt int, reason string) {
	l.z.Info("requesting corrected plan", l.event(EventTypeCorrection, runID, zap.Int("attempt", attempt), zap.String("reason", reason))...)
}

func (l *Logger) LogToolCall(runID string, index int, tool string, params map[string]any) {
	l.z.Info("executing command", l.event(EventTypeToolCall, runID, zap.Int("index", index), zap.String("tool", tool), zap.Any("parameters", params))...)
}

func (l *Logger) LogToolResult(runID string, index int, tool, result string, err error) {
	if err != nil {
		l.z.Warn("command failed", l.event(EventTypeToolResult, runID, zap.Int("index", index), zap.String("tool", tool), zap.Error(err))...)
		return
	}
	l.z.Info("command succeeded", l.event(EventTypeToolResult, runID, zap.Int("index", index), zap.String("tool", tool), zap.String("result", result))...)
}

func (l *Logger) LogPolicyCheck(tool, effect, reason string) {
	l.z.Info("policy evaluated", l.event(EventTypePolicyCheck, "", zap.String("tool", tool), zap.String("effect", effect), zap.String("reason", reason))...)
}

func (l *Logger) LogJournalError(runID string, err error) {
	l.z.Warn("journal write failed", l.event(EventTypeWorkflow, runID, zap.Error(err))...)
}

func (l *Logger) LogLLM(provider, rolePrompt, input, response string, d time.Duration, err error) {
	fields := l.event(EventTypeLLM, "",
		zap.String("provider", provider),
		zap.String("role_prompt", rolePrompt),
		zap.String("input", input),
		zap.String("response", response),
		zap.Duration("duration", d),
	)
	if err != nil {
		l.llm.Warn("llm call failed", append(fields, zap.Error(err))...)
		return
	}
	l.llm.Debug("llm call", fields...)
}

// rotatingFile is an append-only file that keeps one ".old" generation
// once it grows past maxSize.
type rotatingFile struct {
	mu      sync.Mutex
	path    string
	maxSize int64
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return 0, err
	}
	if info, err := os.Stat(r.path); err == nil && info.Size() > r.maxSize {
		oldPath := r.path + ".old"
		_ = os.Remove(oldPath)
		_ = os.Rename(r.path, oldPath)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(p)
}

func (r *rotatingFile) Sync() error { return nil }
