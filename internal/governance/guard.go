package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/tools"
)

// DeniedError is the failure a guarded tool reports on a policy denial.
type DeniedError struct {
	Tool   string
	Reason string
}

func (e *DeniedError) Error() string {
	return "policy denied: " + e.Reason
}

var ErrDenied = errors.New("policy denied")

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// guarded evaluates the policy before every invocation of the wrapped tool.
type guarded struct {
	tools.Tool
	engine PolicyEngine
	logger *observability.Logger
}

func (g *guarded) Invoke(ctx context.Context, params map[string]any) (string, error) {
	res, err := g.engine.Evaluate(ctx, Request{Tool: g.Name(), Parameters: params})
	if err != nil {
		return "", fmt.Errorf("policy evaluation for %s: %w", g.Name(), err)
	}
	g.logger.LogPolicyCheck(g.Name(), string(res.Effect), res.Reason)
	if res.Effect == EffectDeny {
		return "", &DeniedError{Tool: g.Name(), Reason: res.Reason}
	}
	return g.Tool.Invoke(ctx, params)
}

// Guard returns a registry holding every tool of r wrapped by engine. The
// original registry is left untouched.
func Guard(r *tools.Registry, engine PolicyEngine, logger *observability.Logger) *tools.Registry {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	out := tools.NewRegistry()
	for _, t := range r.List() {
		out.Register(&guarded{Tool: t, engine: engine, logger: logger})
	}
	return out
}
