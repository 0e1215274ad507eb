package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rahul/gdforge/pkg/config"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request is one plan command about to be dispatched.
type Request struct {
	Tool       string
	Parameters map[string]any
}

// Arguments returns the parameters as compact JSON, the form argument
// patterns are matched against.
func (r Request) Arguments() string {
	if len(r.Parameters) == 0 {
		return "{}"
	}
	b, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Sprint(r.Parameters)
	}
	return string(b)
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates commands against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// Rule denies a command by name, or any command whose arguments match a
// pattern. A rule sets exactly one of the two.
type Rule struct {
	Command   string
	Arguments *regexp.Regexp
}

func (r Rule) matches(req Request, args string) bool {
	if r.Command != "" {
		return r.Command == req.Tool
	}
	return r.Arguments != nil && r.Arguments.MatchString(args)
}

func (r Rule) reason(tool string) string {
	if r.Command != "" {
		return fmt.Sprintf("command '%s' is restricted by policy", tool)
	}
	return fmt.Sprintf("arguments of '%s' match restricted pattern: %s", tool, r.Arguments)
}

// RuleEngine applies its rules in order; the first match denies.
// Everything else is allowed.
type RuleEngine struct {
	rules []Rule
}

// FromConfig builds an engine from the policy section of the config.
// Command rules come first.
func FromConfig(cfg config.PolicyConfig) (*RuleEngine, error) {
	e := &RuleEngine{}
	for _, name := range cfg.DeniedCommands {
		e.DenyCommand(name)
	}
	for _, pattern := range cfg.DeniedArguments {
		if err := e.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("policy.denied_arguments %q: %w", pattern, err)
		}
	}
	return e, nil
}

func (e *RuleEngine) DenyCommand(name string) {
	e.rules = append(e.rules, Rule{Command: name})
}

func (e *RuleEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.rules = append(e.rules, Rule{Arguments: re})
	return nil
}

func (e *RuleEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

func (e *RuleEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if len(e.rules) == 0 {
		return Result{Effect: EffectAllow, Reason: "no policy rules"}, nil
	}
	args := req.Arguments()
	for _, r := range e.rules {
		if r.matches(req, args) {
			return Result{Effect: EffectDeny, Reason: r.reason(req.Tool)}, nil
		}
	}
	return Result{Effect: EffectAllow, Reason: "approved by policy"}, nil
}
