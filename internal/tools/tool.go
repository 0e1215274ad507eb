package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool defines the interface for every command a plan can name.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	// Invoke runs the command. A non-nil error is a command failure; its
	// message is the human-readable reason.
	Invoke(ctx context.Context, params map[string]any) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

// Get returns the named tool, or nil when it is not registered.
func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Tools))
	for name := range r.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	names := r.Names()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.Tools[name])
	}
	return out
}

// requireParams checks the schema's "required" list against params.
func requireParams(t Tool, params map[string]any) error {
	required, _ := t.Parameters()["required"].([]string)
	for _, key := range required {
		v, ok := params[key]
		if !ok || v == nil {
			return fmt.Errorf("missing required parameter %q for %s", key, t.Name())
		}
	}
	return nil
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
