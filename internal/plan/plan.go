// Package plan holds the command plan produced by the development stage:
// its decoding from model output and its fail-fast execution against the
// tool registry.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Command is one named operation. Parameters are passed through to the
// tool untouched.
type Command struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// UnmarshalJSON accepts "command" as an alias of "name".
func (c *Command) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name       string         `json:"name"`
		Command    string         `json:"command"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	if c.Name == "" {
		c.Name = raw.Command
	}
	c.Parameters = raw.Parameters
	if c.Parameters == nil {
		c.Parameters = map[string]any{}
	}
	return nil
}

// Plan is an ordered list of commands. Execution order is list order.
type Plan struct {
	Commands []Command `json:"commands"`
}

func (p Plan) Len() int { return len(p.Commands) }

// Names returns the command names in order.
func (p Plan) Names() []string {
	names := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		names[i] = c.Name
	}
	return names
}

// JSON renders the plan as an indented command array.
func (p Plan) JSON() string {
	cmds := p.Commands
	if cmds == nil {
		cmds = []Command{}
	}
	data, err := json.MarshalIndent(cmds, "", "  ")
	if err != nil {
		// Parameters came from JSON, so they always re-encode.
		return "[]"
	}
	return string(data)
}

// ParseError is returned when model output is not a command list.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid command plan: %s: %v", e.Reason, e.Err)
	}
	return "invalid command plan: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes model output into a Plan. The text must be exactly one
// JSON value, optionally inside one markdown code fence: either an array
// of commands or an object with a "commands" array.
func Parse(text string) (Plan, error) {
	body := stripFence(strings.TrimSpace(text))
	if body == "" {
		return Plan{}, &ParseError{Reason: "empty output"}
	}

	var raw json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return Plan{}, &ParseError{Reason: "not JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Plan{}, &ParseError{Reason: "unexpected text after the command list"}
	}

	var cmds []Command
	switch trimmed := bytes.TrimSpace(raw); {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &cmds); err != nil {
			return Plan{}, &ParseError{Reason: "malformed command list", Err: err}
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var wrapped struct {
			Commands *[]Command `json:"commands"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return Plan{}, &ParseError{Reason: "malformed command list", Err: err}
		}
		if wrapped.Commands == nil {
			return Plan{}, &ParseError{Reason: `object has no "commands" array`}
		}
		cmds = *wrapped.Commands
	default:
		return Plan{}, &ParseError{Reason: "expected a JSON array of commands"}
	}

	for i, c := range cmds {
		if strings.TrimSpace(c.Name) == "" {
			return Plan{}, &ParseError{Reason: fmt.Sprintf("command %d has no name", i)}
		}
	}
	return Plan{Commands: cmds}, nil
}

// stripFence removes one ```lang ... ``` wrapper.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s[3:], "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		first := strings.TrimSpace(inner[:nl])
		if first == "" || !strings.ContainsAny(first, "[{") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
