package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/gdforge/internal/tools"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array", `[{"name":"create_node","parameters":{"node_type":"Label"}}]`, []string{"create_node"}},
		{"surrounding whitespace", "\n  [{\"name\":\"save_scene\"}]  \n", []string{"save_scene"}},
		{"fenced", "```json\n[{\"name\":\"a\"},{\"name\":\"b\"}]\n```", []string{"a", "b"}},
		{"fenced without language", "```\n[{\"name\":\"a\"}]\n```", []string{"a"}},
		{"commands object", `{"commands":[{"name":"open_scene","parameters":{"path":"res://main.tscn"}}]}`, []string{"open_scene"}},
		{"legacy command key", `[{"command":"list_nodes","parameters":{"parent_path":"/root"}}]`, []string{"list_nodes"}},
		{"empty", `[]`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Names())
		})
	}
}

func TestParse_DefaultsParameters(t *testing.T) {
	p, err := Parse(`[{"name":"get_project_info"}]`)
	require.NoError(t, err)
	require.Len(t, p.Commands, 1)
	assert.NotNil(t, p.Commands[0].Parameters)
	assert.Empty(t, p.Commands[0].Parameters)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"blank", "   "},
		{"prose", "Here is your plan: create a label"},
		{"prose after array", `[{"name":"a"}] Let me know if you need more.`},
		{"prose before fence", "Here is the plan:\n```json\n[{\"name\":\"a\"}]\n```"},
		{"prose after fence", "```json\n[{\"name\":\"a\"}]\n```\nHope this helps!"},
		{"two fences", "```json\n[{\"name\":\"a\"}]\n```\n```json\n[{\"name\":\"b\"}]\n```"},
		{"two values", `[{"name":"a"}][{"name":"b"}]`},
		{"scalar", `42`},
		{"object without commands", `{"steps":[]}`},
		{"missing name", `[{"parameters":{"x":1}}]`},
		{"element not an object", `["create_node"]`},
		{"parameters not an object", `[{"name":"a","parameters":[1,2]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestPlan_JSON(t *testing.T) {
	p := Plan{Commands: []Command{{Name: "create_node", Parameters: map[string]any{"node_type": "Label"}}}}
	assert.JSONEq(t, `[{"name":"create_node","parameters":{"node_type":"Label"}}]`, p.JSON())
	assert.Contains(t, p.JSON(), "\n  ")

	assert.Equal(t, "[]", Plan{}.JSON())

	back, err := Parse(p.JSON())
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

// countingTool fails when err is set and records each invocation.
type countingTool struct {
	name  string
	err   error
	calls *[]string
	block bool
}

func (c *countingTool) Name() string               { return c.name }
func (c *countingTool) Description() string        { return "test tool" }
func (c *countingTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (c *countingTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	*c.calls = append(*c.calls, c.name)
	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "ok", c.err
}

func registry(calls *[]string, failing map[string]error, names ...string) *tools.Registry {
	r := tools.NewRegistry()
	for _, n := range names {
		r.Register(&countingTool{name: n, err: failing[n], calls: calls})
	}
	return r
}

func commands(names ...string) Plan {
	p := Plan{}
	for _, n := range names {
		p.Commands = append(p.Commands, Command{Name: n, Parameters: map[string]any{}})
	}
	return p
}

func TestExecutor_AllSucceed(t *testing.T) {
	var calls []string
	e := NewExecutor(registry(&calls, nil, "a", "b", "c"), nil, nil, time.Second)

	out, err := e.Execute(context.Background(), commands("a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, 3, out.Executed)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestExecutor_StopsAtFirstFailure(t *testing.T) {
	for k := 0; k < 4; k++ {
		var calls []string
		names := []string{"c0", "c1", "c2", "c3"}
		r := registry(&calls, map[string]error{names[k]: errors.New("node not found")}, names...)
		e := NewExecutor(r, nil, nil, 0)

		out, err := e.Execute(context.Background(), commands(names...))
		require.NoError(t, err)
		require.NotNil(t, out.Failure)
		assert.Equal(t, k, out.Failure.Index)
		assert.Equal(t, "node not found", out.Failure.Reason)
		assert.False(t, out.Failure.Unknown)
		assert.Len(t, calls, k+1, "commands after the failure must not run")
		assert.Equal(t, k+1, out.Executed)
	}
}

func TestExecutor_UnknownCommand(t *testing.T) {
	var calls []string
	e := NewExecutor(registry(&calls, nil, "a", "b"), nil, nil, 0)

	out, err := e.Execute(context.Background(), commands("a", "teleport", "b"))
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.True(t, out.Failure.Unknown)
	assert.Equal(t, 1, out.Failure.Index)
	assert.Equal(t, "unknown command: teleport", out.Failure.Reason)
	assert.Equal(t, []string{"a"}, calls)
}

type panicLookup struct{}

func (panicLookup) Get(string) tools.Tool { panic("lookup on empty plan") }

func TestExecutor_EmptyPlan(t *testing.T) {
	e := NewExecutor(panicLookup{}, nil, nil, 0)

	out, err := e.Execute(context.Background(), Plan{})
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Zero(t, out.Executed)
}

func TestExecutor_CommandDeadline(t *testing.T) {
	var calls []string
	r := tools.NewRegistry()
	r.Register(&countingTool{name: "hang", calls: &calls, block: true})
	r.Register(&countingTool{name: "after", calls: &calls})
	e := NewExecutor(r, nil, nil, 20*time.Millisecond)

	_, err := e.Execute(context.Background(), commands("hang", "after"))
	var dl *DeadlineError
	require.ErrorAs(t, err, &dl)
	assert.Equal(t, 0, dl.Index)
	assert.Equal(t, "hang", dl.Command)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"hang"}, calls)
}

func TestExecutor_Cancelled(t *testing.T) {
	var calls []string
	e := NewExecutor(registry(&calls, nil, "a"), nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, commands("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
