package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rahul/gdforge/internal/observability"
	"github.com/rahul/gdforge/internal/tools"
	"github.com/rahul/gdforge/pkg/config"
)

func TestRuleEngine_Evaluate(t *testing.T) {
	engine := &RuleEngine{}
	ctx := context.Background()

	res, err := engine.Evaluate(ctx, Request{Tool: "create_node"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)
	assert.Empty(t, engine.Rules())

	engine.DenyCommand("execute_editor_script")
	res, err = engine.Evaluate(ctx, Request{Tool: "execute_editor_script", Parameters: map[string]any{"code": "print(1)"}})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)
	assert.Contains(t, res.Reason, "execute_editor_script")

	res, err = engine.Evaluate(ctx, Request{Tool: "create_node"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)
}

func TestRuleEngine_Arguments(t *testing.T) {
	engine, err := FromConfig(config.PolicyConfig{DeniedArguments: []string{`OS\.execute`}})
	require.NoError(t, err)

	res, err := engine.Evaluate(context.Background(), Request{
		Tool:       "create_script",
		Parameters: map[string]any{"script_path": "res://x.gd", "content": `OS.execute("rm", [])`},
	})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)

	res, err = engine.Evaluate(context.Background(), Request{
		Tool:       "create_script",
		Parameters: map[string]any{"script_path": "res://x.gd", "content": "extends Node"},
	})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)
}

func TestFromConfig_BadPattern(t *testing.T) {
	_, err := FromConfig(config.PolicyConfig{DeniedArguments: []string{"("}})
	assert.ErrorContains(t, err, "policy.denied_arguments")
}

func TestFromConfig_RuleOrder(t *testing.T) {
	engine, err := FromConfig(config.PolicyConfig{
		DeniedCommands:  []string{"delete_node"},
		DeniedArguments: []string{`"/root"`},
	})
	require.NoError(t, err)

	rules := engine.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "delete_node", rules[0].Command)
	assert.Equal(t, `"/root"`, rules[1].Arguments.String())

	res, err := engine.Evaluate(context.Background(), Request{Tool: "delete_node", Parameters: map[string]any{"node_path": "/root"}})
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "command 'delete_node'")
}

type echoTool struct{ calls int }

func (e *echoTool) Name() string               { return "delete_node" }
func (e *echoTool) Description() string        { return "delete" }
func (e *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (e *echoTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	e.calls++
	return "deleted", nil
}

func TestGuard(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tool := &echoTool{}
	r := tools.NewRegistry()
	r.Register(tool)

	engine, err := FromConfig(config.PolicyConfig{DeniedArguments: []string{`"/root"`}})
	require.NoError(t, err)
	guarded := Guard(r, engine, observability.FromZap(zap.New(core)))

	require.Equal(t, r.Names(), guarded.Names())
	assert.Equal(t, "delete", guarded.Get("delete_node").Description())

	out, err := guarded.Get("delete_node").Invoke(context.Background(), map[string]any{"node_path": "/root/Main/Old"})
	require.NoError(t, err)
	assert.Equal(t, "deleted", out)

	_, err = guarded.Get("delete_node").Invoke(context.Background(), map[string]any{"node_path": "/root"})
	assert.ErrorIs(t, err, ErrDenied)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "delete_node", denied.Tool)
	assert.Equal(t, 1, tool.calls, "denied command must not reach the tool")

	checks := logs.FilterField(zap.String("event", "policy_check")).All()
	require.Len(t, checks, 2)
	assert.Equal(t, "deny", checks[1].ContextMap()["effect"])
}
