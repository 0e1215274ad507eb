package godot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// editorServer answers JSON-RPC requests with handle.
func editorServer(t *testing.T, handle func(req rpcRequest) any) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := handle(req)
			if resp == nil {
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSession_Call(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []rpcRequest
	)
	_, url := editorServer(t, func(req rpcRequest) any {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		return map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"node_path": "/root/Main/Label"}}
	})

	s := NewSession(url)
	defer s.Close()

	res, err := s.Call(context.Background(), "create_node", map[string]any{"node_type": "Label"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(res, &out))
	assert.Equal(t, "/root/Main/Label", out["node_path"])

	_, err = s.Call(context.Background(), "list_nodes", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "2.0", seen[0].JSONRPC)
	assert.Equal(t, "create_node", seen[0].Method)
	assert.Equal(t, "Label", seen[0].Params["node_type"])
	assert.Equal(t, int64(1), seen[0].ID)
	assert.Equal(t, int64(2), seen[1].ID)
	assert.NotNil(t, seen[1].Params)
}

func TestSession_RPCError(t *testing.T) {
	_, url := editorServer(t, func(req rpcRequest) any {
		return map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32000, "message": "node not found"}}
	})

	s := NewSession(url)
	defer s.Close()

	_, err := s.Call(context.Background(), "delete_node", map[string]any{"node_path": "/root/Missing"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Contains(t, err.Error(), "node not found")
}

func TestSession_UnexpectedID(t *testing.T) {
	_, url := editorServer(t, func(req rpcRequest) any {
		return map[string]any{"jsonrpc": "2.0", "id": req.ID + 10, "result": nil}
	})

	s := NewSession(url)
	defer s.Close()

	_, err := s.Call(context.Background(), "save_scene", nil)
	assert.ErrorContains(t, err, "unexpected id")
}

func TestSession_DeadlineAndReconnect(t *testing.T) {
	_, url := editorServer(t, func(req rpcRequest) any {
		if req.Method == "hang" {
			return nil
		}
		return map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "ok"}
	})

	s := NewSession(url)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.Call(ctx, "hang", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	// The broken connection is replaced on the next call.
	res, err := s.Call(context.Background(), "get_current_scene", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"ok"`, string(res))
}

func TestSession_ConnectFailure(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1")
	_, err := s.Call(context.Background(), "list_nodes", nil)
	assert.ErrorContains(t, err, "connect to godot")
}

func TestSession_Closed(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1")
	require.NoError(t, s.Close())
	_, err := s.Call(context.Background(), "list_nodes", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestProcess_Idle(t *testing.T) {
	p := NewProcess("godot-binary-that-does-not-exist")

	assert.Equal(t, "No active project to stop", p.StopProject())
	assert.False(t, p.Running())

	out, err := p.DebugOutput()
	require.NoError(t, err)
	assert.JSONEq(t, `{"output": [], "errors": []}`, out)

	_, err = p.RunProject(context.Background(), "/tmp/project", "")
	assert.ErrorIs(t, err, ErrNoExecutable)

	_, err = NewProcess("").Executable(context.Background())
	assert.ErrorIs(t, err, ErrNoExecutable)
}

func TestAppendBounded(t *testing.T) {
	var lines []string
	for i := 0; i < maxCapturedLines+5; i++ {
		lines = appendBounded(lines, "x")
	}
	assert.Len(t, lines, maxCapturedLines)
}

// fakeGodot writes a shell script that answers --version, prints 3000
// numbered lines and one stderr line, or blocks when the project path is
// "blocking".
func fakeGodot(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake executable needs a POSIX shell")
	}
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then echo "4.2.stable"; exit 0; fi
if [ "$3" = "blocking" ]; then exec sleep 30; fi
i=0
while [ $i -lt 3000 ]; do echo "line$i"; i=$((i+1)); done
echo "crash: boom" >&2
`
	path := filepath.Join(t.TempDir(), "godot")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestProcess_RunProjectCapturesAllOutput(t *testing.T) {
	p := NewProcess(fakeGodot(t))

	for run := 0; run < 5; run++ {
		msg, err := p.RunProject(context.Background(), "/tmp/project", "res://main.tscn")
		require.NoError(t, err)
		assert.Equal(t, "Started project: /tmp/project, scene: res://main.tscn", msg)
		require.Eventually(t, func() bool { return !p.Running() }, 10*time.Second, 10*time.Millisecond)

		raw, err := p.DebugOutput()
		require.NoError(t, err)
		var out struct {
			Output []string `json:"output"`
			Errors []string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
		require.Len(t, out.Output, maxCapturedLines)
		assert.Equal(t, "line2000", out.Output[0])
		assert.Equal(t, "line2999", out.Output[len(out.Output)-1])
		assert.Equal(t, []string{"crash: boom"}, out.Errors)
	}
}

func TestProcess_StopProject(t *testing.T) {
	p := NewProcess(fakeGodot(t))

	_, err := p.RunProject(context.Background(), "blocking", "")
	require.NoError(t, err)
	assert.True(t, p.Running())

	assert.Equal(t, "Stopped Godot project", p.StopProject())
	assert.False(t, p.Running())
	assert.Equal(t, "No active project to stop", p.StopProject())
}
