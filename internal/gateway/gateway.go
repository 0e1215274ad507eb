package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/gdforge/internal/agent"
	"github.com/rahul/gdforge/internal/store"
)

// Messenger defines the interface for chat gateways.
type Messenger interface {
	// Start runs the message loop until ctx is done
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Workflow is the entry point a gateway forwards requests to.
// *agent.Workflow implements it.
type Workflow interface {
	Execute(ctx context.Context, prompt string) (*agent.Result, error)
}

// RunLister lists journaled runs. *store.Journal implements it.
type RunLister interface {
	RecentRuns(limit int) ([]store.Run, error)
}

const recentRunsLimit = 5

const helpText = "Describe what to build in the open Godot project, e.g. \"add a label node that says Hello\".\n/runs lists the most recent runs."

// Handler turns one chat message into one reply. Gateways share it.
type Handler struct {
	Workflow Workflow
	Runs     RunLister
}

func (h *Handler) Reply(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	switch {
	case text == "" || text == "/start" || text == "/help":
		return helpText
	case text == "/runs":
		return h.recentRuns()
	}

	res, err := h.Workflow.Execute(ctx, text)
	if err != nil {
		return FormatError(err)
	}
	return fmt.Sprintf("✅ %s (attempts: %d, corrections: %d)", res.Message, res.Attempts, res.Corrections)
}

// FormatError renders a workflow error with its attempt count.
func FormatError(err error) string {
	var werr *agent.Error
	if errors.As(err, &werr) {
		return fmt.Sprintf("❌ %s (attempts: %d)\n%s", werr.Kind, werr.Attempts, werr.Reason)
	}
	return "❌ " + err.Error()
}

func (h *Handler) recentRuns() string {
	if h.Runs == nil {
		return "Run journal is disabled."
	}
	runs, err := h.Runs.RecentRuns(recentRunsLimit)
	if err != nil {
		return "Could not read the run journal: " + err.Error()
	}
	if len(runs) == 0 {
		return "No runs yet."
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s %s attempts=%d %q\n", r.StartedAt.Format("15:04:05"), r.Status, r.Attempts, truncate(r.Prompt, 60))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
