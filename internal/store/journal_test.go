package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/gdforge/internal/plan"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_Run(t *testing.T) {
	j := newJournal(t)
	fixed := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	p := plan.Plan{Commands: []plan.Command{{Name: "create_node", Parameters: map[string]any{"node_type": "Label"}}}}
	require.NoError(t, j.StartRun("run-1", "add a label"))
	require.NoError(t, j.RecordAttempt("run-1", 1, p, &plan.Failure{Index: 0, Command: p.Commands[0], Reason: "node not found"}))
	require.NoError(t, j.RecordAttempt("run-1", 2, p, nil))
	require.NoError(t, j.FinishRun("run-1", 2, 1, nil))

	r, err := j.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, "add a label", r.Prompt)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, 1, r.Corrections)
	assert.WithinDuration(t, fixed, r.StartedAt, 0)
	assert.WithinDuration(t, fixed, r.FinishedAt, 0)

	attempts, err := j.Attempts("run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 0, attempts[0].FailedIndex)
	assert.Equal(t, "node not found", attempts[0].Reason)
	assert.Equal(t, -1, attempts[1].FailedIndex)
	assert.JSONEq(t, p.JSON(), attempts[1].Plan)
}

func TestJournal_FailedRun(t *testing.T) {
	j := newJournal(t)
	require.NoError(t, j.StartRun("run-2", "x"))
	require.NoError(t, j.FinishRun("run-2", 3, 2, errors.New("RetriesExhausted")))

	r, err := j.Run("run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "RetriesExhausted", r.Error)
}

func TestJournal_RecentRuns(t *testing.T) {
	j := newJournal(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, j.StartRun(id, "prompt "+id))
	}

	runs, err := j.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestJournal_Errors(t *testing.T) {
	j := newJournal(t)

	assert.ErrorContains(t, j.FinishRun("missing", 1, 0, nil), "not started")
	_, err := j.Run("missing")
	assert.ErrorContains(t, err, "not found")

	require.NoError(t, j.StartRun("dup", "x"))
	assert.Error(t, j.StartRun("dup", "x"))
}

func TestJournal_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.StartRun("r", "x"))
	require.NoError(t, j.Close())

	j, err = NewJournal(path)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.RecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
