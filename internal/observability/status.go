package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseAnalysis     Phase = "ANALYSIS"
	PhaseArchitecture Phase = "ARCHITECTURE"
	PhaseDevelopment  Phase = "DEVELOPMENT"
	PhaseExecuting    Phase = "EXECUTING"
	PhaseCorrecting   Phase = "CORRECTING"
)

// Status tracks what the process is currently doing. It is owned by the
// caller and shared between the workflow and the dashboard.
type Status struct {
	mu         sync.RWMutex
	phase      Phase
	task       string
	attempt    int
	lastChange time.Time
}

func NewStatus() *Status {
	return &Status{phase: PhaseIdle, lastChange: time.Now()}
}

// StatusSnapshot is a point-in-time copy of Status.
type StatusSnapshot struct {
	Phase      Phase
	Task       string
	Attempt    int
	LastChange time.Time
}

// Set updates the phase. A nil *Status ignores updates.
func (s *Status) Set(phase Phase, task string, attempt int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.task = task
	s.attempt = attempt
	s.lastChange = time.Now()
}

func (s *Status) Snapshot() StatusSnapshot {
	if s == nil {
		return StatusSnapshot{Phase: PhaseIdle}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{Phase: s.phase, Task: s.task, Attempt: s.attempt, LastChange: s.lastChange}
}
