package scraper

import (
	"sync"
	"time"
)

// Cycle states reported by the status record.
const (
	StateIdle    = "idle"
	StateSyncing = "syncing"
	StateError   = "error"
)

// StatusSnapshot is the JSON shape served by /api/status.
type StatusSnapshot struct {
	LastCycleTime  string `json:"last_cycle_time"`
	State          string `json:"state"`
	Error          string `json:"error,omitempty"`
	CycleCount     uint64 `json:"cycle_count"`
	CurrentMessage string `json:"current_message"`
}

// Status is the mutable cycle-progress record shared between the scheduler
// and the HTTP surface. Safe for concurrent use.
type Status struct {
	mu   sync.RWMutex
	snap StatusSnapshot
}

// NewStatus returns an idle Status.
func NewStatus() *Status {
	return &Status{snap: StatusSnapshot{State: StateIdle}}
}

// Snapshot returns a copy of the current record.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SetState moves the record into the given state and clears any prior error.
func (s *Status) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.State = state
	s.snap.Error = ""
}

// SetMessage updates the free-form progress message. Phases call this through
// the engine's Progress hook.
func (s *Status) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentMessage = msg
}

// SetError marks the record failed with the given cause.
func (s *Status) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.State = StateError
	s.snap.Error = err.Error()
	s.snap.CurrentMessage = "Error: " + err.Error()
}

// CycleDone records a finished cycle and returns the new count.
func (s *Status) CycleDone(at time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.State = StateIdle
	s.snap.LastCycleTime = at.UTC().Format(time.RFC3339)
	s.snap.CycleCount++
	s.snap.CurrentMessage = "Waiting for next cycle"
	return s.snap.CycleCount
}
