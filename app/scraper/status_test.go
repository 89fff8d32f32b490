package scraper

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusLifecycle(t *testing.T) {
	s := NewStatus()
	assert.Equal(t, StateIdle, s.Snapshot().State)

	s.SetState(StateSyncing)
	s.SetMessage("Stats: AMAC")
	snap := s.Snapshot()
	assert.Equal(t, StateSyncing, snap.State)
	assert.Equal(t, "Stats: AMAC", snap.CurrentMessage)

	now := time.Date(2026, 2, 21, 9, 30, 0, 0, time.UTC)
	count := s.CycleDone(now)
	snap = s.Snapshot()
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, "2026-02-21T09:30:00Z", snap.LastCycleTime)
	assert.Equal(t, "Waiting for next cycle", snap.CurrentMessage)
}

func TestStatusErrorThenRecovery(t *testing.T) {
	s := NewStatus()
	s.SetError(errors.New("upstream down"))
	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "upstream down", snap.Error)

	// The next cycle clears the error.
	s.SetState(StateSyncing)
	assert.Empty(t, s.Snapshot().Error)

	s.CycleDone(time.Now())
	assert.Equal(t, uint64(1), s.Snapshot().CycleCount)
}
