package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/dispatch-board/models"
)

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(ev models.ChangeEvent) int {
	return m.Called(ev).Int(0)
}

func TestScheduler_AnnounceShift(t *testing.T) {
	hub := &mockBroadcaster{}
	s := NewScheduler(hub, time.UTC)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 1, 0, time.UTC) }

	want := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	hub.On("Broadcast", mock.MatchedBy(func(ev models.ChangeEvent) bool {
		return ev.Type == models.ChangeBoundary && ev.Boundary != nil && ev.Boundary.Equal(want)
	})).Return(3)

	s.announceShift()
	hub.AssertExpectations(t)
}

func TestShiftSpecMatchesBoundaries(t *testing.T) {
	sched, err := cron.ParseStandard(ShiftSpec)
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	first := sched.Next(from)
	assert.Equal(t, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), sched.Next(first))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&mockBroadcaster{}, nil)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}
