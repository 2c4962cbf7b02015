package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/shift"
)

// ShiftSpec fires at both daily shift boundaries
const ShiftSpec = "0 8,20 * * *"

// Broadcaster delivers an event to every open feed
type Broadcaster interface {
	Broadcast(ev models.ChangeEvent) int
}

// Scheduler handles periodic background jobs for the dispatch board
type Scheduler struct {
	cron *cron.Cron
	hub  Broadcaster
	now  func() time.Time
}

// NewScheduler creates a new scheduler running in loc, the zone shift
// boundaries are defined in
func NewScheduler(hub Broadcaster, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		hub:  hub,
		now:  func() time.Time { return time.Now().In(loc) },
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	// Announce the new shift to every open feed at 08:00 and 20:00
	if _, err := s.cron.AddFunc(ShiftSpec, s.announceShift); err != nil {
		zap.S().Errorw("failed to register shift boundary job", "error", err)
		return err
	}

	s.cron.Start()
	zap.S().Infow("Shift scheduler started", "next", shift.NextBoundary(s.now()))
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Shift scheduler stopped")
}

// announceShift broadcasts the boundary that has just passed
func (s *Scheduler) announceShift() {
	boundary := shift.LastBoundary(s.now())
	sent := s.hub.Broadcast(models.ChangeEvent{Type: models.ChangeBoundary, Boundary: &boundary})
	zap.S().Infow("shift boundary announced", "boundary", boundary, "feeds", sent)
}
