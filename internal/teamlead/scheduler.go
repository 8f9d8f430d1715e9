package teamlead

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs a completed objective on a cron schedule — nightly
// rescans of a previously-assessed target, outside the core engagement
// loop but driven from the same Team Lead.
type Scheduler struct {
	log  *slog.Logger
	cron *cron.Cron
}

// NewScheduler builds a Scheduler. Call Start to begin firing entries and
// Stop to halt it (e.g. on process shutdown).
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{log: log, cron: cron.New()}
}

// ScheduleReengagement registers objective to run on spec (standard 5-field
// cron syntax) via tl.Run, logging but not propagating engagement errors —
// a scheduled rescan failing once should not take down the scheduler.
func (s *Scheduler) ScheduleReengagement(spec string, tl *TeamLead, objective string) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := tl.Run(ctx, objective); err != nil {
			s.log.Error("scheduled re-engagement failed", "objective", objective, "error", err)
		}
	})
}

// Start begins firing scheduled entries in their own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight entry to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
