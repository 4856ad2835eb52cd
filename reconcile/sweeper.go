/*
Package reconcile sweeps for weighing/trip divergence.

PURPOSE:
  The weighing and trip tables have no shared transaction, so a crashed
  save, a manual upstream edit or a missed cascade can leave a weighing
  without its trip mirror or a completed trip without its weighing. The
  sweeper walks every project on a schedule, pairs the two sides by
  ticket and delivery note, and raises an operator notice for each
  orphan it finds.

DESIGN:
  - Runs on a cron schedule, immediately once at startup
  - A full reload of both sides per project, no incremental tracking:
    the sweep is the recovery path and must not trust cached state
  - Notices are deduplicated per run, not across runs; a divergence that
    survives two sweeps is worth two notices

SEE ALSO:
  - ../weighing/sync.go: The per-write synchronizer the sweep backs up
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/quota"
)

// Sweeper periodically reconciles weighings against trips.
type Sweeper struct {
	Store quota.Store

	cron *cron.Cron
	log  *zap.Logger
}

func NewSweeper(store quota.Store, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{Store: store, log: log}
}

// Start schedules the sweep and runs it once immediately.
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("reconciliation sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info("reconciliation sweeper started", zap.String("schedule", schedule))

	go func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("initial reconciliation sweep failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info("reconciliation sweeper stopped")
	}
}

// Report summarizes one sweep.
type Report struct {
	Projects        int
	OrphanWeighings int
	OrphanTrips     int
	SweptAt         time.Time
}

// RunOnce sweeps every project and returns the divergence counts.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	projects, err := s.Store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{SweptAt: time.Now()}
	for _, p := range projects {
		if err := s.sweepProject(ctx, p.ProjectID, report); err != nil {
			s.log.Error("sweeping project",
				zap.Int64("project", int64(p.ProjectID)),
				zap.Error(err))
			continue
		}
		report.Projects++
	}

	if report.OrphanWeighings > 0 || report.OrphanTrips > 0 {
		s.log.Warn("reconciliation sweep found divergence",
			zap.Int("orphan_weighings", report.OrphanWeighings),
			zap.Int("orphan_trips", report.OrphanTrips))
	} else {
		s.log.Info("reconciliation sweep clean", zap.Int("projects", report.Projects))
	}
	return report, nil
}

func (s *Sweeper) sweepProject(ctx context.Context, project quota.ProjectID, report *Report) error {
	weighings, err := s.Store.ListWeighings(ctx, project)
	if err != nil {
		return err
	}
	trips, err := s.Store.ListTrips(ctx, project)
	if err != nil {
		return err
	}

	type keys struct{ ticket, note string }
	tripsByKeys := make(map[keys]quota.TripRecord, len(trips))
	for _, t := range trips {
		tripsByKeys[keys{t.TicketNo, t.DeliveryNoteNo}] = t
	}

	matched := make(map[keys]bool, len(weighings))
	for _, w := range weighings {
		k := keys{w.TicketNo, w.DeliveryNoteNo}
		if _, ok := tripsByKeys[k]; ok {
			matched[k] = true
			continue
		}
		report.OrphanWeighings++
		s.notice(ctx, "weighing", int64(w.ID),
			fmt.Sprintf("weighing %d (ticket %s, note %s) has no trip mirror",
				w.ID, w.TicketNo, w.DeliveryNoteNo))
	}

	// A trip with a weight but no weighing means the unloading side was
	// lost. Trips still waiting for their truck carry no weight and are
	// not divergent.
	for k, t := range tripsByKeys {
		if matched[k] {
			continue
		}
		if t.ClientWeight.IsZero() && t.DepotWeight.IsZero() {
			continue
		}
		report.OrphanTrips++
		s.notice(ctx, "trip", int64(t.ID),
			fmt.Sprintf("trip %d (ticket %s, note %s) carries weight but has no weighing",
				t.ID, t.TicketNo, t.DeliveryNoteNo))
	}
	return nil
}

func (s *Sweeper) notice(ctx context.Context, entity string, id int64, msg string) {
	n := &quota.Notice{
		Level:     quota.NoticeWarning,
		Kind:      "reconcile_orphan",
		Entity:    entity,
		EntityID:  id,
		Message:   msg,
		CreatedAt: time.Now(),
	}
	if err := s.Store.SaveNotice(ctx, n); err != nil {
		s.log.Error("saving reconcile notice", zap.Error(err))
	}
}
