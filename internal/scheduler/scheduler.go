// Package scheduler drives the autosave loop: on a cron schedule it
// snapshots dirty drafts as autosave versions and prunes the surplus.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/easelkit/easel/internal/store"
)

// DraftSaver is the interface the scheduler uses to reach live drafts.
// Satisfied by the editor manager (avoids import cycle).
type DraftSaver interface {
	DirtyDraftIDs() []string
	SaveDraft(ctx context.Context, draftID string) error
	SnapshotVersion(ctx context.Context, draftID, name, origin string) (*store.Version, error)
}

// DefaultSchedule autosaves every five minutes.
const DefaultSchedule = "*/5 * * * *"

// DefaultRetain is how many inactive autosave versions survive pruning.
const DefaultRetain = 20

// Config tunes the autosave loop.
type Config struct {
	// Schedule is a five-field cron expression.
	Schedule string
	// Retain caps inactive autosave versions kept per draft.
	Retain int
}

// Scheduler runs cron-timed autosave sweeps over dirty drafts.
type Scheduler struct {
	store    store.Store
	saver    DraftSaver
	schedule cron.Schedule
	retain   int
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	nextMu  sync.Mutex
	nextRun time.Time

	inflightMu sync.Mutex
	inflight   map[string]struct{} // draft IDs currently saving (dedup)
}

// NewScheduler creates a Scheduler. The cron expression is parsed up
// front so a bad schedule fails at construction, not mid-loop.
func NewScheduler(s store.Store, saver DraftSaver, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	retain := cfg.Retain
	if retain <= 0 {
		retain = DefaultRetain
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse autosave schedule %q: %w", expr, err)
	}

	return &Scheduler{
		store:    s,
		saver:    saver,
		schedule: schedule,
		retain:   retain,
		logger:   logger,
		nextRun:  schedule.Next(time.Now().UTC()),
		inflight: make(map[string]struct{}),
	}, nil
}

// Start launches the background autosave loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("autosave scheduler started", slog.Int("retain", s.retain))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs a sweep when the schedule has come due.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.nextMu.Lock()
	due := !s.nextRun.After(now)
	if due {
		s.nextRun = s.schedule.Next(now)
	}
	s.nextMu.Unlock()

	if due {
		s.Sweep(ctx)
	}
}

// Sweep autosaves every dirty draft once and prunes surplus autosave
// versions. Safe to call directly; startup uses it to capture anything
// left dirty by a previous shutdown.
func (s *Scheduler) Sweep(ctx context.Context) {
	for _, draftID := range s.saver.DirtyDraftIDs() {
		if !s.tryAcquire(draftID) {
			continue // already saving (dedup)
		}
		if err := s.autosave(ctx, draftID); err != nil {
			s.logger.Error("autosave failed",
				slog.String("draft_id", draftID),
				slog.String("error", err.Error()),
			)
		}
		s.release(draftID)
	}
}

// autosave snapshots one draft as an autosave version, persists the draft,
// and prunes old autosaves beyond the retention limit.
func (s *Scheduler) autosave(ctx context.Context, draftID string) error {
	now := time.Now().UTC()
	v, err := s.saver.SnapshotVersion(ctx, draftID, now.Format(time.RFC3339), store.VersionOriginAutosave)
	if err != nil {
		return fmt.Errorf("snapshot draft %q: %w", draftID, err)
	}
	if err := s.saver.SaveDraft(ctx, draftID); err != nil {
		return fmt.Errorf("save draft %q: %w", draftID, err)
	}

	pruned, err := s.store.PruneAutosaves(ctx, draftID, s.retain)
	if err != nil {
		return fmt.Errorf("prune autosaves for %q: %w", draftID, err)
	}

	s.logger.Info("draft autosaved",
		slog.String("draft_id", draftID),
		slog.String("version_id", v.ID),
		slog.Int("pruned", pruned),
	)
	return nil
}

// tryAcquire returns true and marks the draft as in-flight if it is not already saving.
func (s *Scheduler) tryAcquire(draftID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[draftID]; ok {
		return false
	}
	s.inflight[draftID] = struct{}{}
	return true
}

// release removes the draft from the in-flight set.
func (s *Scheduler) release(draftID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, draftID)
}

// NextRun reports when the next sweep is scheduled.
func (s *Scheduler) NextRun() time.Time {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	return s.nextRun
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("autosave scheduler stopped")
	return nil
}
