// Package scheduler runs the recurring notification sweeps and maintenance
// jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/settingsstore"
)

// SweepRunner executes one notification sweep.
type SweepRunner interface {
	Run(ctx context.Context, kind circulation.SweepKind, now time.Time) (circulation.SweepResult, error)
}

// ScheduleSource provides the effective cron schedules of the sweeps.
type ScheduleSource interface {
	GetDueSoonSchedule() string
	GetOverdueSchedule() string
}

const sweepTimeout = 10 * time.Minute

// ErrSweepInProgress is returned by RunNow while the same sweep is running.
var ErrSweepInProgress = errors.New("sweep is already running")

// NotificationScheduler runs the due-soon and overdue sweeps on their
// schedules, plus an optional audit cleanup job.
type NotificationScheduler struct {
	sweeper   SweepRunner
	schedules ScheduleSource
	now       func() time.Time

	cleanup         func(ctx context.Context) error
	cleanupSchedule string

	cron       *cron.Cron
	entries    map[circulation.SweepKind]cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	parent     context.Context
	cancelFunc context.CancelFunc

	// sweepMu guards sweeping separately so Stop can wait on running jobs.
	sweepMu  sync.Mutex
	sweeping map[circulation.SweepKind]bool
}

type Option func(*NotificationScheduler)

// WithAuditCleanup adds a job that prunes old audit events on schedule.
func WithAuditCleanup(schedule string, fn func(ctx context.Context) error) Option {
	return func(s *NotificationScheduler) {
		s.cleanupSchedule = schedule
		s.cleanup = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *NotificationScheduler) { s.now = now }
}

func NewNotificationScheduler(sweeper SweepRunner, schedules ScheduleSource, opts ...Option) *NotificationScheduler {
	s := &NotificationScheduler{
		sweeper:   sweeper,
		schedules: schedules,
		now:       time.Now,
		entries:   map[circulation.SweepKind]cron.EntryID{},
		sweeping:  map[circulation.SweepKind]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the jobs and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *NotificationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobs := map[circulation.SweepKind]string{
		circulation.SweepDueSoon: s.schedules.GetDueSoonSchedule(),
		circulation.SweepOverdue: s.schedules.GetOverdueSchedule(),
	}
	for kind, schedule := range jobs {
		if err := settingsstore.ValidateCronSchedule(schedule); err != nil {
			return fmt.Errorf("invalid %s schedule '%s': %w", kind, schedule, err)
		}
	}
	if s.cleanup != nil {
		if err := settingsstore.ValidateCronSchedule(s.cleanupSchedule); err != nil {
			return fmt.Errorf("invalid audit cleanup schedule '%s': %w", s.cleanupSchedule, err)
		}
	}

	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	entries := map[circulation.SweepKind]cron.EntryID{}
	for kind, schedule := range jobs {
		kind := kind
		id, err := c.AddFunc(schedule, func() { s.runSweep(kind) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s sweep: %w", kind, err)
		}
		entries[kind] = id
	}
	if s.cleanup != nil {
		if _, err := c.AddFunc(s.cleanupSchedule, s.runCleanup); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup: %w", err)
		}
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.parent = ctx
	s.cron = c
	s.entries = entries
	s.cron.Start()
	s.isRunning = true

	for kind, schedule := range jobs {
		slog.Info("notification sweep scheduled",
			"kind", kind,
			"schedule", schedule,
			"description", settingsstore.GetCronDescription(schedule),
			"next_run", s.cron.Entry(entries[kind]).Next)
	}

	go func() {
		<-cancelCtx.Done()
		s.stopGeneration(c)
	}()

	return nil
}

// Stop waits for running jobs to finish and stops the cron loop.
func (s *NotificationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopGeneration stops the scheduler only if c is still its cron loop, so a
// cancelled context from before a Reschedule cannot stop the new loop.
func (s *NotificationScheduler) stopGeneration(c *cron.Cron) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == c {
		s.stopLocked()
	}
}

func (s *NotificationScheduler) stopLocked() {
	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	slog.Info("notification scheduler stopped")
}

// Reschedule restarts the scheduler with the current schedules, keeping the
// context it was started with.
func (s *NotificationScheduler) Reschedule() error {
	s.mu.RLock()
	parent := s.parent
	s.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}

	s.Stop()
	return s.Start(parent)
}

// RunNow runs one sweep immediately and waits for its result.
func (s *NotificationScheduler) RunNow(ctx context.Context, kind circulation.SweepKind) (circulation.SweepResult, error) {
	if !s.claim(kind) {
		return circulation.SweepResult{}, fmt.Errorf("%s: %w", kind, ErrSweepInProgress)
	}
	defer s.release(kind)

	return s.sweeper.Run(ctx, kind, s.now())
}

func (s *NotificationScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRuns returns when each scheduled sweep fires next. It is empty while
// the scheduler is stopped.
func (s *NotificationScheduler) NextRuns() map[circulation.SweepKind]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := map[circulation.SweepKind]time.Time{}
	if !s.isRunning {
		return next
	}
	for kind, id := range s.entries {
		if entry := s.cron.Entry(id); entry.Valid() {
			next[kind] = entry.Next
		}
	}
	return next
}

func (s *NotificationScheduler) runSweep(kind circulation.SweepKind) {
	if !s.claim(kind) {
		slog.Info("sweep skipped, previous run still in progress", "kind", kind)
		return
	}
	defer s.release(kind)

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.sweeper.Run(ctx, kind, s.now()); err != nil {
		slog.Error("scheduled sweep failed", "kind", kind, "error", err)
	}
}

func (s *NotificationScheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.cleanup(ctx); err != nil {
		slog.Error("audit cleanup failed", "error", err)
	}
}

func (s *NotificationScheduler) claim(kind circulation.SweepKind) bool {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweeping[kind] {
		return false
	}
	s.sweeping[kind] = true
	return true
}

func (s *NotificationScheduler) release(kind circulation.SweepKind) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	delete(s.sweeping, kind)
}
