package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database/borrows"
	"github.com/mrlokans/elibrary/internal/entities"
)

type SweepKind string

const (
	SweepDueSoon   SweepKind = "due_soon"
	SweepOverdue   SweepKind = "overdue"
	SweepImmediate SweepKind = "immediate"
)

// SweepKinds lists every sweep in the order the scheduler runs them.
var SweepKinds = []SweepKind{SweepDueSoon, SweepOverdue, SweepImmediate}

func ParseSweepKind(s string) (SweepKind, error) {
	switch SweepKind(s) {
	case SweepDueSoon, SweepOverdue, SweepImmediate:
		return SweepKind(s), nil
	case "due-soon":
		return SweepDueSoon, nil
	}
	return "", fmt.Errorf("unknown sweep kind %q (want due-soon, overdue or immediate)", s)
}

const (
	immediateHorizon = 7 * Day
	immediateLimit   = 5
	statsHorizon     = 3 * Day
)

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Kind      SweepKind     `json:"kind"`
	RanAt     time.Time     `json:"ran_at"`
	Processed int           `json:"processed"`
	Notified  int           `json:"notified"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

func (r SweepResult) Summary() string {
	return fmt.Sprintf("processed %d records, notified %d, failed %d", r.Processed, r.Notified, r.Failed)
}

// SweepAuditor records sweep outcomes.
type SweepAuditor interface {
	LogSweep(kind, description string, processed, notified int, err error)
}

// StatusRecorder persists the last result of each sweep kind.
type StatusRecorder interface {
	SetSweepStatus(kind string, at time.Time, status, message string, notified int) error
	LastCheck(kinds ...string) *time.Time
}

// Sweeper scans the borrow ledger and dispatches reminders and overdue notices.
// Every sweep takes the evaluation time as a parameter.
type Sweeper struct {
	borrows  *borrows.Repository
	notifier Notifier
	policy   Policy
	auditor  SweepAuditor
	status   StatusRecorder
	tracer   trace.Tracer
}

func NewSweeper(db *gorm.DB, policy Policy, notifier Notifier, auditor SweepAuditor, status StatusRecorder) *Sweeper {
	return &Sweeper{
		borrows:  borrows.NewRepository(db),
		notifier: notifier,
		policy:   policy,
		auditor:  auditor,
		status:   status,
		tracer:   otel.Tracer("github.com/mrlokans/elibrary/internal/circulation"),
	}
}

// Run dispatches to the sweep of the given kind.
func (s *Sweeper) Run(ctx context.Context, kind SweepKind, now time.Time) (SweepResult, error) {
	switch kind {
	case SweepDueSoon:
		return s.DueSoon(ctx, now)
	case SweepOverdue:
		return s.Overdue(ctx, now)
	case SweepImmediate:
		return s.Immediate(ctx, now)
	}
	return SweepResult{}, fmt.Errorf("unknown sweep kind %q", kind)
}

// DueSoon reminds borrowers whose loans fall due two to three days from now.
func (s *Sweeper) DueSoon(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.sweep.due_soon")
	defer span.End()

	started := time.Now()
	result := SweepResult{Kind: SweepDueSoon, RanAt: now}
	from, to := DueSoonWindow(now)

	records, err := s.borrows.ListBorrowedDueBetween(from, to, 0)
	if err != nil {
		return s.finish(ctx, span, started, result, fmt.Errorf("failed to load due-soon records: %w", err))
	}

	for i := range records {
		record := &records[i]
		result.Processed++
		if err := s.notifier.DueReminder(ctx, record, DaysUntilDue(now, record.DueDate)); err != nil {
			result.Failed++
			slog.WarnContext(ctx, "due reminder not queued", "borrow_id", record.ID, "error", err)
			continue
		}
		result.Notified++
	}

	return s.finish(ctx, span, started, result, nil)
}

// Overdue persists the accrued fine on every late loan, flips it to
// overdue and sends a notice on the throttled days.
func (s *Sweeper) Overdue(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.sweep.overdue")
	defer span.End()

	started := time.Now()
	result := SweepResult{Kind: SweepOverdue, RanAt: now}

	records, err := s.borrows.ListOverdue(now)
	if err != nil {
		return s.finish(ctx, span, started, result, fmt.Errorf("failed to load overdue records: %w", err))
	}

	for i := range records {
		record := &records[i]
		result.Processed++

		days := OverdueDays(record.DueDate, now)
		fine := float64(days) * s.policy.FinePerDay

		if err := s.borrows.MarkOverdue(record.ID, fine); err != nil {
			result.Failed++
			slog.WarnContext(ctx, "failed to persist overdue fine", "borrow_id", record.ID, "error", err)
			continue
		}
		record.Status = entities.BorrowStatusOverdue
		record.Fine.Amount = fine

		if !ShouldNotifyOverdue(days) {
			continue
		}
		if err := s.notifier.OverdueNotice(ctx, record, days, fine); err != nil {
			result.Failed++
			slog.WarnContext(ctx, "overdue notice not queued", "borrow_id", record.ID, "error", err)
			continue
		}
		result.Notified++
	}

	return s.finish(ctx, span, started, result, nil)
}

// Immediate notifies up to five borrowers whose loans fall due within a
// week: a reminder when the loan is not yet due, an overdue notice otherwise.
func (s *Sweeper) Immediate(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.sweep.immediate")
	defer span.End()

	started := time.Now()
	result := SweepResult{Kind: SweepImmediate, RanAt: now}

	records, err := s.borrows.ListBorrowedDueBetween(time.Time{}, now.Add(immediateHorizon), immediateLimit)
	if err != nil {
		return s.finish(ctx, span, started, result, fmt.Errorf("failed to load records: %w", err))
	}

	for i := range records {
		record := &records[i]
		result.Processed++

		daysUntil := DaysUntilDue(now, record.DueDate)
		if daysUntil >= 0 {
			err = s.notifier.DueReminder(ctx, record, daysUntil)
		} else {
			days := -daysUntil
			err = s.notifier.OverdueNotice(ctx, record, days, float64(days)*s.policy.FinePerDay)
		}
		if err != nil {
			result.Failed++
			slog.WarnContext(ctx, "immediate notification not queued", "borrow_id", record.ID, "error", err)
			continue
		}
		result.Notified++
	}

	return s.finish(ctx, span, started, result, nil)
}

// Stats are the counters shown on the notifications dashboard.
type Stats struct {
	DueSoon   int64      `json:"due_soon"`
	Overdue   int64      `json:"overdue"`
	DueToday  int64      `json:"due_today"`
	LastCheck *time.Time `json:"last_check,omitempty"`
}

// Stats counts loans due within three days, overdue loans and loans due today.
func (s *Sweeper) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var stats Stats
	var err error

	if stats.DueSoon, err = s.borrows.CountBorrowedDueBetween(now, now.Add(statsHorizon)); err != nil {
		return stats, err
	}
	if stats.Overdue, err = s.borrows.CountOverdue(now); err != nil {
		return stats, err
	}
	if stats.DueToday, err = s.borrows.CountBorrowedDueBetween(StartOfDay(now), EndOfDay(now)); err != nil {
		return stats, err
	}
	if s.status != nil {
		kinds := make([]string, len(SweepKinds))
		for i, k := range SweepKinds {
			kinds[i] = string(k)
		}
		stats.LastCheck = s.status.LastCheck(kinds...)
	}
	return stats, nil
}

func (s *Sweeper) finish(ctx context.Context, span trace.Span, started time.Time, result SweepResult, err error) (SweepResult, error) {
	result.Duration = time.Since(started)
	span.SetAttributes(
		attribute.String("sweep.kind", string(result.Kind)),
		attribute.Int("sweep.processed", result.Processed),
		attribute.Int("sweep.notified", result.Notified),
		attribute.Int("sweep.failed", result.Failed),
	)

	status, message := "success", result.Summary()
	if err != nil {
		recordSpanError(span, err)
		status, message = "failed", err.Error()
		slog.ErrorContext(ctx, "sweep failed", "kind", result.Kind, "error", err)
	} else {
		slog.InfoContext(ctx, "sweep finished", "kind", result.Kind,
			"processed", result.Processed, "notified", result.Notified, "failed", result.Failed)
	}

	if s.status != nil {
		if serr := s.status.SetSweepStatus(string(result.Kind), result.RanAt, status, message, result.Notified); serr != nil {
			slog.WarnContext(ctx, "failed to record sweep status", "kind", result.Kind, "error", serr)
		}
	}
	if s.auditor != nil {
		s.auditor.LogSweep(string(result.Kind), message, result.Processed, result.Notified, err)
	}
	return result, err
}
