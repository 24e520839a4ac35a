package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/notifications"
	"github.com/mrlokans/elibrary/internal/scheduler"
)

type fakeScheduler struct {
	mu          sync.Mutex
	running     bool
	busy        bool
	reschedules int
	runs        []circulation.SweepKind
}

func (s *fakeScheduler) RunNow(_ context.Context, kind circulation.SweepKind) (circulation.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return circulation.SweepResult{}, fmt.Errorf("%s: %w", kind, scheduler.ErrSweepInProgress)
	}
	s.runs = append(s.runs, kind)
	return circulation.SweepResult{Kind: kind, Processed: 2, Notified: 2}, nil
}

func (s *fakeScheduler) NextRuns() map[circulation.SweepKind]time.Time {
	return map[circulation.SweepKind]time.Time{
		circulation.SweepDueSoon: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeScheduler) Reschedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reschedules++
	return nil
}

func withScheduler(s SweepScheduler) envOption {
	return func(cfg *RouterConfig) { cfg.Scheduler = s }
}

func TestNotifications_AdminOnly(t *testing.T) {
	e := setupEnv(t)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/notifications/stats", e.memberToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/notifications/send-immediate", "", nil).Code)
}

func TestNotifications_Stats(t *testing.T) {
	e := setupEnv(t)
	late := e.createBook(t, "9780000000001", 1)
	soon := e.createBook(t, "9780000000002", 1)
	e.insertOverdue(t, e.member, late)
	e.borrow(t, e.memberToken, map[string]any{
		"book_id":  soon.ID,
		"due_date": time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
	})

	w := e.do(http.MethodGet, "/api/notifications/stats", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats notificationStats
	decodeData(t, w, &stats)
	assert.Equal(t, int64(1), stats.Overdue)
	assert.Equal(t, int64(1), stats.DueSoon)
	assert.False(t, stats.SchedulerRunning)
	assert.Empty(t, stats.NextRuns)
}

func TestNotifications_StatsReportsScheduler(t *testing.T) {
	sched := &fakeScheduler{running: true}
	e := setupEnv(t, withScheduler(sched))

	w := e.do(http.MethodGet, "/api/notifications/stats", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats notificationStats
	decodeData(t, w, &stats)
	assert.True(t, stats.SchedulerRunning)
	assert.Contains(t, stats.NextRuns, circulation.SweepDueSoon)
}

func TestNotifications_TestEmail(t *testing.T) {
	e := setupEnv(t)

	w := e.do(http.MethodPost, "/api/notifications/test-email", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Test welcome email sent successfully", decode(t, w).Message)

	w = e.do(http.MethodPost, "/api/notifications/test-email", e.adminToken, map[string]string{
		"type":  "due-reminder",
		"email": "someone@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/notifications/test-email", e.adminToken, map[string]string{"type": "birthday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email type", decode(t, w).Message)

	w = e.do(http.MethodPost, "/api/notifications/test-email", e.adminToken, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []sentSample{
		{kind: notifications.KindWelcome, to: "admin@example.com"},
		{kind: notifications.KindDueReminder, to: "someone@example.com"},
	}, e.mail.samples)
}

func TestNotifications_TestEmailNeedsNotifier(t *testing.T) {
	e := setupEnv(t, func(cfg *RouterConfig) { cfg.Notifier = nil })

	w := e.do(http.MethodPost, "/api/notifications/test-email", e.adminToken, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications_SweepsRunInline(t *testing.T) {
	e := setupEnv(t)
	book := e.createBook(t, "9780000000001", 1)
	e.borrow(t, e.memberToken, map[string]any{
		"book_id":  book.ID,
		"due_date": time.Now().UTC().AddDate(0, 0, 3).Format(time.RFC3339),
	})

	w := e.do(http.MethodPost, "/api/notifications/send-immediate", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result circulation.SweepResult
	resp := decodeData(t, w, &result)
	assert.Equal(t, "Immediate notifications sent", resp.Message)
	assert.Equal(t, circulation.SweepImmediate, result.Kind)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Notified)

	w = e.do(http.MethodPost, "/api/notifications/sweep/overdue", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &result)
	assert.Equal(t, circulation.SweepOverdue, result.Kind)
	assert.Zero(t, result.Processed)

	w = e.do(http.MethodPost, "/api/notifications/sweep/weekly", e.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid sweep kind", decode(t, w).Message)

	status := e.settings.GetSweepStatus(string(circulation.SweepImmediate))
	assert.Equal(t, 1, status.Notified)
	assert.NotNil(t, status.LastRunAt)
}

func TestNotifications_SweepsGoThroughScheduler(t *testing.T) {
	sched := &fakeScheduler{}
	e := setupEnv(t, withScheduler(sched))

	w := e.do(http.MethodPost, "/api/notifications/sweep/due-soon", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Sweep completed: processed 2 records, notified 2, failed 0", decode(t, w).Message)
	assert.Equal(t, []circulation.SweepKind{circulation.SweepDueSoon}, sched.runs)

	sched.busy = true
	w = e.do(http.MethodPost, "/api/notifications/send-immediate", e.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A immediate sweep is already running", decode(t, w).Message)
}

func TestNotifications_Schedule(t *testing.T) {
	sched := &fakeScheduler{running: true}
	e := setupEnv(t, withScheduler(sched))

	w := e.do(http.MethodGet, "/api/notifications/schedule", e.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view scheduleView
	decodeData(t, w, &view)
	assert.Equal(t, "0 9 * * *", view.DueSoon)
	assert.Equal(t, "environment", view.DueSoonSource)
	assert.Len(t, view.Sweeps, len(circulation.SweepKinds))

	w = e.do(http.MethodPut, "/api/notifications/schedule", e.adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/api/notifications/schedule", e.adminToken, map[string]string{"due_soon": "every morning"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Message, "invalid cron schedule")
	assert.Zero(t, sched.reschedules)

	w = e.do(http.MethodPut, "/api/notifications/schedule", e.adminToken, map[string]string{"overdue": "30 8 * * *"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &view)
	assert.Equal(t, "30 8 * * *", view.Overdue)
	assert.Equal(t, "database", view.OverdueSource)
	assert.Equal(t, "0 9 * * *", view.DueSoon)
	assert.Equal(t, 1, sched.reschedules)
}
