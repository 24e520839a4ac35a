package http

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/notifications"
	"github.com/mrlokans/elibrary/internal/scheduler"
	"github.com/mrlokans/elibrary/internal/settingsstore"
)

// testEmailKinds maps the public type names onto template kinds.
var testEmailKinds = map[string]notifications.Kind{
	"welcome":      notifications.KindWelcome,
	"due-reminder": notifications.KindDueReminder,
	"overdue":      notifications.KindOverdue,
	"returned":     notifications.KindReturned,
	"test":         notifications.KindTest,
}

type testEmailRequest struct {
	Type  string `json:"type"`
	Email string `json:"email" binding:"omitempty,email"`
}

type scheduleRequest struct {
	DueSoon string `json:"due_soon"`
	Overdue string `json:"overdue"`
}

type notificationStats struct {
	circulation.Stats
	SchedulerRunning bool                                `json:"scheduler_running"`
	NextRuns         map[circulation.SweepKind]time.Time `json:"next_runs"`
}

type scheduleView struct {
	settingsstore.ScheduleInfo
	Sweeps map[circulation.SweepKind]settingsstore.SweepStatus `json:"sweeps"`
}

type NotificationsController struct {
	notifier  MailNotifier
	sweeper   *circulation.Sweeper
	scheduler SweepScheduler
	settings  *settingsstore.SettingsStore
	now       func() time.Time
}

func NewNotificationsController(notifier MailNotifier, sweeper *circulation.Sweeper, sched SweepScheduler, settings *settingsstore.SettingsStore) *NotificationsController {
	return &NotificationsController{
		notifier:  notifier,
		sweeper:   sweeper,
		scheduler: sched,
		settings:  settings,
		now:       time.Now,
	}
}

// TestEmail queues a sample of one template to the given address, or to
// the caller.
// POST /api/notifications/test-email
func (nc *NotificationsController) TestEmail(c *gin.Context) {
	var req testEmailRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if req.Type == "" {
		req.Type = "welcome"
	}
	kind, ok := testEmailKinds[req.Type]
	if !ok {
		respondBadRequest(c, "Invalid email type")
		return
	}

	user := auth.GetUser(c)
	to := req.Email
	if to == "" {
		to = user.Email
	}

	if err := nc.notifier.Sample(c.Request.Context(), kind, to, user.Name); err != nil {
		respondError(c, apperrors.Internal("Failed to queue test email", err))
		return
	}
	respondMessage(c, "Test "+req.Type+" email sent successfully", gin.H{"type": req.Type, "to": to})
}

// SendImmediate runs the immediate sweep over loans due within a week.
// POST /api/notifications/send-immediate
func (nc *NotificationsController) SendImmediate(c *gin.Context) {
	result, err := nc.run(c.Request.Context(), circulation.SweepImmediate)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Immediate notifications sent", result)
}

// RunSweep triggers one scheduled sweep out of band.
// POST /api/notifications/sweep/:kind
func (nc *NotificationsController) RunSweep(c *gin.Context) {
	kind, err := circulation.ParseSweepKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, "Invalid sweep kind")
		return
	}
	result, err := nc.run(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Sweep completed: "+result.Summary(), result)
}

// Stats reports loans due soon, overdue and due today.
// GET /api/notifications/stats
func (nc *NotificationsController) Stats(c *gin.Context) {
	stats, err := nc.sweeper.Stats(c.Request.Context(), nc.now())
	if err != nil {
		respondError(c, apperrors.Internal("Server error", err))
		return
	}

	view := notificationStats{Stats: stats, NextRuns: map[circulation.SweepKind]time.Time{}}
	if nc.scheduler != nil {
		view.SchedulerRunning = nc.scheduler.IsRunning()
		view.NextRuns = nc.scheduler.NextRuns()
	}
	respondOK(c, view)
}

// GetSchedule returns the effective cron schedules and the last sweep outcomes.
// GET /api/notifications/schedule
func (nc *NotificationsController) GetSchedule(c *gin.Context) {
	view := scheduleView{
		ScheduleInfo: nc.settings.GetScheduleInfo(),
		Sweeps:       make(map[circulation.SweepKind]settingsstore.SweepStatus, len(circulation.SweepKinds)),
	}
	for _, kind := range circulation.SweepKinds {
		view.Sweeps[kind] = nc.settings.GetSweepStatus(string(kind))
	}
	respondOK(c, view)
}

// UpdateSchedule stores schedule overrides and restarts a running scheduler.
// PUT /api/notifications/schedule
func (nc *NotificationsController) UpdateSchedule(c *gin.Context) {
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DueSoon == "" && req.Overdue == "" {
		respondBadRequest(c, "Provide due_soon or overdue")
		return
	}
	if err := nc.settings.SetSchedules(req.DueSoon, req.Overdue); err != nil {
		respondError(c, apperrors.Validation(err.Error()))
		return
	}

	if nc.scheduler != nil && nc.scheduler.IsRunning() {
		if err := nc.scheduler.Reschedule(); err != nil {
			respondError(c, apperrors.Internal("Failed to restart scheduler", err))
			return
		}
	}
	respondMessage(c, "Notification schedule updated", nc.settings.GetScheduleInfo())
}

// run prefers the scheduler so manual runs never overlap scheduled ones.
func (nc *NotificationsController) run(ctx context.Context, kind circulation.SweepKind) (circulation.SweepResult, error) {
	if nc.scheduler != nil {
		result, err := nc.scheduler.RunNow(ctx, kind)
		if errors.Is(err, scheduler.ErrSweepInProgress) {
			return result, apperrors.Conflict("A " + string(kind) + " sweep is already running")
		}
		if err != nil {
			return result, apperrors.Internal("Server error", err)
		}
		return result, nil
	}
	result, err := nc.sweeper.Run(ctx, kind, nc.now())
	if err != nil {
		return result, apperrors.Internal("Server error", err)
	}
	return result, nil
}
