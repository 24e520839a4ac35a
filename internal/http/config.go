package http

import (
	"context"
	"time"

	"github.com/mrlokans/elibrary/internal/audit"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/catalog"
	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/members"
	"github.com/mrlokans/elibrary/internal/metadata"
	"github.com/mrlokans/elibrary/internal/notifications"
	"github.com/mrlokans/elibrary/internal/reviews"
	"github.com/mrlokans/elibrary/internal/settingsstore"
)

// MailNotifier queues the emails the API sends outside the borrow lifecycle.
type MailNotifier interface {
	Welcome(ctx context.Context, user *entities.User) error
	Sample(ctx context.Context, kind notifications.Kind, to, name string) error
}

// SweepScheduler is the part of the notification scheduler the API drives.
type SweepScheduler interface {
	RunNow(ctx context.Context, kind circulation.SweepKind) (circulation.SweepResult, error)
	NextRuns() map[circulation.SweepKind]time.Time
	IsRunning() bool
	Reschedule() error
}

// ISBNLookup prefills the add-book form from an external catalog.
type ISBNLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*metadata.Suggestion, error)
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database    *database.Database
	Catalog     *catalog.Service
	Circulation *circulation.Service
	Sweeper     *circulation.Sweeper
	Members     *members.Service
	Reviews     *reviews.Service
	Auditor     *audit.Service
	Lookup      ISBNLookup // nil disables GET /api/isbn/:isbn

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	LoginLimiter   *auth.RateLimiter // nil disables login throttling
	CSRFSecret     []byte            // empty disables CSRF protection
	SecureCookies  bool

	// Notifications
	Notifier  MailNotifier
	Scheduler SweepScheduler // nil when notifications are disabled
	Settings  *settingsstore.SettingsStore

	// UI
	StaticPath string

	// Application info
	Version     string
	Development bool // expose internal error details in responses
	Tracing     bool
}
