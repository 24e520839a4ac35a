package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/audit"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/catalog"
	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/database"
	auditrepo "github.com/mrlokans/elibrary/internal/database/audit"
	"github.com/mrlokans/elibrary/internal/database/settings"
	"github.com/mrlokans/elibrary/internal/database/users"
	http_controllers "github.com/mrlokans/elibrary/internal/http"
	"github.com/mrlokans/elibrary/internal/members"
	"github.com/mrlokans/elibrary/internal/metadata"
	"github.com/mrlokans/elibrary/internal/notifications"
	"github.com/mrlokans/elibrary/internal/reviews"
	"github.com/mrlokans/elibrary/internal/scheduler"
	"github.com/mrlokans/elibrary/internal/settingsstore"
	"github.com/mrlokans/elibrary/internal/tasks"
	"github.com/mrlokans/elibrary/internal/telemetry"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", addr, "env", cfg.Global.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	// Background work stops after the server so in-flight requests can
	// still enqueue.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	slog.Info("server exited")
}

func Run(cfg *config.Config, version string) {
	slog.SetDefault(NewLogger(cfg.Global))
	slog.Info("starting e-library", "version", version)

	if !cfg.Global.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		fatal("failed to initialize tracing", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		fatal("failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	auditor := audit.NewService(auditrepo.NewRepository(db.DB))
	store := settingsstore.New(settings.NewRepository(db.DB), cfg.Notifications)

	// Email delivery
	renderer, err := notifications.NewRenderer()
	if err != nil {
		fatal("failed to load email templates", err)
	}
	mailer := notifications.NewMailer(cfg.Email)
	if cfg.Email.Host == "" {
		slog.Warn("EMAIL_HOST is not set, emails will be logged instead of sent")
	}

	var taskClient *tasks.Client
	var inline *tasks.InlineEnqueuer
	var queue tasks.Enqueuer
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks))
		if err != nil {
			fatal("failed to initialize task queue", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				slog.Error("error closing task client", "error", err)
			}
		}()

		taskClient.Register(
			tasks.NewSendEmailQueue(renderer, mailer, auditor),
			tasks.NewCleanupAuditEventsQueue(auditor),
		)
		go taskClient.Start(ctx)
		queue = taskClient
	} else {
		slog.Info("task queue disabled, emails are sent inline")
		inline = tasks.NewInlineEnqueuer(renderer, mailer, auditor)
		queue = inline
	}

	policy := circulation.PolicyFromConfig(cfg.Circulation)
	notifier := tasks.NewNotifier(queue, cfg.Email.FrontendURL, policy.MaxActiveLoans, policy.DefaultLoanDays)

	// Domain services
	catalogService := catalog.NewService(db.DB, catalog.WithAuditor(auditor))
	circulationService := circulation.NewService(db.DB, policy, notifier, circulation.WithAuditor(auditor))
	sweeper := circulation.NewSweeper(db.DB, policy, notifier, auditor, store)
	membersService := members.NewService(db.DB, auditor)
	reviewsService := reviews.NewService(db.DB)

	// Authentication
	authService, err := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
	if err != nil {
		fatal("failed to initialize auth service", err)
	}
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("JWT_SECRET is not set, issued tokens will not survive a restart")
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		fatal("failed to get SQL DB for sessions", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		fatal("failed to initialize session manager", err)
	}
	authMiddleware := auth.NewMiddleware(authService, sessionManager)

	var csrfSecret []byte
	if cfg.Auth.CSRFEnabled {
		csrfSecret, err = loadCSRFSecret(cfg.Auth.CSRFSecret)
		if err != nil {
			fatal("failed to generate CSRF secret", err)
		}
	}

	loginLimiter := auth.NewRateLimiter(auth.RateLimitConfig{
		PerMinute: cfg.Auth.LoginRatePerMinute,
		Burst:     cfg.Auth.LoginBurst,
	})
	defer loginLimiter.Stop()

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Catalog:        catalogService,
		Circulation:    circulationService,
		Sweeper:        sweeper,
		Members:        membersService,
		Reviews:        reviewsService,
		Auditor:        auditor,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		LoginLimiter:   loginLimiter,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Notifier:       notifier,
		Settings:       store,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
		Development:    cfg.Global.IsDevelopment(),
		Tracing:        cfg.Telemetry.OTLPEndpoint != "",
	}

	if lookup := metadata.NewOpenLibraryClient(cfg.Lookup); lookup != nil {
		routerCfg.Lookup = lookup
	} else {
		slog.Info("ISBN lookup disabled")
	}

	var sweeps *scheduler.NotificationScheduler
	if cfg.Notifications.Enabled {
		sweeps = scheduler.NewNotificationScheduler(sweeper, store,
			scheduler.WithAuditCleanup(cfg.Audit.CleanupSchedule, auditCleanup(taskClient, auditor, cfg.Audit.RetentionDays)))
		if err := sweeps.Start(ctx); err != nil {
			fatal("failed to start notification scheduler", err)
		}
		routerCfg.Scheduler = sweeps
	} else {
		slog.Info("notification scheduler disabled")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if sweeps != nil {
			sweeps.Stop()
		}
		if taskClient != nil {
			if !taskClient.Stop(ctx) {
				slog.Warn("task workers did not finish before the shutdown deadline")
			}
		}
		if inline != nil {
			inline.Wait()
		}
		auditor.Wait()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
		cancel()
	}

	Serve(router, cfg, onShutdown)
}

// auditCleanup prunes old audit events through the task queue when it is
// running, or directly otherwise.
func auditCleanup(client *tasks.Client, auditor *audit.Service, retentionDays int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if client != nil {
			return client.Enqueue(ctx, tasks.CleanupAuditEventsTask{RetentionDays: retentionDays})
		}
		deleted, err := auditor.DeleteOldEvents(time.Duration(retentionDays) * 24 * time.Hour)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "cleaned up audit events", "deleted", deleted, "older_than_days", retentionDays)
		return nil
	}
}

// loadCSRFSecret decodes a hex secret, uses any other non-empty value as
// raw bytes and generates one when unset.
func loadCSRFSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	slog.Info("generated CSRF secret (set CSRF_SECRET to persist)")
	return hex.DecodeString(generated)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
