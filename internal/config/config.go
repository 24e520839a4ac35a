package config

import (
	"time"

	"github.com/spf13/viper"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Circulation
		Notifications
		Email
		Tasks
		Audit
		UI
		Telemetry
		Lookup
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
		Env                      Environment
		LogLevel                 string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenExpiry     time.Duration
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool
		CSRFSecret      string

		// Login rate limiting (token bucket per client IP)
		LoginRatePerMinute int
		LoginBurst         int
	}
	Circulation struct {
		FinePerDay      float64
		MaxActiveLoans  int
		MaxRenewals     int
		RenewalDays     int
		DefaultLoanDays int
		AdminCanRenew   bool
	}
	Notifications struct {
		Enabled         bool
		DueSoonSchedule string // Cron format: "0 9 * * *" = daily at 09:00
		OverdueSchedule string // Cron format: "0 10 * * *" = daily at 10:00
	}
	Email struct {
		Host        string // Empty host logs messages instead of sending them
		Port        int
		Username    string
		Password    string
		From        string
		FrontendURL string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Audit struct {
		RetentionDays   int
		CleanupSchedule string
	}
	UI struct {
		StaticPath string
	}
	Telemetry struct {
		OTLPEndpoint string // Empty disables trace export
		ServiceName  string
	}
	Lookup struct {
		OpenLibraryURL string // Empty disables ISBN lookup
		Timeout        time.Duration
	}
)

// IsDevelopment reports whether error details may be exposed to clients.
func (g Global) IsDevelopment() bool {
	return g.Env == EnvDevelopment
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 5000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("app_env", string(EnvProduction))
	v.SetDefault("log_level", "info")
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("jwt_secret", "")          // Auto-generated if empty
	v.SetDefault("jwt_expiry", "720h")      // 30 days
	v.SetDefault("session_lifetime", "24h") // 24 hours
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("secure_cookies", true)
	v.SetDefault("csrf_enabled", true)
	v.SetDefault("csrf_secret", "")
	v.SetDefault("login_rate_per_minute", 10)
	v.SetDefault("login_burst", 5)

	// Circulation defaults
	v.SetDefault("fine_per_day", DefaultFinePerDay)
	v.SetDefault("max_active_loans", DefaultMaxActiveLoans)
	v.SetDefault("max_renewals", DefaultMaxRenewals)
	v.SetDefault("renewal_days", DefaultRenewalDays)
	v.SetDefault("default_loan_days", 14)
	v.SetDefault("circulation_admin_can_renew", false)

	// Notification scheduler defaults
	v.SetDefault("notifications_enabled", true)
	v.SetDefault("due_soon_schedule", "0 9 * * *")
	v.SetDefault("overdue_schedule", "0 10 * * *")

	// Email defaults
	v.SetDefault("email_host", "")
	v.SetDefault("email_port", 587)
	v.SetDefault("email_user", "")
	v.SetDefault("email_pass", "")
	v.SetDefault("email_from", "E-Library <no-reply@e-library.local>")
	v.SetDefault("frontend_url", "http://localhost:3000")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	v.SetDefault("ui_static_path", "./frontend/build")

	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_service_name", "e-library")

	v.SetDefault("openlibrary_url", "https://openlibrary.org")
	v.SetDefault("lookup_timeout", "10s")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			Env:                      Environment(v.GetString("APP_ENV")),
			LogLevel:                 v.GetString("LOG_LEVEL"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			JWTSecret:          v.GetString("JWT_SECRET"),
			TokenExpiry:        v.GetDuration("JWT_EXPIRY"),
			SessionLifetime:    v.GetDuration("SESSION_LIFETIME"),
			BcryptCost:         v.GetInt("BCRYPT_COST"),
			SecureCookies:      v.GetBool("SECURE_COOKIES"),
			CSRFEnabled:        v.GetBool("CSRF_ENABLED"),
			CSRFSecret:         v.GetString("CSRF_SECRET"),
			LoginRatePerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
			LoginBurst:         v.GetInt("LOGIN_BURST"),
		},
		Circulation: Circulation{
			FinePerDay:      v.GetFloat64("FINE_PER_DAY"),
			MaxActiveLoans:  v.GetInt("MAX_ACTIVE_LOANS"),
			MaxRenewals:     v.GetInt("MAX_RENEWALS"),
			RenewalDays:     v.GetInt("RENEWAL_DAYS"),
			DefaultLoanDays: v.GetInt("DEFAULT_LOAN_DAYS"),
			AdminCanRenew:   v.GetBool("CIRCULATION_ADMIN_CAN_RENEW"),
		},
		Notifications: Notifications{
			Enabled:         v.GetBool("NOTIFICATIONS_ENABLED"),
			DueSoonSchedule: v.GetString("DUE_SOON_SCHEDULE"),
			OverdueSchedule: v.GetString("OVERDUE_SCHEDULE"),
		},
		Email: Email{
			Host:        v.GetString("EMAIL_HOST"),
			Port:        v.GetInt("EMAIL_PORT"),
			Username:    v.GetString("EMAIL_USER"),
			Password:    v.GetString("EMAIL_PASS"),
			From:        v.GetString("EMAIL_FROM"),
			FrontendURL: v.GetString("FRONTEND_URL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		UI: UI{
			StaticPath: v.GetString("UI_STATIC_PATH"),
		},
		Telemetry: Telemetry{
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
		Lookup: Lookup{
			OpenLibraryURL: v.GetString("OPENLIBRARY_URL"),
			Timeout:        v.GetDuration("LOOKUP_TIMEOUT"),
		},
	}
}
