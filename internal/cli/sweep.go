package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/elibrary/internal/audit"
	"github.com/mrlokans/elibrary/internal/circulation"
	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/database"
	auditrepo "github.com/mrlokans/elibrary/internal/database/audit"
	"github.com/mrlokans/elibrary/internal/database/settings"
	"github.com/mrlokans/elibrary/internal/notifications"
	"github.com/mrlokans/elibrary/internal/settingsstore"
	"github.com/mrlokans/elibrary/internal/tasks"
)

// SweepCommand runs one notification sweep outside the server, for use
// from an external cron or by hand.
type SweepCommand struct {
	Kind         circulation.SweepKind
	DatabasePath string
	DryRun       bool
}

func NewSweepCommand() *SweepCommand {
	return &SweepCommand{}
}

func (cmd *SweepCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)

	var kind string
	fs.StringVar(&kind, "kind", "", "Sweep to run: due-soon, overdue or immediate (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Only print the notification stats, send nothing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sweep -kind <kind> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run a notification sweep once and exit.\n\n")
		fmt.Fprintf(os.Stderr, "Email settings are read from the environment (EMAIL_HOST, EMAIL_USER, ...).\n")
		fmt.Fprintf(os.Stderr, "Without EMAIL_HOST messages are logged instead of sent.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sweep -kind due-soon\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sweep -kind overdue -db ./library.db\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.DryRun && kind == "" {
		return nil
	}
	if kind == "" {
		return fmt.Errorf("required flag -kind not provided")
	}
	parsed, err := circulation.ParseSweepKind(kind)
	if err != nil {
		return err
	}
	cmd.Kind = parsed
	return nil
}

func (cmd *SweepCommand) Run() error {
	fmt.Println("Notification Sweep")
	fmt.Println("==================")

	cfg := config.NewConfig()

	absDBPath, err := filepath.Abs(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database: %w", err)
	}
	fmt.Printf("Database: %s\n", absDBPath)

	db, err := database.NewDatabase(absDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	auditor := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditor.Wait()
	store := settingsstore.New(settings.NewRepository(db.DB), cfg.Notifications)

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}
	if cfg.Email.Host == "" {
		fmt.Println("EMAIL_HOST is not set, emails will be logged instead of sent")
	}
	inline := tasks.NewInlineEnqueuer(renderer, notifications.NewMailer(cfg.Email), auditor)
	defer inline.Wait()

	policy := circulation.PolicyFromConfig(cfg.Circulation)
	notifier := tasks.NewNotifier(inline, cfg.Email.FrontendURL, policy.MaxActiveLoans, policy.DefaultLoanDays)
	sweeper := circulation.NewSweeper(db.DB, policy, notifier, auditor, store)

	ctx := context.Background()
	now := time.Now()

	if cmd.DryRun {
		stats, err := sweeper.Stats(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to load notification stats: %w", err)
		}
		printStats(stats)
		return nil
	}

	fmt.Printf("Running %s sweep...\n", cmd.Kind)
	result, err := sweeper.Run(ctx, cmd.Kind, now)
	if err != nil {
		return fmt.Errorf("%s sweep failed: %w", cmd.Kind, err)
	}

	fmt.Println("\n=== Sweep Summary ===")
	fmt.Printf("Processed: %d\n", result.Processed)
	fmt.Printf("Notified:  %d\n", result.Notified)
	fmt.Printf("Failed:    %d\n", result.Failed)
	fmt.Printf("Duration:  %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

func printStats(stats circulation.Stats) {
	fmt.Println("\n=== Notification Stats ===")
	fmt.Printf("Due soon:  %d\n", stats.DueSoon)
	fmt.Printf("Overdue:   %d\n", stats.Overdue)
	fmt.Printf("Due today: %d\n", stats.DueToday)
	if stats.LastCheck != nil {
		fmt.Printf("Last check: %s\n", stats.LastCheck.Format(time.RFC3339))
	}
}
