package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/audit"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/catalog"
	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/database"
	auditrepo "github.com/mrlokans/elibrary/internal/database/audit"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/members"
)

type seedUser struct {
	Name      string
	Email     string
	Role      entities.Role
	StudentID string
	Phone     string
	Address   string
}

var seedUsers = []seedUser{
	{Name: "Admin User", Email: "admin@library.com", Role: entities.RoleAdmin, Phone: "1234567890", Address: "123 Admin Street, Admin City"},
	{Name: "John Doe", Email: "john@example.com", Role: entities.RoleUser, StudentID: "STU001", Phone: "1234567891", Address: "456 Student Ave, College Town"},
	{Name: "Jane Smith", Email: "jane@example.com", Role: entities.RoleUser, StudentID: "STU002", Phone: "1234567892", Address: "789 Learning Lane, Study City"},
	{Name: "Bob Johnson", Email: "bob@example.com", Role: entities.RoleUser, StudentID: "STU003", Phone: "1234567893", Address: "321 Knowledge Blvd, Education Town"},
}

var seedBooks = []catalog.BookInput{
	{
		Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0-7432-7356-5",
		Publisher: "Scribner", PublishedYear: 1925, Category: entities.CategoryFiction,
		Description: "A classic American novel set in the Jazz Age.",
		TotalCopies: 5, Pages: 180, Location: entities.ShelfLocation{Shelf: "A1", Section: "A"},
	},
	{
		Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0-06-112008-4",
		Publisher: "J.B. Lippincott & Co.", PublishedYear: 1960, Category: entities.CategoryFiction,
		Description: "A gripping tale of racial injustice and childhood innocence.",
		TotalCopies: 3, Pages: 281, Location: entities.ShelfLocation{Shelf: "A2", Section: "A"},
	},
	{
		Title: "Introduction to Algorithms", Author: "Thomas H. Cormen", ISBN: "978-0-262-03384-8",
		Publisher: "MIT Press", PublishedYear: 2009, Category: entities.CategoryTechnology,
		Description: "Comprehensive introduction to algorithms and data structures.",
		TotalCopies: 4, Pages: 1312, Location: entities.ShelfLocation{Shelf: "T1", Section: "T"},
	},
	{
		Title: "A Brief History of Time", Author: "Stephen Hawking", ISBN: "978-0-553-38016-3",
		Publisher: "Bantam Books", PublishedYear: 1988, Category: entities.CategoryScience,
		Description: "A landmark volume in science writing.",
		TotalCopies: 2, Pages: 256, Location: entities.ShelfLocation{Shelf: "S1", Section: "S"},
	},
	{
		Title: "The Art of War", Author: "Sun Tzu", ISBN: "978-1-59030-963-7",
		Publisher: "Shambhala", PublishedYear: -500, Category: entities.CategoryPhilosophy,
		Description: "An ancient Chinese military treatise.",
		TotalCopies: 3, Pages: 273, Location: entities.ShelfLocation{Shelf: "P1", Section: "P"},
	},
	{
		Title: "Clean Code", Author: "Robert C. Martin", ISBN: "978-0-13-235088-4",
		Publisher: "Prentice Hall", PublishedYear: 2008, Category: entities.CategoryTechnology,
		Description: "A handbook of agile software craftsmanship.",
		TotalCopies: 4, Pages: 464, Location: entities.ShelfLocation{Shelf: "T2", Section: "T"},
	},
	{
		Title: "Sapiens", Author: "Yuval Noah Harari", ISBN: "978-0-06-231609-7",
		Publisher: "Harper", PublishedYear: 2014, Category: entities.CategoryHistory,
		Description: "A brief history of humankind.",
		TotalCopies: 3, Pages: 443, Location: entities.ShelfLocation{Shelf: "H1", Section: "H"},
	},
	{
		Title: "The Lean Startup", Author: "Eric Ries", ISBN: "978-0-307-88789-4",
		Publisher: "Crown Business", PublishedYear: 2011, Category: entities.CategoryBusiness,
		Description: "How constant innovation creates radically successful businesses.",
		TotalCopies: 2, Pages: 336, Location: entities.ShelfLocation{Shelf: "B1", Section: "B"},
	},
}

// SeedCommand fills an empty database with demo accounts and books.
// Records that already exist are left untouched, so it is safe to rerun.
type SeedCommand struct {
	DatabasePath string
	Password     string
	Verbose      bool
}

// SeedSummary counts what a seed run created and skipped.
type SeedSummary struct {
	UsersCreated int
	UsersSkipped int
	BooksCreated int
	BooksSkipped int
}

func NewSeedCommand() *SeedCommand {
	return &SeedCommand{}
}

func (cmd *SeedCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database file")
	fs.StringVar(&cmd.Password, "password", "password", "Password given to every seeded account")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every created record")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s seed [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create demo accounts (one admin, three members) and a starter catalog.\n")
		fmt.Fprintf(os.Stderr, "Existing users and books with the same email or ISBN are skipped.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s seed -db ./library.db\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := auth.ValidatePassword(cmd.Password); err != nil {
		return fmt.Errorf("invalid -password: %w", err)
	}
	return nil
}

func (cmd *SeedCommand) Run() error {
	fmt.Println("Seed Library")
	fmt.Println("============")

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

	authService, err := auth.NewService(users.NewRepository(db.DB), config.NewConfig().Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	summary, err := Seed(context.Background(), SeedDeps{
		Auth:     authService,
		Users:    users.NewRepository(db.DB),
		Members:  members.NewService(db.DB, auditor),
		Catalog:  catalog.NewService(db.DB, catalog.WithAuditor(auditor)),
		Password: cmd.Password,
		Log:      cmd.logf,
	})
	if err != nil {
		return err
	}

	fmt.Println("\n=== Seed Summary ===")
	fmt.Printf("Users created: %d (skipped %d)\n", summary.UsersCreated, summary.UsersSkipped)
	fmt.Printf("Books created: %d (skipped %d)\n", summary.BooksCreated, summary.BooksSkipped)
	fmt.Printf("\nSign in as admin@library.com with the seeded password.\n")
	return nil
}

func (cmd *SeedCommand) logf(format string, args ...any) {
	if cmd.Verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// SeedDeps are the services a seed run writes through.
type SeedDeps struct {
	Auth     *auth.Service
	Users    *users.Repository
	Members  *members.Service
	Catalog  *catalog.Service
	Password string
	Log      func(format string, args ...any)
}

// Seed creates the demo accounts and books that are not there yet.
func Seed(ctx context.Context, deps SeedDeps) (SeedSummary, error) {
	var summary SeedSummary
	logf := deps.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}

	var admin entities.Actor
	for _, su := range seedUsers {
		user, err := deps.Auth.CreateUser(auth.RegisterRequest{Name: su.Name, Email: su.Email, Password: deps.Password}, su.Role)
		if apperrors.Is(err, apperrors.KindConflict) {
			existing, getErr := deps.Users.GetByEmail(su.Email)
			if getErr != nil {
				return summary, fmt.Errorf("failed to load existing user %s: %w", su.Email, getErr)
			}
			if su.Role == entities.RoleAdmin && admin.UserID == 0 {
				admin = entities.Actor{UserID: existing.ID, Role: existing.Role}
			}
			summary.UsersSkipped++
			logf("[SKIP] %s already exists", su.Email)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("failed to create user %s: %w", su.Email, err)
		}
		if su.Role == entities.RoleAdmin && admin.UserID == 0 {
			admin = entities.Actor{UserID: user.ID, Role: entities.RoleAdmin}
		}

		studentID, phone, address := su.StudentID, su.Phone, su.Address
		if _, err := deps.Members.Update(ctx, admin, user.ID, members.AdminUpdate{
			StudentID: &studentID,
			Phone:     &phone,
			Address:   &address,
		}); err != nil {
			return summary, fmt.Errorf("failed to set contact details for %s: %w", su.Email, err)
		}

		summary.UsersCreated++
		logf("[OK] %s (%s)", su.Email, su.Role)
	}

	for _, in := range seedBooks {
		book, err := deps.Catalog.Create(ctx, admin, in)
		if apperrors.Is(err, apperrors.KindConflict) {
			summary.BooksSkipped++
			logf("[SKIP] %q already in catalog", in.Title)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("failed to create book %q: %w", in.Title, err)
		}
		summary.BooksCreated++
		logf("[OK] %q (%d copies)", book.Title, book.TotalCopies)
	}

	return summary, nil
}
