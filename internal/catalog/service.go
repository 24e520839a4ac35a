// Package catalog manages the book catalog: admin writes with copy-count
// bookkeeping and the public, active-only reads.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database/books"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Auditor records catalog changes.
type Auditor interface {
	LogCatalog(userID uint, action string, bookID uint, description string)
}

type noopAuditor struct{}

func (noopAuditor) LogCatalog(uint, string, uint, string) {}

// BookInput is the full set of admin-editable fields.
type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	Publisher     string
	PublishedYear int
	Category      entities.Category
	Description   string
	TotalCopies   int
	Language      string
	Pages         int
	CoverImage    string
	Location      entities.ShelfLocation
}

// UpdateRequest is a partial edit; nil fields are left untouched. Available
// copies are derived from the total, never set.
type UpdateRequest struct {
	Title         *string
	Author        *string
	ISBN          *string
	Publisher     *string
	PublishedYear *int
	Category      *entities.Category
	Description   *string
	TotalCopies   *int
	Language      *string
	Pages         *int
	CoverImage    *string
	Location      *entities.ShelfLocation
}

type Service struct {
	db      *gorm.DB
	books   *books.Repository
	auditor Auditor
	now     func() time.Time
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithClock replaces time.Now for the published-year check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:      db,
		books:   books.NewRepository(db),
		auditor: noopAuditor{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a page of active books.
func (s *Service) List(ctx context.Context, f books.Filter) ([]entities.Book, int64, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, apperrors.Validation("Invalid category")
	}

	list, total, err := s.books.List(f)
	if err != nil {
		return nil, 0, apperrors.Internal("Server error", fmt.Errorf("failed to list books: %w", err))
	}
	return list, total, nil
}

// Get returns an active book.
func (s *Service) Get(ctx context.Context, id uint) (*entities.Book, error) {
	book, err := s.books.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !book.IsActive) {
		return nil, apperrors.NotFound("Book not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return book, nil
}

// FindByISBN returns the catalog entry for isbn regardless of formatting,
// or nil when the library does not hold it.
func (s *Service) FindByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	digits := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn))
	book, err := s.books.FindByISBNDigits(digits)
	if err != nil {
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to find book by isbn: %w", err))
	}
	return book, nil
}

// Create adds a book with every copy on the shelf.
func (s *Service) Create(ctx context.Context, actor entities.Actor, in BookInput) (*entities.Book, error) {
	book := &entities.Book{
		Title:         strings.TrimSpace(in.Title),
		Author:        strings.TrimSpace(in.Author),
		ISBN:          NormalizeISBN(in.ISBN),
		Publisher:     strings.TrimSpace(in.Publisher),
		PublishedYear: in.PublishedYear,
		Category:      in.Category,
		Description:   strings.TrimSpace(in.Description),
		TotalCopies:   in.TotalCopies,
		Language:      strings.TrimSpace(in.Language),
		Pages:         in.Pages,
		CoverImage:    strings.TrimSpace(in.CoverImage),
		Location:      in.Location,
		IsActive:      true,
		AddedBy:       actor.UserID,
	}
	if book.Language == "" {
		book.Language = "English"
	}
	book.AvailableCopies = book.TotalCopies

	if err := s.validate(book); err != nil {
		return nil, err
	}
	if err := s.ensureISBNFree(book.ISBN, 0); err != nil {
		return nil, err
	}

	if err := s.books.Create(book); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("Book with this ISBN already exists")
		}
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to create book: %w", err))
	}

	slog.InfoContext(ctx, "book added", "book_id", book.ID, "isbn", book.ISBN, "copies", book.TotalCopies)
	s.auditor.LogCatalog(actor.UserID, "book_create", book.ID, "Added '"+book.Title+"'")
	return book, nil
}

// Update applies a partial edit. Changing the total keeps the number of
// borrowed copies, clamping availability at zero.
func (s *Service) Update(ctx context.Context, actor entities.Actor, id uint, req UpdateRequest) (*entities.Book, error) {
	book, err := s.books.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Book not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	req.apply(book)
	if err := s.validate(book); err != nil {
		return nil, err
	}
	if req.ISBN != nil {
		if err := s.ensureISBNFree(book.ISBN, book.ID); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.books.WithTx(tx)
		if err := repo.UpdateDetails(book); err != nil {
			return err
		}
		if req.TotalCopies != nil {
			return repo.SetTotalCopies(book.ID, *req.TotalCopies)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("Book with this ISBN already exists")
		}
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to update book %d: %w", id, err))
	}

	updated, err := s.books.GetByID(id)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	slog.InfoContext(ctx, "book updated", "book_id", id, "available", updated.AvailableCopies, "total", updated.TotalCopies)
	s.auditor.LogCatalog(actor.UserID, "book_update", id, "Updated '"+updated.Title+"'")
	return updated, nil
}

// Delete soft-deletes a book. It is refused while any copy is on loan.
func (s *Service) Delete(ctx context.Context, actor entities.Actor, id uint) error {
	book, err := s.books.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("Book not found")
	}
	if err != nil {
		return apperrors.Internal("Server error", err)
	}

	ok, err := s.books.DeactivateIfShelved(id)
	if err != nil {
		return apperrors.Internal("Server error", fmt.Errorf("failed to delete book %d: %w", id, err))
	}
	if !ok {
		return apperrors.Conflict("Cannot delete book with active borrows. Please ensure all copies are returned first.")
	}

	slog.InfoContext(ctx, "book deleted", "book_id", id)
	s.auditor.LogCatalog(actor.UserID, "book_delete", id, "Removed '"+book.Title+"'")
	return nil
}

func (s *Service) ensureISBNFree(isbn string, excludeID uint) error {
	taken, err := s.books.ISBNTaken(isbn, excludeID)
	if err != nil {
		return apperrors.Internal("Server error", err)
	}
	if taken {
		return apperrors.Conflict("Book with this ISBN already exists")
	}
	return nil
}

func (s *Service) validate(b *entities.Book) error {
	fields := map[string]string{}

	if b.Title == "" {
		fields["title"] = "Title is required"
	} else if utf8.RuneCountInString(b.Title) > 200 {
		fields["title"] = "Title cannot be more than 200 characters"
	}
	if b.Author == "" {
		fields["author"] = "Author is required"
	} else if utf8.RuneCountInString(b.Author) > 100 {
		fields["author"] = "Author name cannot be more than 100 characters"
	}
	if !ValidISBN(b.ISBN) {
		fields["isbn"] = "Please enter a valid ISBN"
	}
	if utf8.RuneCountInString(b.Publisher) > 100 {
		fields["publisher"] = "Publisher name cannot be more than 100 characters"
	}
	if b.PublishedYear != 0 && (b.PublishedYear < -3000 || b.PublishedYear > s.now().Year()) {
		fields["published_year"] = "Published year must be a valid year"
	}
	if !b.Category.Valid() {
		fields["category"] = "Valid category is required"
	}
	if utf8.RuneCountInString(b.Description) > 1000 {
		fields["description"] = "Description cannot be more than 1000 characters"
	}
	if b.TotalCopies < 1 {
		fields["total_copies"] = "Total copies must be at least 1"
	}
	if utf8.RuneCountInString(b.Language) > 50 {
		fields["language"] = "Language cannot be more than 50 characters"
	}
	if b.Pages < 0 {
		fields["pages"] = "Pages must be at least 1"
	}

	if len(fields) > 0 {
		return apperrors.ValidationFields("Validation failed", fields)
	}
	return nil
}

func (r UpdateRequest) apply(b *entities.Book) {
	if r.Title != nil {
		b.Title = strings.TrimSpace(*r.Title)
	}
	if r.Author != nil {
		b.Author = strings.TrimSpace(*r.Author)
	}
	if r.ISBN != nil {
		b.ISBN = NormalizeISBN(*r.ISBN)
	}
	if r.Publisher != nil {
		b.Publisher = strings.TrimSpace(*r.Publisher)
	}
	if r.PublishedYear != nil {
		b.PublishedYear = *r.PublishedYear
	}
	if r.Category != nil {
		b.Category = *r.Category
	}
	if r.Description != nil {
		b.Description = strings.TrimSpace(*r.Description)
	}
	if r.TotalCopies != nil {
		b.TotalCopies = *r.TotalCopies
	}
	if r.Language != nil {
		b.Language = strings.TrimSpace(*r.Language)
	}
	if r.Pages != nil {
		b.Pages = *r.Pages
	}
	if r.CoverImage != nil {
		b.CoverImage = strings.TrimSpace(*r.CoverImage)
	}
	if r.Location != nil {
		b.Location = *r.Location
	}
}
