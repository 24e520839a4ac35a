package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database/books"
	"github.com/mrlokans/elibrary/internal/database/borrows"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Notifier delivers borrower notifications. Implementations usually enqueue
// the message and return; an error means the message was not accepted.
type Notifier interface {
	DueReminder(ctx context.Context, record *entities.BorrowRecord, daysUntilDue int) error
	OverdueNotice(ctx context.Context, record *entities.BorrowRecord, overdueDays int, fine float64) error
	ReturnConfirmation(ctx context.Context, record *entities.BorrowRecord) error
}

// Auditor records lifecycle transitions.
type Auditor interface {
	LogBorrow(userID, bookID, recordID uint, bookTitle string, err error)
	LogReturn(actorID, recordID uint, bookTitle string, fine float64)
	LogRenew(userID, recordID uint, newDue time.Time, renewalCount int)
	LogFinePaid(actorID, recordID uint, amount float64)
}

type BorrowRequest struct {
	// UserID defaults to the caller. Only admins may borrow on behalf of others.
	UserID  uint
	BookID  uint
	DueDate time.Time // zero means the default loan period
	Notes   string
}

type ReturnRequest struct {
	Condition  entities.BookCondition
	Notes      string
	ManualFine *float64 // admins only
}

// Service applies the borrow lifecycle transitions.
type Service struct {
	db       *gorm.DB
	books    *books.Repository
	borrows  *borrows.Repository
	users    *users.Repository
	policy   Policy
	notifier Notifier
	auditor  Auditor
	now      func() time.Time
	tracer   trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func NewService(db *gorm.DB, policy Policy, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		db:       db,
		books:    books.NewRepository(db),
		borrows:  borrows.NewRepository(db),
		users:    users.NewRepository(db),
		policy:   policy,
		notifier: notifier,
		auditor:  noopAuditor{},
		now:      time.Now,
		tracer:   otel.Tracer("github.com/mrlokans/elibrary/internal/circulation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// Borrow lends one copy of a book to a user.
func (s *Service) Borrow(ctx context.Context, actor entities.Actor, req BorrowRequest) (*entities.BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow", trace.WithAttributes(
		attribute.Int("book.id", int(req.BookID)),
		attribute.Int("actor.id", int(actor.UserID)),
	))
	defer span.End()

	record, err := s.borrow(ctx, actor, req)
	if err != nil {
		recordSpanError(span, err)
		s.auditor.LogBorrow(actor.UserID, req.BookID, 0, "", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("borrow.id", int(record.ID)))
	s.auditor.LogBorrow(record.UserID, record.BookID, record.ID, bookTitle(record), nil)
	return record, nil
}

func (s *Service) borrow(ctx context.Context, actor entities.Actor, req BorrowRequest) (*entities.BorrowRecord, error) {
	now := s.now()

	userID := req.UserID
	if userID == 0 {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Access denied")
	}

	due := req.DueDate
	if due.IsZero() {
		due = now.AddDate(0, 0, s.policy.DefaultLoanDays)
	}
	if !due.After(now) {
		return nil, apperrors.Validation("Due date must be after the borrow date")
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is deactivated")
	}

	book, err := s.books.GetByID(req.BookID)
	if err != nil {
		return nil, notFoundOr(err, "Book not found")
	}
	if !book.IsActive {
		return nil, apperrors.NotFound("Book not found")
	}
	if book.AvailableCopies <= 0 {
		return nil, apperrors.Conflict("Book is not available for borrowing")
	}

	if _, err := s.borrows.FindActive(userID, book.ID); err == nil {
		return nil, apperrors.Conflict("You already have this book borrowed")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("Server error", err)
	}

	active, err := s.borrows.CountActiveByUser(userID)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if int(active) >= s.policy.MaxActiveLoans {
		return nil, apperrors.Conflict(
			fmt.Sprintf("You have reached the maximum borrowing limit (%d books)", s.policy.MaxActiveLoans))
	}

	record := &entities.BorrowRecord{
		UserID:     userID,
		BookID:     book.ID,
		BorrowDate: now,
		DueDate:    due,
		Status:     entities.BorrowStatusBorrowed,
		Notes:      req.Notes,
		IssuedBy:   actor.UserID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.books.WithTx(tx).DecrementAvailable(book.ID)
		if err != nil {
			return err
		}
		if !taken {
			return apperrors.Conflict("Book is not available for borrowing")
		}
		return s.borrows.WithTx(tx).Create(record)
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Internal("Server error", err)
	}

	loaded, err := s.borrows.GetByID(record.ID)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	slog.InfoContext(ctx, "book borrowed",
		"borrow_id", loaded.ID, "user_id", userID, "book_id", book.ID, "due", due.Format(time.RFC3339))
	return loaded, nil
}

// Return closes a loan, charges any fine and frees the copy.
func (s *Service) Return(ctx context.Context, actor entities.Actor, recordID uint, req ReturnRequest) (*entities.BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return", trace.WithAttributes(
		attribute.Int("borrow.id", int(recordID)),
		attribute.Int("actor.id", int(actor.UserID)),
	))
	defer span.End()

	record, err := s.borrows.GetByID(recordID)
	if err != nil {
		err = notFoundOr(err, "Borrow record not found")
		recordSpanError(span, err)
		return nil, err
	}
	if !actor.Owns(record.UserID) && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Access denied")
	}
	if record.Status == entities.BorrowStatusReturned {
		return nil, apperrors.Conflict("Book is already returned")
	}
	if req.ManualFine != nil {
		if !actor.IsAdmin() {
			return nil, apperrors.Forbidden("Only administrators can assess fines")
		}
		if *req.ManualFine < 0 {
			return nil, apperrors.Validation("Fine amount cannot be negative")
		}
	}
	if req.Condition != "" && !req.Condition.Valid() {
		return nil, apperrors.Validation("Invalid book condition")
	}

	now := s.now()
	returnedBy := actor.UserID
	record.ReturnDate = &now
	record.Status = entities.BorrowStatusReturned
	record.ReturnedBy = &returnedBy
	if req.Condition != "" {
		record.Condition = req.Condition
	}
	if req.Notes != "" {
		record.Notes = req.Notes
	}

	var manual float64
	if req.ManualFine != nil {
		manual = *req.ManualFine
	}
	if now.After(record.DueDate) {
		record.Fine.Amount = CombineFine(CalculateFine(record.DueDate, now, s.policy.FinePerDay), manual)
	} else if req.ManualFine != nil {
		record.Fine.Amount = manual
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.borrows.WithTx(tx).Save(record); err != nil {
			return err
		}
		freed, err := s.books.WithTx(tx).IncrementAvailable(record.BookID)
		if err != nil {
			return err
		}
		if !freed {
			slog.WarnContext(ctx, "returned copy not counted, book already at total copies",
				"borrow_id", record.ID, "book_id", record.BookID)
		}
		return nil
	})
	if err != nil {
		err = apperrors.Internal("Server error", err)
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Float64("borrow.fine", record.Fine.Amount))

	if err := s.notifier.ReturnConfirmation(ctx, record); err != nil {
		slog.WarnContext(ctx, "return confirmation not queued", "borrow_id", record.ID, "error", err)
	}

	s.auditor.LogReturn(actor.UserID, record.ID, bookTitle(record), record.Fine.Amount)
	slog.InfoContext(ctx, "book returned",
		"borrow_id", record.ID, "user_id", record.UserID, "fine", record.Fine.Amount)
	return record, nil
}

// Renew extends an on-time loan by the renewal period.
func (s *Service) Renew(ctx context.Context, actor entities.Actor, recordID uint) (*entities.BorrowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew", trace.WithAttributes(
		attribute.Int("borrow.id", int(recordID)),
	))
	defer span.End()

	record, err := s.borrows.GetByID(recordID)
	if err != nil {
		err = notFoundOr(err, "Borrow record not found")
		recordSpanError(span, err)
		return nil, err
	}

	if !actor.Owns(record.UserID) && !(actor.IsAdmin() && s.policy.AdminCanRenew) {
		return nil, apperrors.Forbidden("Access denied")
	}
	if record.Status != entities.BorrowStatusBorrowed {
		return nil, apperrors.Conflict("Can only renew borrowed books")
	}
	if record.RenewalCount >= s.policy.MaxRenewals {
		return nil, apperrors.Conflict("Maximum renewal limit reached")
	}
	if s.now().After(record.DueDate) {
		return nil, apperrors.Conflict("Cannot renew overdue books")
	}

	record.DueDate = record.DueDate.AddDate(0, 0, s.policy.RenewalDays)
	record.RenewalCount++
	record.Status = entities.BorrowStatusBorrowed

	if err := s.borrows.WithTx(s.db.WithContext(ctx)).Save(record); err != nil {
		err = apperrors.Internal("Server error", err)
		recordSpanError(span, err)
		return nil, err
	}

	s.auditor.LogRenew(actor.UserID, record.ID, record.DueDate, record.RenewalCount)
	return record, nil
}

// PayFine settles the fine of a returned loan.
func (s *Service) PayFine(ctx context.Context, actor entities.Actor, recordID uint) (*entities.BorrowRecord, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Access denied")
	}

	record, err := s.borrows.GetByID(recordID)
	if err != nil {
		return nil, notFoundOr(err, "Borrow record not found")
	}
	if record.Status != entities.BorrowStatusReturned {
		return nil, apperrors.Conflict("Fines can only be settled after the book is returned")
	}
	if record.Fine.Amount <= 0 {
		return nil, apperrors.Conflict("No fine to pay")
	}
	if record.Fine.Paid {
		return nil, apperrors.Conflict("Fine is already paid")
	}

	now := s.now()
	record.Fine.Paid = true
	record.Fine.PaidDate = &now
	if err := s.borrows.WithTx(s.db.WithContext(ctx)).Save(record); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	s.auditor.LogFinePaid(actor.UserID, record.ID, record.Fine.Amount)
	return record, nil
}

// MyBooks lists every record of the user, newest first.
func (s *Service) MyBooks(ctx context.Context, userID uint) ([]entities.BorrowRecord, error) {
	records, err := s.borrows.WithTx(s.db.WithContext(ctx)).ListRecentByUser(userID, 0)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return records, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status      entities.BorrowStatus
	OverdueOnly bool
	Page        int
	Limit       int
}

// List pages through all records.
func (s *Service) List(ctx context.Context, f ListFilter) ([]entities.BorrowRecord, int64, error) {
	filter := borrows.Filter{Status: f.Status, Page: f.Page, Limit: f.Limit}
	if f.OverdueOnly {
		now := s.now()
		filter.Status = ""
		filter.OverdueAt = &now
	}
	records, total, err := s.borrows.WithTx(s.db.WithContext(ctx)).List(filter)
	if err != nil {
		return nil, 0, apperrors.Internal("Server error", err)
	}
	return records, total, nil
}

// Overdue lists every unreturned record past its due date.
func (s *Service) Overdue(ctx context.Context) ([]entities.BorrowRecord, error) {
	records, err := s.borrows.WithTx(s.db.WithContext(ctx)).ListOverdue(s.now())
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return records, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(msg)
	}
	return apperrors.Internal("Server error", err)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func bookTitle(record *entities.BorrowRecord) string {
	if record.Book != nil {
		return record.Book.Title
	}
	return ""
}

type noopAuditor struct{}

func (noopAuditor) LogBorrow(uint, uint, uint, string, error) {}
func (noopAuditor) LogReturn(uint, uint, string, float64)     {}
func (noopAuditor) LogRenew(uint, uint, time.Time, int)       {}
func (noopAuditor) LogFinePaid(uint, uint, float64)           {}
