// Package reviews implements book reviews: writes, helpfulness votes,
// abuse reports and per-book rating aggregation.
package reviews

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database/books"
	"github.com/mrlokans/elibrary/internal/database/reviews"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Stats aggregates the approved reviews of one book.
type Stats struct {
	AverageRating float64     `json:"average_rating"`
	TotalReviews  int         `json:"total_reviews"`
	Distribution  map[int]int `json:"rating_distribution"`
}

// Summarize computes the mean (rounded to one decimal) and the per-rating
// counts. Every rating from 1 to 5 is present in the distribution.
func Summarize(ratings []int) Stats {
	stats := Stats{Distribution: make(map[int]int, entities.MaxRating)}
	for r := entities.MinRating; r <= entities.MaxRating; r++ {
		stats.Distribution[r] = 0
	}
	if len(ratings) == 0 {
		return stats
	}

	sum := 0
	for _, r := range ratings {
		sum += r
		stats.Distribution[r]++
	}
	stats.TotalReviews = len(ratings)
	stats.AverageRating = math.Round(float64(sum)/float64(len(ratings))*10) / 10
	return stats
}

type CreateRequest struct {
	BookID  uint
	Rating  int
	Title   string
	Comment string
}

func (r CreateRequest) validate() error {
	fields := map[string]string{}
	if r.BookID == 0 {
		fields["book_id"] = "Book is required"
	}
	if r.Rating < entities.MinRating || r.Rating > entities.MaxRating {
		fields["rating"] = "Rating must be between 1 and 5"
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Title)); n < 5 || n > 100 {
		fields["title"] = "Title must be between 5 and 100 characters"
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Comment)); n < 10 || n > 1000 {
		fields["comment"] = "Review must be between 10 and 1000 characters"
	}
	if len(fields) > 0 {
		return apperrors.ValidationFields("Validation failed", fields)
	}
	return nil
}

type Service struct {
	reviews *reviews.Repository
	books   *books.Repository
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		reviews: reviews.NewRepository(db),
		books:   books.NewRepository(db),
	}
}

// Create stores a review. A user may review each book once.
func (s *Service) Create(ctx context.Context, actor entities.Actor, req CreateRequest) (*entities.Review, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	book, err := s.books.GetByID(req.BookID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !book.IsActive) {
		return nil, apperrors.NotFound("Book not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}

	exists, err := s.reviews.Exists(actor.UserID, book.ID)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if exists {
		return nil, apperrors.Conflict("You have already reviewed this book")
	}

	review := &entities.Review{
		UserID:     actor.UserID,
		BookID:     book.ID,
		Rating:     req.Rating,
		Title:      strings.TrimSpace(req.Title),
		Comment:    strings.TrimSpace(req.Comment),
		IsApproved: true,
	}
	if err := s.reviews.Create(review); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("You have already reviewed this book")
		}
		return nil, apperrors.Internal("Server error", err)
	}

	slog.InfoContext(ctx, "review created", "review_id", review.ID, "book_id", book.ID, "user_id", actor.UserID)
	return s.get(review.ID)
}

// ListByBook pages through the approved reviews of a book, newest first.
func (s *Service) ListByBook(ctx context.Context, bookID uint, page, limit int) ([]entities.Review, int64, error) {
	list, total, err := s.reviews.ListApprovedByBook(bookID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("Server error", err)
	}
	return list, total, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uint) ([]entities.Review, error) {
	list, err := s.reviews.ListByUser(userID)
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return list, nil
}

// Stats aggregates the approved reviews of a book.
func (s *Service) Stats(ctx context.Context, bookID uint) (Stats, error) {
	ratings, err := s.reviews.ApprovedRatings(bookID)
	if err != nil {
		return Stats{}, apperrors.Internal("Server error", err)
	}
	return Summarize(ratings), nil
}

// MarkHelpful records the caller's vote and returns the new helpful count.
func (s *Service) MarkHelpful(ctx context.Context, actor entities.Actor, reviewID uint, helpful bool) (int, error) {
	review, err := s.get(reviewID)
	if err != nil {
		return 0, err
	}
	if review.UserID == actor.UserID {
		return 0, apperrors.Conflict("You cannot vote on your own review")
	}

	count, err := s.reviews.Vote(reviewID, actor.UserID, helpful)
	if err != nil {
		return 0, apperrors.Internal("Server error", err)
	}
	return count, nil
}

// Report flags a review for moderation. Each user may report a review once.
func (s *Service) Report(ctx context.Context, actor entities.Actor, reviewID uint, reason entities.ReportReason) error {
	if !reason.Valid() {
		return apperrors.Validation("Invalid report reason")
	}
	if _, err := s.get(reviewID); err != nil {
		return err
	}

	reported, err := s.reviews.HasReported(reviewID, actor.UserID)
	if err != nil {
		return apperrors.Internal("Server error", err)
	}
	if reported {
		return apperrors.Conflict("You have already reported this review")
	}

	err = s.reviews.Report(&entities.ReviewReport{ReviewID: reviewID, UserID: actor.UserID, Reason: reason})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("You have already reported this review")
	}
	if err != nil {
		return apperrors.Internal("Server error", err)
	}

	slog.InfoContext(ctx, "review reported", "review_id", reviewID, "user_id", actor.UserID, "reason", reason)
	return nil
}

// Delete removes a review. Only its author or an admin may delete it.
func (s *Service) Delete(ctx context.Context, actor entities.Actor, reviewID uint) error {
	review, err := s.get(reviewID)
	if err != nil {
		return err
	}
	if !actor.Owns(review.UserID) && !actor.IsAdmin() {
		return apperrors.Forbidden("Access denied")
	}
	if err := s.reviews.Delete(reviewID); err != nil {
		return apperrors.Internal("Server error", err)
	}
	return nil
}

func (s *Service) get(id uint) (*entities.Review, error) {
	review, err := s.reviews.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Review not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return review, nil
}
