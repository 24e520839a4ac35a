// Package reviews provides database operations for book reviews, helpful
// votes and abuse reports.
package reviews

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Repository handles all review database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new reviews repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a review. A second review of the same book by the same
// user yields gorm.ErrDuplicatedKey.
func (r *Repository) Create(review *entities.Review) error {
	return r.db.Omit("User", "Book").Create(review).Error
}

// GetByID retrieves a review with its author.
func (r *Repository) GetByID(id uint) (*entities.Review, error) {
	var review entities.Review
	if err := r.db.Preload("User").First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// Exists reports whether the user already reviewed the book.
func (r *Repository) Exists(userID, bookID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Review{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error
	return count > 0, err
}

// ListApprovedByBook returns a page of approved reviews, newest first.
func (r *Repository) ListApprovedByBook(bookID uint, page, limit int) ([]entities.Review, int64, error) {
	var reviews []entities.Review
	var total int64

	query := r.db.Model(&entities.Review{}).Where("book_id = ? AND is_approved = ?", bookID, true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("User").
		Scopes(database.Paginate(page, limit)).
		Order("created_at DESC").Order("id DESC").
		Find(&reviews).Error
	return reviews, total, err
}

// ListByUser returns every review the user wrote, newest first.
func (r *Repository) ListByUser(userID uint) ([]entities.Review, error) {
	var reviews []entities.Review
	err := r.db.Preload("Book").Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&reviews).Error
	return reviews, err
}

// ApprovedRatings returns the ratings of every approved review of a book.
func (r *Repository) ApprovedRatings(bookID uint) ([]int, error) {
	var ratings []int
	err := r.db.Model(&entities.Review{}).
		Where("book_id = ? AND is_approved = ?", bookID, true).
		Pluck("rating", &ratings).Error
	return ratings, err
}

// Delete removes a review together with its votes and reports.
func (r *Repository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", id).Delete(&entities.ReviewVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("review_id = ?", id).Delete(&entities.ReviewReport{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Review{}, id).Error
	})
}

// Vote records or replaces a user's helpfulness vote and returns the new
// helpful count of the review.
func (r *Repository) Vote(reviewID, userID uint, helpful bool) (int, error) {
	var count int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var vote entities.ReviewVote
		err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).First(&vote).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote = entities.ReviewVote{ReviewID: reviewID, UserID: userID, Helpful: helpful}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&vote).Update("helpful", helpful).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&entities.ReviewVote{}).
			Where("review_id = ? AND helpful = ?", reviewID, true).
			Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Review{}).Where("id = ?", reviewID).
			UpdateColumn("helpful_count", count).Error
	})
	return int(count), err
}

// HasReported reports whether the user already flagged the review.
func (r *Repository) HasReported(reviewID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.ReviewReport{}).
		Where("review_id = ? AND user_id = ?", reviewID, userID).
		Count(&count).Error
	return count > 0, err
}

// Report stores a report and marks the review as reported.
func (r *Repository) Report(report *entities.ReviewReport) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Review{}).Where("id = ?", report.ReviewID).
			UpdateColumn("is_reported", true).Error
	})
}
