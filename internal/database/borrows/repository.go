// Package borrows provides database operations for the borrow ledger.
//
// Sweep queries take explicit time bounds so callers control the clock.
package borrows

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Filter narrows List.
type Filter struct {
	UserID uint
	Status entities.BorrowStatus
	// OverdueAt, when set, keeps only active records due before it.
	OverdueAt *time.Time
	Page      int
	Limit     int
}

// Repository handles all borrow record database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new borrows repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(record *entities.BorrowRecord) error {
	normalize(record)
	return r.db.Omit("Book", "User").Create(record).Error
}

// Save persists every column of record without touching its associations.
func (r *Repository) Save(record *entities.BorrowRecord) error {
	normalize(record)
	return r.db.Omit("Book", "User").Save(record).Error
}

// GetByID loads a record with its book and borrower.
func (r *Repository) GetByID(id uint) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.withRelations(r.db).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindActive returns the active record for a (user, book) pair, or
// gorm.ErrRecordNotFound.
func (r *Repository) FindActive(userID, bookID uint) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID, entities.ActiveBorrowStatuses).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CountActiveByUser returns how many copies the user currently holds.
func (r *Repository) CountActiveByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.BorrowRecord{}).
		Where("user_id = ? AND status IN ?", userID, entities.ActiveBorrowStatuses).
		Count(&count).Error
	return count, err
}

// ListActiveByUser returns the user's outstanding records.
func (r *Repository) ListActiveByUser(userID uint) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	err := r.db.Where("user_id = ? AND status IN ?", userID, entities.ActiveBorrowStatuses).
		Order("due_date ASC").Find(&records).Error
	return records, err
}

// ListRecentByUser returns the user's latest records, newest first.
func (r *Repository) ListRecentByUser(userID uint, limit int) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	query := r.db.Preload("Book").Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// List returns a page of records with relations, newest first.
func (r *Repository) List(f Filter) ([]entities.BorrowRecord, int64, error) {
	var records []entities.BorrowRecord
	var total int64

	query := r.db.Model(&entities.BorrowRecord{})
	if f.UserID > 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.OverdueAt != nil {
		query = query.Where("status IN ? AND due_date < ?", entities.ActiveBorrowStatuses, f.OverdueAt.UTC())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.withRelations(query).
		Scopes(database.Paginate(f.Page, f.Limit)).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error
	return records, total, err
}

// ListOverdue returns active records due before now, oldest due date first.
func (r *Repository) ListOverdue(now time.Time) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	err := r.withRelations(r.db).
		Where("status IN ? AND due_date < ?", entities.ActiveBorrowStatuses, now.UTC()).
		Order("due_date ASC").
		Find(&records).Error
	return records, err
}

// ListBorrowedDueBetween returns records still in the borrowed state whose
// due date falls in [from, to].
func (r *Repository) ListBorrowedDueBetween(from, to time.Time, limit int) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	query := r.withRelations(r.db).
		Where("status = ? AND due_date >= ? AND due_date <= ?", entities.BorrowStatusBorrowed, from.UTC(), to.UTC()).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// CountBorrowedDueBetween counts records in the borrowed state due in [from, to].
func (r *Repository) CountBorrowedDueBetween(from, to time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&entities.BorrowRecord{}).
		Where("status = ? AND due_date >= ? AND due_date <= ?", entities.BorrowStatusBorrowed, from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

// CountOverdue counts active records due before now.
func (r *Repository) CountOverdue(now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&entities.BorrowRecord{}).
		Where("status IN ? AND due_date < ?", entities.ActiveBorrowStatuses, now.UTC()).
		Count(&count).Error
	return count, err
}

// CountByStatus counts records, optionally restricted to the given statuses.
func (r *Repository) CountByStatus(statuses ...entities.BorrowStatus) (int64, error) {
	var count int64
	query := r.db.Model(&entities.BorrowRecord{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Count(&count).Error
	return count, err
}

// MarkOverdue persists the fine computed by a sweep and flips the status.
func (r *Repository) MarkOverdue(id uint, fine float64) error {
	return r.db.Model(&entities.BorrowRecord{}).
		Where("id = ? AND status IN ?", id, entities.ActiveBorrowStatuses).
		UpdateColumns(map[string]any{
			"status":      entities.BorrowStatusOverdue,
			"fine_amount": fine,
			"updated_at":  time.Now(),
		}).Error
}

// normalize stores timestamps in UTC; sqlite compares them as text.
func normalize(record *entities.BorrowRecord) {
	record.BorrowDate = record.BorrowDate.UTC()
	record.DueDate = record.DueDate.UTC()
	if record.ReturnDate != nil {
		t := record.ReturnDate.UTC()
		record.ReturnDate = &t
	}
	if record.Fine.PaidDate != nil {
		t := record.Fine.PaidDate.UTC()
		record.Fine.PaidDate = &t
	}
}

func (r *Repository) withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Book").Preload("User")
}
