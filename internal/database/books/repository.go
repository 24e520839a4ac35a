// Package books provides database operations for the library catalog.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	page, total, err := repo.List(books.Filter{Search: "tolkien", Page: 1, Limit: 10})
package books

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Filter narrows List. Only active books are ever listed.
type Filter struct {
	Search        string
	Category      entities.Category
	AvailableOnly bool
	Page          int
	Limit         int
}

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new book. A duplicate ISBN yields gorm.ErrDuplicatedKey.
func (r *Repository) Create(book *entities.Book) error {
	return r.db.Create(book).Error
}

// GetByID retrieves a book regardless of its active flag.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByISBNDigits returns the book whose ISBN, with hyphens and spaces
// removed, equals digits. It returns nil when there is none.
func (r *Repository) FindByISBNDigits(digits string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("REPLACE(REPLACE(isbn, '-', ''), ' ', '') = ?", digits).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ISBNTaken reports whether another book already uses isbn.
func (r *Repository) ISBNTaken(isbn string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&entities.Book{}).Where("isbn = ?", isbn)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// List returns a page of active books, newest first, with the total match count.
func (r *Repository) List(f Filter) ([]entities.Book, int64, error) {
	var books []entities.Book
	var total int64

	query := r.db.Model(&entities.Book{}).Where("is_active = ?", true)
	if f.Search != "" {
		p := database.Like(f.Search)
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR LOWER(isbn) LIKE LOWER(?) OR LOWER(publisher) LIKE LOWER(?) OR LOWER(category) LIKE LOWER(?)",
			p, p, p, p, p,
		)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.AvailableOnly {
		query = query.Where("available_copies > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.Paginate(f.Page, f.Limit)).
		Order("created_at DESC").Order("id DESC").
		Find(&books).Error
	return books, total, err
}

// Save persists every field of book.
func (r *Repository) Save(book *entities.Book) error {
	return r.db.Save(book).Error
}

// detailColumns are the catalog fields an admin edit may overwrite. Copy
// counters and the active flag have dedicated, guarded updates.
var detailColumns = []string{
	"title", "author", "isbn", "publisher", "published_year", "category",
	"description", "language", "pages", "cover_image",
	"location_shelf", "location_section",
}

// UpdateDetails writes the descriptive fields of book, zero values included.
func (r *Repository) UpdateDetails(book *entities.Book) error {
	return r.db.Model(book).Select(detailColumns).Updates(book).Error
}

// SetTotalCopies changes the stock size while keeping the number of copies
// out on loan: available becomes max(0, total - borrowed) in one statement.
func (r *Repository) SetTotalCopies(id uint, total int) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).
		UpdateColumns(map[string]any{
			"available_copies": gorm.Expr("MAX(0, ? - (total_copies - available_copies))", total),
			"total_copies":     total,
		}).Error
}

// DeactivateIfShelved soft-deletes a book only while every copy is on the
// shelf. It reports false, without error, when copies are out.
func (r *Repository) DeactivateIfShelved(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies = total_copies", id).
		Update("is_active", false)
	return result.RowsAffected == 1, result.Error
}

// SetActive flips the soft-delete flag.
func (r *Repository) SetActive(id uint, active bool) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).Update("is_active", active).Error
}

// DecrementAvailable takes one copy off the shelf. It reports false,
// without error, when no copy was available.
func (r *Repository) DecrementAvailable(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	return result.RowsAffected == 1, result.Error
}

// IncrementAvailable puts one copy back. It reports false, without error,
// when every copy was already on the shelf.
func (r *Repository) IncrementAvailable(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	return result.RowsAffected == 1, result.Error
}

// CountActive returns the number of books in the active catalog.
func (r *Repository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}
