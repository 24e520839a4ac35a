// Package users provides database operations for member accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail("reader@example.com")
package users

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

// Filter narrows List.
type Filter struct {
	Search string // matches name, email or student id
	Role   entities.Role
	Active *bool
	Page   int
	Limit  int
}

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user. A duplicate email yields gorm.ErrDuplicatedKey.
func (r *Repository) Create(user *entities.User) error {
	user.Email = NormalizeEmail(user.Email)
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns a page of users, newest first, with the total match count.
func (r *Repository) List(f Filter) ([]entities.User, int64, error) {
	var users []entities.User
	var total int64

	query := r.db.Model(&entities.User{})
	if f.Search != "" {
		p := database.Like(f.Search)
		query = query.Where(
			"LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR LOWER(student_id) LIKE LOWER(?)",
			p, p, p,
		)
	}
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		query = query.Where("is_active = ?", *f.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.Paginate(f.Page, f.Limit)).
		Order("created_at DESC").Order("id DESC").
		Find(&users).Error
	return users, total, err
}

// Save persists every field of user.
func (r *Repository) Save(user *entities.User) error {
	user.Email = NormalizeEmail(user.Email)
	return r.db.Save(user).Error
}

// SetActive activates or deactivates an account.
func (r *Repository) SetActive(id uint, active bool) error {
	return r.db.Model(&entities.User{}).Where("id = ?", id).Update("is_active", active).Error
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(id uint, at time.Time) error {
	return r.db.Model(&entities.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// Count returns the number of users with role (any role when empty),
// optionally only the active ones.
func (r *Repository) Count(role entities.Role, activeOnly bool) (int64, error) {
	var count int64
	query := r.db.Model(&entities.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Count(&count).Error
	return count, err
}

// EmailTaken reports whether another account already uses email.
func (r *Repository) EmailTaken(email string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&entities.User{}).Where("email = ?", NormalizeEmail(email))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
