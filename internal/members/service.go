// Package members covers account administration: profile edits, admin
// updates, activation and the dashboard counters.
package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database/borrows"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
)

// historyLimit bounds the borrow history returned with a single user.
const historyLimit = 10

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// Auditor records account changes.
type Auditor interface {
	LogUser(actorID uint, action string, targetID uint, description string)
}

type noopAuditor struct{}

func (noopAuditor) LogUser(uint, string, uint, string) {}

// Profile is a user together with their most recent borrow records.
type Profile struct {
	entities.User
	BorrowHistory []entities.BorrowRecord `json:"borrow_history"`
}

// Dashboard holds the admin overview counters. User counts cover members
// only, not admins.
type Dashboard struct {
	TotalUsers     int64 `json:"total_users"`
	ActiveUsers    int64 `json:"active_users"`
	TotalBorrows   int64 `json:"total_borrows"`
	ActiveBorrows  int64 `json:"active_borrows"`
	OverdueBorrows int64 `json:"overdue_borrows"`
}

// ProfileUpdate is what members may change about themselves.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// AdminUpdate is what admins may change about any account. Passwords and
// activation have their own flows.
type AdminUpdate struct {
	Name      *string
	Email     *string
	Role      *entities.Role
	StudentID *string
	Phone     *string
	Address   *string
}

type Service struct {
	users   *users.Repository
	borrows *borrows.Repository
	auditor Auditor
}

func NewService(db *gorm.DB, auditor Auditor) *Service {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &Service{
		users:   users.NewRepository(db),
		borrows: borrows.NewRepository(db),
		auditor: auditor,
	}
}

func (s *Service) List(ctx context.Context, f users.Filter) ([]entities.User, int64, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, apperrors.Validation("Invalid role")
	}
	list, total, err := s.users.List(f)
	if err != nil {
		return nil, 0, apperrors.Internal("Server error", fmt.Errorf("failed to list users: %w", err))
	}
	return list, total, nil
}

// Get returns a user with their latest borrow records, newest first.
func (s *Service) Get(ctx context.Context, id uint) (*Profile, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}

	history, err := s.borrows.ListRecentByUser(id, historyLimit)
	if err != nil {
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to load borrow history: %w", err))
	}
	if history == nil {
		history = []entities.BorrowRecord{}
	}

	return &Profile{User: *user, BorrowHistory: history}, nil
}

// UpdateProfile edits the caller's own contact details.
func (s *Service) UpdateProfile(ctx context.Context, actor entities.Actor, req ProfileUpdate) (*entities.User, error) {
	user, err := s.load(actor.UserID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	applyContact(user, req.Name, req.Phone, req.Address, fields)
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields("Validation failed", fields)
	}

	if err := s.users.Save(user); err != nil {
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to save profile: %w", err))
	}

	s.auditor.LogUser(actor.UserID, "profile_update", user.ID, "Profile updated")
	return user, nil
}

// Update lets an admin edit any account.
func (s *Service) Update(ctx context.Context, actor entities.Actor, id uint, req AdminUpdate) (*entities.User, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	applyContact(user, req.Name, req.Phone, req.Address, fields)
	if req.Email != nil {
		email := users.NormalizeEmail(*req.Email)
		if !strings.Contains(email, "@") || len(email) > 254 {
			fields["email"] = "Please provide a valid email"
		}
		user.Email = email
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			fields["role"] = "Invalid role"
		}
		user.Role = *req.Role
	}
	if req.StudentID != nil {
		user.StudentID = strings.TrimSpace(*req.StudentID)
		if utf8.RuneCountInString(user.StudentID) > 50 {
			fields["student_id"] = "Student ID cannot be more than 50 characters"
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields("Validation failed", fields)
	}

	if req.Email != nil {
		taken, err := s.users.EmailTaken(user.Email, user.ID)
		if err != nil {
			return nil, apperrors.Internal("Server error", err)
		}
		if taken {
			return nil, apperrors.Conflict("User already exists with this email")
		}
	}

	if err := s.users.Save(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("User already exists with this email")
		}
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to update user %d: %w", id, err))
	}

	slog.InfoContext(ctx, "user updated by admin", "user_id", id, "admin_id", actor.UserID)
	s.auditor.LogUser(actor.UserID, "user_update", user.ID, "Account updated by admin")
	return user, nil
}

// ToggleStatus flips the active flag. Deactivation is refused while the
// user still holds borrowed or overdue books.
func (s *Service) ToggleStatus(ctx context.Context, actor entities.Actor, id uint) (*entities.User, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if user.IsActive {
		active, err := s.borrows.CountActiveByUser(id)
		if err != nil {
			return nil, apperrors.Internal("Server error", err)
		}
		if active > 0 {
			return nil, apperrors.Conflict("Cannot deactivate user with active book borrows")
		}
	}

	user.IsActive = !user.IsActive
	if err := s.users.SetActive(id, user.IsActive); err != nil {
		return nil, apperrors.Internal("Server error", fmt.Errorf("failed to toggle user %d: %w", id, err))
	}

	action, verb := "user_activate", "activated"
	if !user.IsActive {
		action, verb = "user_deactivate", "deactivated"
	}
	slog.InfoContext(ctx, "user "+verb, "user_id", id, "admin_id", actor.UserID)
	s.auditor.LogUser(actor.UserID, action, id, "Account "+verb)
	return user, nil
}

// DashboardStats collects the admin overview counters.
func (s *Service) DashboardStats(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	var err error

	if d.TotalUsers, err = s.users.Count(entities.RoleUser, false); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if d.ActiveUsers, err = s.users.Count(entities.RoleUser, true); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if d.TotalBorrows, err = s.borrows.CountByStatus(); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if d.ActiveBorrows, err = s.borrows.CountByStatus(entities.ActiveBorrowStatuses...); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	if d.OverdueBorrows, err = s.borrows.CountByStatus(entities.BorrowStatusOverdue); err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return &d, nil
}

func (s *Service) load(id uint) (*entities.User, error) {
	user, err := s.users.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Server error", err)
	}
	return user, nil
}

// applyContact copies the set contact fields onto user, recording
// validation failures in fields.
func applyContact(user *entities.User, name, phone, address *string, fields map[string]string) {
	if name != nil {
		user.Name = strings.TrimSpace(*name)
		if n := utf8.RuneCountInString(user.Name); n < 2 || n > 100 {
			fields["name"] = "Name must be at least 2 characters"
		}
	}
	if phone != nil {
		user.Phone = strings.TrimSpace(*phone)
		if user.Phone != "" && !phonePattern.MatchString(user.Phone) {
			fields["phone"] = "Please enter a valid 10-digit phone number"
		}
	}
	if address != nil {
		user.Address = strings.TrimSpace(*address)
		if utf8.RuneCountInString(user.Address) > 200 {
			fields["address"] = "Address cannot be more than 200 characters"
		}
	}
}
