package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDeactivated = errors.New("account is deactivated")
)

// UserRepository is the slice of the users repository that auth needs.
type UserRepository interface {
	Create(user *entities.User) error
	GetByID(id uint) (*entities.User, error)
	GetByEmail(email string) (*entities.User, error)
	Save(user *entities.User) error
	EmailTaken(email string, excludeID uint) (bool, error)
	TouchLastLogin(id uint, at time.Time) error
}

var _ UserRepository = (*users.Repository)(nil)

// RegisterRequest carries the fields of a self-service signup.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Service handles registration, credential checks and bearer tokens.
type Service struct {
	users  UserRepository
	tokens *TokenIssuer
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service. An empty JWT secret is
// replaced by a random one, so tokens do not survive a restart.
func NewService(repo UserRepository, cfg config.Auth) (*Service, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = generated
	}

	return &Service{
		users:  repo,
		tokens: NewTokenIssuer([]byte(secret), cfg.TokenExpiry),
		config: cfg,
		now:    time.Now,
	}, nil
}

// Register creates a regular member account.
func (s *Service) Register(req RegisterRequest) (*entities.User, error) {
	return s.CreateUser(req, entities.RoleUser)
}

// CreateUser creates an account with the given role.
func (s *Service) CreateUser(req RegisterRequest, role entities.Role) (*entities.User, error) {
	name := strings.TrimSpace(req.Name)
	email := users.NormalizeEmail(req.Email)

	fields := map[string]string{}
	if len(name) < 2 || len(name) > 100 {
		fields["name"] = "Name must be between 2 and 100 characters"
	}
	if !validEmail(email) {
		fields["email"] = "Please provide a valid email"
	}
	if err := ValidatePassword(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if !role.Valid() {
		fields["role"] = "Invalid role"
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields("Validation failed", fields)
	}

	taken, err := s.users.EmailTaken(email, 0)
	if err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}
	if taken {
		return nil, apperrors.Conflict("User already exists with this email")
	}

	hash, err := HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &entities.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("User already exists with this email")
		}
		return nil, apperrors.Internal("Failed to register user", fmt.Errorf("failed to create user: %w", err))
	}

	return user, nil
}

// Authenticate validates credentials and returns the user. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(email, password string) (*entities.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("Invalid credentials")
		}
		return nil, apperrors.Internal("Failed to log in", fmt.Errorf("failed to find user: %w", err))
	}

	if user.PasswordHash == "" || CheckPassword(password, user.PasswordHash) != nil {
		return nil, apperrors.Unauthorized("Invalid credentials")
	}

	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is deactivated")
	}

	now := s.now()
	if err := s.users.TouchLastLogin(user.ID, now); err != nil {
		return nil, apperrors.Internal("Failed to log in", err)
	}
	user.LastLoginAt = &now

	return user, nil
}

// IssueToken creates a bearer token for an authenticated user.
func (s *Service) IssueToken(user *entities.User) (string, time.Time, error) {
	return s.tokens.Issue(user)
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ValidateToken parses a bearer token and loads its active user. The role
// is always read from the database, not from the token.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	return user, nil
}

// ChangePassword updates a user's password after verifying the current one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperrors.NotFound("User not found")
		}
		return apperrors.Internal("Failed to change password", err)
	}

	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return apperrors.Unauthorized("Current password is incorrect")
	}

	if err := ValidatePassword(newPassword); err != nil {
		return apperrors.ValidationFields("Validation failed", map[string]string{"new_password": err.Error()})
	}

	hash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return apperrors.Internal("Failed to change password", err)
	}

	user.PasswordHash = hash
	if err := s.users.Save(user); err != nil {
		return apperrors.Internal("Failed to change password", err)
	}
	return nil
}

// validEmail checks format and the RFC 5321 length limit.
func validEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}
