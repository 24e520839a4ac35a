package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/audit"
	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/entities"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// authPayload is returned by register and login.
type authPayload struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"user"`
}

// AuthController serves the JSON account endpoints. Login issues a bearer
// token and, when sessions are configured, also a session cookie.
type AuthController struct {
	service  *auth.Service
	sessions *auth.SessionManager
	notifier MailNotifier
	auditor  *audit.Service
}

func NewAuthController(service *auth.Service, sessions *auth.SessionManager, notifier MailNotifier, auditor *audit.Service) *AuthController {
	return &AuthController{
		service:  service,
		sessions: sessions,
		notifier: notifier,
		auditor:  auditor,
	}
}

// Register creates a member account and signs it in.
// POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.service.Register(auth.RegisterRequest{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}

	if ac.notifier != nil {
		if err := ac.notifier.Welcome(c.Request.Context(), user); err != nil {
			slog.WarnContext(c.Request.Context(), "failed to queue welcome email", "user_id", user.ID, "error", err)
		}
	}
	ac.logAuth(c, user.ID, "register", true)

	payload, err := ac.signIn(c, user)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, "User registered successfully", payload)
}

// Login checks credentials and returns a bearer token.
// POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.service.Authenticate(req.Email, req.Password)
	if err != nil {
		ac.logAuth(c, 0, "login_failed", false)
		respondError(c, err)
		return
	}

	payload, err := ac.signIn(c, user)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.logAuth(c, user.ID, "login", true)
	respondMessage(c, "Login successful", payload)
}

// Logout ends the cookie session. Bearer tokens simply expire.
// POST /api/auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	userID := auth.GetUserID(c)
	if ac.sessions != nil && auth.GetAuthType(c) == auth.AuthTypeSession {
		if err := ac.sessions.DestroySession(c.Request); err != nil {
			respondError(c, apperrors.Internal("Failed to log out", err))
			return
		}
	}
	ac.logAuth(c, userID, "logout", true)
	respondMessage(c, "Logged out successfully", nil)
}

// Me returns the authenticated user.
// GET /api/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	respondOK(c, auth.GetUser(c))
}

// CSRFToken hands the SPA a token for its next mutating request.
// GET /api/auth/csrf
func (ac *AuthController) CSRFToken(c *gin.Context) {
	respondOK(c, gin.H{"csrf_token": auth.GetCSRFToken(c)})
}

// ChangePassword replaces the caller's password.
// PUT /api/auth/password
func (ac *AuthController) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := auth.GetUserID(c)
	if err := ac.service.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		ac.logAuth(c, userID, "password_change", false)
		respondError(c, err)
		return
	}
	ac.logAuth(c, userID, "password_change", true)
	respondMessage(c, "Password updated successfully", nil)
}

func (ac *AuthController) signIn(c *gin.Context, user *entities.User) (authPayload, error) {
	token, expiresAt, err := ac.service.IssueToken(user)
	if err != nil {
		return authPayload{}, apperrors.Internal("Server error", err)
	}
	if ac.sessions != nil {
		if err := ac.sessions.CreateSession(c.Request, user); err != nil {
			return authPayload{}, apperrors.Internal("Server error", err)
		}
	}
	return authPayload{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (ac *AuthController) logAuth(c *gin.Context, userID uint, action string, success bool) {
	if ac.auditor != nil {
		ac.auditor.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
	}
}
