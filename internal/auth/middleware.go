package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyRole     = "auth_role"
	ContextKeyUser     = "auth_user"
	ContextKeyAuthType = "auth_type" // "session", "bearer", or "none"
)

// AuthType indicates how the user was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware resolves the caller of each request. Anonymous requests pass
// through; RequireAuth and RequireRole guard the routes that need a caller.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
}

// NewMiddleware creates a new authentication middleware. sessionManager
// may be nil, in which case only bearer tokens are accepted.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
	}
}

// Handler returns a Gin middleware that authenticates requests.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyAuthType, AuthTypeNone)

		// Try Bearer token first (for API clients)
		user, err := m.tryBearerAuth(c)
		if errors.Is(err, ErrAccountDeactivated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Account is deactivated"))
			return
		}
		if user != nil {
			m.setUserContext(c, user, AuthTypeBearer)
			c.Next()
			return
		}

		// Then the session cookie (for the SPA)
		user, err = m.trySessionAuth(c)
		if errors.Is(err, ErrAccountDeactivated) {
			_ = m.sessionManager.DestroySession(c.Request)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Account is deactivated"))
			return
		}
		if user != nil {
			m.setUserContext(c, user, AuthTypeSession)
		}

		c.Next()
	}
}

// tryBearerAuth attempts to authenticate using Bearer token.
func (m *Middleware) tryBearerAuth(c *gin.Context) (*entities.User, error) {
	token, ok := bearerToken(c)
	if !ok {
		return nil, nil
	}
	return m.service.ValidateToken(token)
}

// trySessionAuth attempts to authenticate using session cookie.
func (m *Middleware) trySessionAuth(c *gin.Context) (*entities.User, error) {
	if m.sessionManager == nil {
		return nil, nil
	}

	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil, nil
	}

	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	return user, nil
}

// setUserContext stores user information in the Gin context.
func (m *Middleware) setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyRole, user.Role)
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyAuthType, authType)
}

// RequireAuth rejects anonymous requests with 401.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Not authorized, no token"))
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and callers outside
// roles with 403.
func (m *Middleware) RequireRole(roles ...entities.Role) gin.HandlerFunc {
	roleSet := make(map[entities.Role]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Not authorized, no token"))
			return
		}
		if !roleSet[GetUserRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody("Access denied. Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func errorBody(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

// Helper functions to extract auth data from Gin context

// GetUserID retrieves the authenticated user's ID, or 0 when anonymous.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

// GetUserRole retrieves the authenticated user's role from the context.
func GetUserRole(c *gin.Context) entities.Role {
	if r, exists := c.Get(ContextKeyRole); exists {
		if role, ok := r.(entities.Role); ok {
			return role
		}
	}
	return ""
}

// GetUser returns the user loaded by the middleware, or nil.
func GetUser(c *gin.Context) *entities.User {
	if u, exists := c.Get(ContextKeyUser); exists {
		if user, ok := u.(*entities.User); ok {
			return user
		}
	}
	return nil
}

// GetActor returns the caller as seen by the services.
func GetActor(c *gin.Context) entities.Actor {
	return entities.Actor{UserID: GetUserID(c), Role: GetUserRole(c)}
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// IsAuthenticated returns true if the request carries a known user.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != 0
}
