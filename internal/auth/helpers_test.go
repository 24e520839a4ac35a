package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/config"
	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/database/users"
	"github.com/mrlokans/elibrary/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() config.Auth {
	return config.Auth{
		JWTSecret:       "test-secret",
		TokenExpiry:     time.Hour,
		SessionLifetime: 24 * time.Hour,
		BcryptCost:      4, // Low cost for faster tests
		SecureCookies:   false,
	}
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupDB(t)
	svc, err := NewService(users.NewRepository(db), testAuthConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, db
}

func setupSessionManager(t *testing.T, db *gorm.DB) *SessionManager {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}
	sm, err := NewSessionManager(sqlDB, testAuthConfig())
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func mustRegister(t *testing.T, svc *Service, name, email string, role entities.Role) *entities.User {
	t.Helper()

	user, err := svc.CreateUser(RegisterRequest{Name: name, Email: email, Password: "password"}, role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

func deactivate(t *testing.T, db *gorm.DB, id uint) {
	t.Helper()

	err := db.Model(&entities.User{}).Where("id = ?", id).UpdateColumn("is_active", false).Error
	if err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
