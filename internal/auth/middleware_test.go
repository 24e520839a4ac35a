package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/elibrary/internal/entities"
)

func setupRouter(t *testing.T) (*gin.Engine, *Service, *gorm.DB) {
	t.Helper()

	svc, db := setupService(t)
	sm := setupSessionManager(t, db)
	middleware := NewMiddleware(svc, sm)

	router := gin.New()
	router.Use(sm.SessionLoadSave())
	router.Use(middleware.Handler())

	router.GET("/public", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "auth_type": GetAuthType(c)})
	})
	router.GET("/protected", middleware.RequireAuth(), func(c *gin.Context) {
		actor := GetActor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role, "auth_type": GetAuthType(c)})
	})
	router.GET("/admin", middleware.RequireRole(entities.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/login", func(c *gin.Context) {
		user, err := svc.Authenticate(c.PostForm("email"), c.PostForm("password"))
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		if err := sm.CreateSession(c.Request, user); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	return router, svc, db
}

func bearerRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestMiddleware_AnonymousPassesThrough(t *testing.T) {
	router, _, _ := setupRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/public", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"auth_type":"none"`) {
		t.Errorf("Expected anonymous auth type, got %s", rr.Body.String())
	}
}

func TestMiddleware_RequireAuth_Returns401(t *testing.T) {
	router, _, _ := setupRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"success":false`) {
		t.Errorf("Expected error envelope, got %s", rr.Body.String())
	}
}

func TestMiddleware_BearerToken(t *testing.T) {
	router, svc, _ := setupRouter(t)
	user := mustRegister(t, svc, "Jane", "jane@example.com", entities.RoleUser)
	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	rr := serve(router, bearerRequest(http.MethodGet, "/protected", token))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"auth_type":"bearer"`) {
		t.Errorf("Expected bearer auth type, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"role":"user"`) {
		t.Errorf("Expected user role, got %s", rr.Body.String())
	}
}

func TestMiddleware_InvalidBearerIsAnonymous(t *testing.T) {
	router, _, _ := setupRouter(t)

	rr := serve(router, bearerRequest(http.MethodGet, "/public", "invalid-token"))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on public route, got %d", rr.Code)
	}

	rr = serve(router, bearerRequest(http.MethodGet, "/protected", "invalid-token"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on protected route, got %d", rr.Code)
	}
}

func TestMiddleware_DeactivatedBearerRejected(t *testing.T) {
	router, svc, db := setupRouter(t)
	user := mustRegister(t, svc, "Jane", "jane@example.com", entities.RoleUser)
	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	deactivate(t, db, user.ID)

	rr := serve(router, bearerRequest(http.MethodGet, "/public", token))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Account is deactivated") {
		t.Errorf("Expected deactivation message, got %s", rr.Body.String())
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	router, svc, _ := setupRouter(t)
	reader := mustRegister(t, svc, "Reader", "reader@example.com", entities.RoleUser)
	admin := mustRegister(t, svc, "Admin", "admin@example.com", entities.RoleAdmin)

	readerToken, _, err := svc.IssueToken(reader)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	adminToken, _, err := svc.IssueToken(admin)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"anonymous", httptest.NewRequest(http.MethodGet, "/admin", nil), http.StatusUnauthorized},
		{"regular user", bearerRequest(http.MethodGet, "/admin", readerToken), http.StatusForbidden},
		{"admin", bearerRequest(http.MethodGet, "/admin", adminToken), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, tt.req)
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestMiddleware_SessionCookie(t *testing.T) {
	router, svc, db := setupRouter(t)
	user := mustRegister(t, svc, "Jane", "jane@example.com", entities.RoleUser)

	form := url.Values{"email": {"jane@example.com"}, "password": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Login failed with %d", rr.Code)
	}

	cookies := rr.Result().Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == "session" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("Expected session cookie to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(sessionCookie)
	rr = serve(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 with session cookie, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"auth_type":"session"`) {
		t.Errorf("Expected session auth type, got %s", rr.Body.String())
	}

	deactivate(t, db, user.ID)
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(sessionCookie)
	rr = serve(router, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after deactivation, got %d", rr.Code)
	}
}

func TestGetActor_Anonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	actor := GetActor(c)
	if actor.UserID != 0 || actor.Role != "" {
		t.Errorf("Expected zero actor, got %+v", actor)
	}
	if IsAuthenticated(c) {
		t.Error("Anonymous context should not be authenticated")
	}
	if GetUser(c) != nil {
		t.Error("Anonymous context should carry no user")
	}
}
