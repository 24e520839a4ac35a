// Package auth provides authentication and authorization for the API.
//
// Requests authenticate in one of two ways:
//   - Bearer: an HS256 JWT issued by /api/auth/login, for API clients
//   - Session: an scs cookie set by the same login, for the browser SPA
//
// # Configuration
//
//	JWT_SECRET=<hex>          # Auto-generated if empty (tokens die on restart)
//	JWT_EXPIRY=720h           # Bearer token lifetime
//	SESSION_LIFETIME=24h      # Session cookie lifetime
//	BCRYPT_COST=12            # bcrypt cost factor
//	SECURE_COOKIES=true       # HTTPS-only cookies
//	LOGIN_RATE_PER_MINUTE=10  # Login attempts per client IP
//
// # Usage
//
// Initialize authentication in entrypoint:
//
//	authService := auth.NewService(users.NewRepository(db), cfg.Auth)
//	authMiddleware := auth.NewMiddleware(authService, sessionManager)
//	router.Use(authMiddleware.Handler())
//	admin := router.Group("/api", authMiddleware.RequireRole(entities.RoleAdmin))
//
// Extract the caller in handlers:
//
//	actor := auth.GetActor(c) // zero Actor when anonymous
package auth
