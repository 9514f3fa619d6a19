package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/academy-auth/internal/handler"
	"github.com/iliyamo/academy-auth/internal/middleware"
	"github.com/iliyamo/academy-auth/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints and the protected
// group. Registration, login, refresh, validate and logout live under
// /api/auth and carry no JWT middleware: refresh and validate take the
// token as a query parameter, and logout reads the bearer header itself
// so that an unauthenticated call stays a silent no-op instead of a 401.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/validate", a.Validate)

	// Routes on this group require a valid access token; the role check
	// accepts every known role and exists to reject tokens minted with
	// an unknown role claim.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(
		string(model.RoleStudent),
		string(model.RoleInstructor),
		string(model.RoleAcademyAdmin),
	))
	auth.GET("/me", a.Me)
}
