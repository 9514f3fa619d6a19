package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/academy-auth/internal/utils"
)

// ContextKeyClaims is the echo context key under which JWTAuth stores
// the verified *utils.Claims of the bearer token.
const ContextKeyClaims = "claims"

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the verified claims into the request context.
// Refresh tokens are rejected here even though they carry a valid
// signature; only typ=access grants API access. Handlers read the
// principal via c.Get(middleware.ContextKeyClaims) and the role via
// c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := BearerToken(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.VerifyToken(secret, raw)
            if err != nil || claims.TokenType != utils.TokenTypeAccess {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ContextKeyClaims, &claims)
            c.Set("user_id", claims.UserID)
            c.Set("role", claims.Role)
            return next(c)
        }
    }
}

// BearerToken extracts the raw token from an "Authorization: Bearer x"
// header, or returns "" when the header is absent or malformed.
func BearerToken(c echo.Context) string {
    auth := c.Request().Header.Get("Authorization")
    if !strings.HasPrefix(auth, "Bearer ") {
        return ""
    }
    return strings.TrimPrefix(auth, "Bearer ")
}
