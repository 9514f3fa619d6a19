package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/academy-auth/internal/middleware"
	"github.com/iliyamo/academy-auth/internal/model"
	"github.com/iliyamo/academy-auth/internal/repository"
	"github.com/iliyamo/academy-auth/internal/service"
	"github.com/iliyamo/academy-auth/internal/utils"
)

// AuthHandler is the thin HTTP wrapper around the auth service. It
// binds requests, passes the principal explicitly where one is needed
// and maps the service's sentinel errors to status codes. No business
// rules live here.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Role      string  `json:"role"` // STUDENT | INSTRUCTOR | ACADEMY_ADMIN
	TenantID  string  `json:"tenantId"`
	AcademyID *uint64 `json:"academyId"`
	Phone     string  `json:"phoneNumber"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId"`
}
type sessionResp struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	Role         string  `json:"role"`
	Message      string  `json:"message"`
	UserID       uint64  `json:"userId"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	TenantID     string  `json:"tenantId"`
	AcademyID    *uint64 `json:"academyId,omitempty"`
}

func toSessionResp(s service.Session) sessionResp {
	return sessionResp{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Role:         s.Role,
		Message:      s.Message,
		UserID:       s.UserID,
		Name:         s.Name,
		Email:        s.Email,
		TenantID:     s.TenantID,
		AcademyID:    s.AcademyID,
	}
}

// Register: create a pending-approval account. No tokens are returned;
// the acknowledgment string tells the user to wait for approval.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.TenantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password/tenantId required"})
	}
	role := model.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	msg, err := h.Auth.Register(ctx, service.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      role,
		TenantID:  req.TenantID,
		AcademyID: req.AcademyID,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRole):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// Login: verify credentials and return a fresh session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password, req.TenantID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, service.ErrAccountNotActive):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account not approved yet"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Refresh: exchange a refresh token (query parameter) for a new access
// token. The refresh token string is reused, not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("refreshToken"))
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidToken),
			errors.Is(err, repository.ErrTokenNotFound),
			errors.Is(err, service.ErrTokenExpired):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Logout: revoke all refresh tokens of the caller identified by the
// bearer access token. A missing or invalid bearer is a silent
// success, matching the idempotent no-op contract of the service.
func (h *AuthHandler) Logout(c echo.Context) error {
	var principal *utils.Claims
	if raw := middleware.BearerToken(c); raw != "" {
		if claims, err := utils.VerifyToken(h.Auth.Cfg.JWTSecret, raw); err == nil && claims.TokenType == utils.TokenTypeAccess {
			principal = &claims
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, principal); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// Validate: stateless signature/expiry check for API gateways. The
// token store is deliberately not consulted, so an access token issued
// before a logout validates until its embedded expiry.
func (h *AuthHandler) Validate(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	return c.JSON(http.StatusOK, h.Auth.Validate(token))
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}
