package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/academy-auth/internal/config"
	"github.com/iliyamo/academy-auth/internal/model"
	q "github.com/iliyamo/academy-auth/internal/queue"
	"github.com/iliyamo/academy-auth/internal/repository"
	"github.com/iliyamo/academy-auth/internal/utils"
)

// RegisterInput carries everything needed to create an account.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Role      model.Role
	TenantID  string
	AcademyID *uint64
	Phone     string
}

// Session is the payload returned by Login and Refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	Role         string
	Message      string
	UserID       uint64
	Name         string
	Email        string
	TenantID     string
	AcademyID    *uint64
}

// AuthService orchestrates registration, login, refresh and logout.
// It holds no mutable state of its own; every method is safe for
// concurrent use as long as the stores are.
type AuthService struct {
	Cfg    config.Config
	Users  repository.UserStore
	Tokens repository.TokenStore
	Events EventPublisher
}

func NewAuthService(cfg config.Config, users repository.UserStore, tokens repository.TokenStore, events EventPublisher) *AuthService {
	return &AuthService{Cfg: cfg, Users: users, Tokens: tokens, Events: events}
}

// Register creates a PENDING_APPROVAL account and acknowledges it.
// No tokens are issued; the user cannot log in until an external
// approval workflow promotes the account to ACTIVE. A duplicate
// (tenant, email) pair surfaces repository.ErrEmailExists from the
// store's unique key; an unknown role is rejected rather than
// defaulted, since the role ends up embedded in every access token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !in.Role.Valid() {
		return "", ErrInvalidRole
	}
	hash, err := utils.HashPassword(in.Password, s.Cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	u := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       model.StatusPendingApproval,
		TenantID:     in.TenantID,
		AcademyID:    in.AcademyID,
		Phone:        in.Phone,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return "", err
	}

	s.emit(ctx, q.UserEvent{
		EventType: q.EventUserRegistered,
		UserID:    u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		TenantID:  u.TenantID,
		AcademyID: u.AcademyID,
	})
	return "Registration successful. Waiting for approval.", nil
}

// Login verifies credentials, checks the approval state, issues an
// access/refresh token pair and persists the refresh token record.
// An unknown email and a wrong password both return
// ErrInvalidCredentials; a correct password on a non-ACTIVE account
// returns ErrAccountNotActive. Nothing is stored or published unless
// the whole operation succeeds.
func (s *AuthService) Login(ctx context.Context, email, password, tenantID string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if u.Status != model.StatusActive {
		return Session{}, ErrAccountNotActive
	}

	access, err := utils.NewAccessToken(s.Cfg.JWTSecret, &u, s.Cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.Cfg.JWTSecret, &u, s.Cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	rec := &model.RefreshToken{
		UserID:    u.ID,
		Token:     refresh.Token,
		ExpiresAt: refresh.Exp,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Tokens.Store(ctx, rec); err != nil {
		return Session{}, err
	}

	s.emit(ctx, q.UserEvent{
		EventType: q.EventUserLogin,
		UserID:    u.ID,
		Email:     u.Email,
		TenantID:  u.TenantID,
		AcademyID: u.AcademyID,
	})
	return s.session(&u, access.Token, refresh.Token, "Login successful"), nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token string itself is reused, not rotated; it stays valid
// until natural expiry or logout. An expired stored record is deleted
// on detection before the failure is reported, so a retry with the
// same string comes back as not found. No event is published.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := utils.VerifyToken(s.Cfg.JWTSecret, refreshToken)
	if err != nil || claims.TokenType != utils.TokenTypeRefresh {
		return Session{}, utils.ErrInvalidToken
	}
	rec, err := s.Tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if rec.Expired() {
		if derr := s.Tokens.Delete(ctx, rec.Token); derr != nil {
			log.Printf("auth: delete expired refresh token: %v", derr)
		}
		return Session{}, ErrTokenExpired
	}
	u, err := s.Users.GetByID(ctx, rec.UserID)
	if err != nil {
		return Session{}, err
	}
	access, err := utils.NewAccessToken(s.Cfg.JWTSecret, &u, s.Cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	return s.session(&u, access.Token, rec.Token, "Token refreshed"), nil
}

// Logout revokes every refresh token owned by the principal, not just
// the one used to log in. A nil principal (caller outside an
// authenticated context) is a silent no-op, and a second logout
// revokes nothing, so the operation is idempotent.
func (s *AuthService) Logout(ctx context.Context, principal *utils.Claims) error {
	if principal == nil {
		return nil
	}
	u, err := s.Users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if err := s.Tokens.DeleteByUser(ctx, u.ID); err != nil {
		return err
	}

	s.emit(ctx, q.UserEvent{
		EventType: q.EventUserLogout,
		UserID:    u.ID,
		Email:     u.Email,
		TenantID:  u.TenantID,
		AcademyID: u.AcademyID,
	})
	return nil
}

// Validate is a stateless signature-and-expiry check. It does not
// consult the token store, so an access token outlives a logout until
// its embedded expiry passes. That staleness window is accepted.
func (s *AuthService) Validate(tokenString string) bool {
	_, err := utils.VerifyToken(s.Cfg.JWTSecret, tokenString)
	return err == nil
}

// emit publishes an event and swallows failures. The primary state
// change is already durable by the time emit runs, so a broker outage
// must never turn a successful operation into a failure.
func (s *AuthService) emit(ctx context.Context, e q.UserEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		log.Printf("auth: publish %s event for user %d failed: %v", e.EventType, e.UserID, err)
	}
}

func (s *AuthService) session(u *model.User, access, refresh, msg string) Session {
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         string(u.Role),
		Message:      msg,
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		TenantID:     u.TenantID,
		AcademyID:    u.AcademyID,
	}
}
