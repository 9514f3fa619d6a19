package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation for token ids
    "encoding/hex"  // hex encoding of random token ids
    "errors"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

    "github.com/iliyamo/academy-auth/internal/model"
)

// Token type discriminators embedded in the "typ" claim. An access
// token can never be exchanged where a refresh token is expected and
// vice versa.
const (
    TokenTypeAccess  = "access"
    TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned by VerifyToken for every rejection:
// bad signature, malformed payload, or embedded expiry in the past.
// Callers must not learn which of the three occurred.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a signed token. AcademyID is nil
// when the user is not scoped to an academy.
type Claims struct {
    UserID    uint64
    Role      string
    TenantID  string
    AcademyID *uint64
    TokenType string
    IssuedAt  time.Time
    ExpiresAt time.Time
}

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived, carried in the Authorization header and
// never persisted server-side; validity is proven by signature and the
// embedded exp claim alone.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived signed token used to obtain new
// access tokens. The string form is also persisted by the token store so
// the server can revoke it before its embedded expiry.
type RefreshToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user. The JWT
// carries the subject (sub), role, tenant_id, academy_id, the access
// type discriminator, expiration (exp) and issued at (iat). The TTL is
// minutes-scale.
func NewAccessToken(secret string, u *model.User, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":       u.ID,
        "role":      string(u.Role),
        "tenant_id": u.TenantID,
        "typ":       TokenTypeAccess,
        "exp":       exp.Unix(),
        "iat":       now.Unix(),
    }
    if u.AcademyID != nil {
        claims["academy_id"] = *u.AcademyID
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs an HS256 JWT whose typ claim marks it
// as a refresh token. Refresh tokens live longer than access tokens
// (days-scale TTL) and carry only the subject; role and tenant are
// re-read from the user record when the token is exchanged. A random
// jti claim makes every issuance a distinct string: the token store
// keys records by the string itself, and a user may hold many live
// tokens at once, so two logins in the same second must not collide.
func NewRefreshToken(secret string, u *model.User, ttlDays int) (RefreshToken, error) {
    jti, err := randomHex(16)
    if err != nil {
        return RefreshToken{}, err
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
    claims := jwt.MapClaims{
        "sub": u.ID,
        "typ": TokenTypeRefresh,
        "jti": jti,
        "exp": exp.Unix(),
        "iat": now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Token: signed, Exp: exp}, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. If the random number generator
// fails, an error is returned.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}

// VerifyToken parses and validates a signed token string. Signature
// mismatch, structural garbage and expired tokens all come back as
// ErrInvalidToken; a malformed string is a normal outcome here, never a
// panic. On success the embedded claims are returned.
func VerifyToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with anything but HMAC; jwt.Parse would
        // otherwise accept an attacker-chosen algorithm.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Claims{}, ErrInvalidToken
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrInvalidToken
    }

    var c Claims
    sub, ok := mc["sub"].(float64)
    if !ok {
        return Claims{}, ErrInvalidToken
    }
    c.UserID = uint64(sub)
    c.TokenType, _ = mc["typ"].(string)
    c.Role, _ = mc["role"].(string)
    c.TenantID, _ = mc["tenant_id"].(string)
    if aid, ok := mc["academy_id"].(float64); ok {
        v := uint64(aid)
        c.AcademyID = &v
    }
    if iat, ok := mc["iat"].(float64); ok {
        c.IssuedAt = time.Unix(int64(iat), 0).UTC()
    }
    if exp, ok := mc["exp"].(float64); ok {
        c.ExpiresAt = time.Unix(int64(exp), 0).UTC()
    }
    return c, nil
}
