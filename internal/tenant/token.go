package tenant

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Additional-Code/cannadmin/internal/config"
)

var (
	// ErrInvalidToken is returned when the token is malformed or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the session inside a signed token.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies admin session tokens.
type TokenManager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a TokenManager from auth configuration.
func NewTokenManager(cfg config.Config) *TokenManager {
	return &TokenManager{
		key:    []byte(cfg.Auth.SigningKey),
		issuer: cfg.Auth.Issuer,
		ttl:    cfg.Auth.TokenTTL,
		now:    time.Now,
	}
}

// Issue signs a token for the session.
func (m *TokenManager) Issue(s Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	now := m.now()
	claims := Claims{
		TenantID: s.TenantID.String(),
		Role:     s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   s.AdminID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Parse verifies a token and returns the session it carries.
func (m *TokenManager) Parse(tokenString string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.key, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, ErrInvalidToken
	}

	s := Session{TenantID: tenantID, AdminID: adminID, Role: claims.Role}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}
