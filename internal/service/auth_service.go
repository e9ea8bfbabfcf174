package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"weigh_station/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// settingsScope is the only scope tokens carry: access to the settings surface.
const settingsScope = "settings"

const defaultTokenTTL = time.Hour

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

// AuthService gates the settings surface behind the station password.
// There are no user accounts: one password, one scope.
type AuthService struct {
	cfg ConfigStore

	// Config may carry the password as plain text; it is hashed once here so
	// every Unlock goes through the same bcrypt comparison.
	mu    sync.Mutex
	plain string
	hash  string
}

func NewAuthService(cfg ConfigStore) *AuthService {
	return &AuthService{cfg: cfg}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Unlock validates the settings password and returns JWT
func (s *AuthService) Unlock(password string) (string, error) {
	snap := s.cfg.Snapshot()
	hash, err := s.passwordHash(snap.Auth.SettingsPassword)
	if err != nil {
		return "", err
	}
	if err := verifyPassword(hash, password); err != nil {
		return "", ErrInvalidPassword
	}
	return issueToken(snap.Auth)
}

// ParseToken parses JWT and returns the granted scope
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	snap := s.cfg.Snapshot()
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(snap.Auth.SigningKey), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != settingsScope {
		return "", ErrInvalidToken
	}

	return claims.Scope, nil
}

// passwordHash resolves the configured settings password to a bcrypt hash.
// A value that already looks like a bcrypt hash is used as is; anything else
// is treated as plain text and hashed once, cached until the value changes.
func (s *AuthService) passwordHash(configured string) (string, error) {
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return configured, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plain == configured && s.hash != "" {
		return s.hash, nil
	}
	hash, err := hashPassword(configured)
	if err != nil {
		return "", err
	}
	s.plain, s.hash = configured, hash
	return hash, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for the settings scope
func issueToken(a config.Auth) (string, error) {
	now := time.Now()
	ttl := a.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scope: settingsScope,
	})
	return token.SignedString([]byte(a.SigningKey))
}
