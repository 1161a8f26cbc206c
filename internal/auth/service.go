package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RoleAdmin  = "admin"
	defaultTTL = 24 * time.Hour
	issuer     = "contract-broker"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotAdmin     = errors.New("token does not carry the admin role")
)

// Claims are the registered claims plus the caller's role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 admin tokens and holds the shared admin secret.
type Service struct {
	jwtSecret   []byte
	adminSecret string
	ttl         time.Duration
	now         func() time.Time
}

// NewService falls back to ephemeral random secrets when either is empty.
func NewService(adminSecret, jwtSecret string, ttl time.Duration, logger *logrus.Logger) (*Service, error) {
	adminSecret = strings.TrimSpace(adminSecret)
	jwtSecret = strings.TrimSpace(jwtSecret)
	var err error
	if adminSecret == "" {
		if adminSecret, err = randomSecret(); err != nil {
			return nil, fmt.Errorf("generate admin secret fallback: %w", err)
		}
		logger.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	if jwtSecret == "" {
		if jwtSecret, err = randomSecret(); err != nil {
			return nil, fmt.Errorf("generate JWT secret fallback: %w", err)
		}
		logger.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		jwtSecret:   []byte(jwtSecret),
		adminSecret: adminSecret,
		ttl:         ttl,
		now:         time.Now,
	}, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IssueAdminToken mints an admin token for subject (typically the operator's email).
func (s *Service) IssueAdminToken(subject string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) ParseAdminToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != RoleAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}
