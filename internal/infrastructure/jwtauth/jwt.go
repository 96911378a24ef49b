package jwtauth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"campuslink/internal/domain/entity"
	"campuslink/internal/domain/repository"
	"campuslink/internal/infrastructure/firebase"
	"campuslink/pkg/errors"
)

// Claims are the HS256 token claims: the subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies self-hosted HS256 bearer tokens.
type Manager struct {
	secret   []byte
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewManager(secret string, userRepo repository.UserRepository) *Manager {
	return &Manager{
		secret:   []byte(secret),
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Issue signs a token for identity that expires after ttl.
func (m *Manager) Issue(identity entity.Identity, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Role: identity.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Internal("Failed to sign token", err)
	}
	return signed, nil
}

func (m *Manager) Verify(ctx context.Context, tokenString string) (*entity.Identity, error) {
	if tokenString == "" {
		return nil, errors.Unauthorized("Authentication token is required", nil)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("Unexpected signing method", nil)
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	return firebase.ResolveIdentity(ctx, m.userRepo, claims.Subject, claims.Role)
}
