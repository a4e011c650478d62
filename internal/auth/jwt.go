package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// Claims are the session claims issued to web clients
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for id
func (m *TokenManager) Issue(id domain.Identity) (string, error) {
	now := m.now()
	claims := Claims{
		Role:  string(id.Role),
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries.
// Every failure is reported as NotAuthenticated except an unknown role,
// which is NotAuthorized.
func (m *TokenManager) Verify(tokenString string) (*domain.Identity, error) {
	const op = "auth.Verify"

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, domain.NewError(domain.CodeNotAuthenticated, op, "missing token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return nil, &domain.Error{Code: domain.CodeNotAuthenticated, Op: op, Message: msg, Err: err}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, &domain.Error{Code: domain.CodeNotAuthenticated, Op: op, Message: "invalid subject", Err: err}
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}

	return &domain.Identity{UserID: userID, Role: role, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header value.
// A bare token without the scheme is accepted as well.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
