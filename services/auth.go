package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// SystemActor is used by background jobs and internal saga steps.
var SystemActor = Actor{UserID: "system", IsAdmin: true}

// CanActFor reports whether the actor may operate on userID's data.
func (a Actor) CanActFor(userID string) bool {
	return a.IsAdmin || (a.UserID != "" && a.UserID == userID)
}

// Authenticator resolves a bearer token to a stable user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

var ErrInvalidToken = errors.New("invalid token")

// JWTAuthenticator verifies HS256 tokens issued by the auth provider and
// uses the "sub" claim as the user id.
type JWTAuthenticator struct {
	secret   []byte
	audience string
}

func NewJWTAuthenticator(secret, audience string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), audience: audience}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}
