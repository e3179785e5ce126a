/*
Package session resolves connect-time credentials into verified identities.

The marketplace's auth service issues session tokens at login; this package is
the messaging server's narrow view of it. A credential is verified exactly once
per websocket connection and the resulting Identity is immutable for the
connection's lifetime.
*/
package session

import (
	"context"
	"errors"
	"fmt"

	"pitchchat/internal/pkg/auth/jwt"
)

// ErrInvalidCredential is returned when a credential fails verification.
// The connection carrying it is refused before any state is created.
var ErrInvalidCredential = errors.New("session: invalid credential")

// Identity is a verified chat participant.
type Identity struct {
	// UserID is the platform user id.
	UserID string `json:"userId"`

	// Username is the display name shown to other participants.
	Username string `json:"username"`

	// UserType is the marketplace role: creator, investor or production.
	UserType string `json:"userType"`
}

// Verifier maps a raw credential to a verified Identity.
type Verifier interface {
	VerifyIdentity(ctx context.Context, credential string) (Identity, error)
}

// jwtVerifier verifies HS256 session tokens signed by the platform auth service.
type jwtVerifier struct {
	secret string
}

// NewJWTVerifier returns a Verifier backed by the shared platform JWT secret.
func NewJWTVerifier(secret string) Verifier {
	return &jwtVerifier{secret: secret}
}

func (v *jwtVerifier) VerifyIdentity(_ context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}

	payload, err := jwt.ParseToken(credential, v.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if payload.ID == "" {
		return Identity{}, ErrInvalidCredential
	}

	return Identity{
		UserID:   payload.ID,
		Username: payload.Username,
		UserType: payload.UserType,
	}, nil
}
