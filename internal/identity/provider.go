// Package identity re-verifies a professional's identity at consent finalize
// time. This is a distinct, short-lived check on top of the session login: it
// is the non-repudiation step, so it always goes back to the credential source
// instead of trusting anything cached on the client.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrInvalidCredential    = errors.New("invalid credential")
)

// Provider checks a freshly supplied credential for a professional.
// Implementations must return ErrInvalidCredential on mismatch so callers can
// distinguish a bad credential from an infrastructure failure.
type Provider interface {
	Reauthenticate(ctx context.Context, professionalID uuid.UUID, credential string) error
}
