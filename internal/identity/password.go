package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CredentialSource loads the stored secrets a provider verifies against.
type CredentialSource interface {
	PasswordHash(ctx context.Context, professionalID uuid.UUID) (string, error)
	TOTPSecret(ctx context.Context, professionalID uuid.UUID) (string, error)
}

type passwordProvider struct {
	source CredentialSource
}

// NewPasswordProvider creates a Provider that compares the supplied credential
// against the professional's stored bcrypt hash.
func NewPasswordProvider(source CredentialSource) Provider {
	return &passwordProvider{source: source}
}

func (p *passwordProvider) Reauthenticate(ctx context.Context, professionalID uuid.UUID, credential string) error {
	hash, err := p.source.PasswordHash(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return err
		}
		return fmt.Errorf("load password hash: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}
