package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

type totpProvider struct {
	source CredentialSource
}

// NewTOTPProvider creates a Provider that treats the credential as a one-time
// code from the professional's authenticator app. It is a drop-in alternative
// to the password provider; the consent state machine does not care which
// mechanism performed the check.
func NewTOTPProvider(source CredentialSource) Provider {
	return &totpProvider{source: source}
}

func (p *totpProvider) Reauthenticate(ctx context.Context, professionalID uuid.UUID, credential string) error {
	secret, err := p.source.TOTPSecret(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return err
		}
		return fmt.Errorf("load totp secret: %w", err)
	}
	if secret == "" {
		return ErrInvalidCredential
	}

	if !totp.Validate(credential, secret) {
		return ErrInvalidCredential
	}
	return nil
}
