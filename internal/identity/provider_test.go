package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type fakeSource struct {
	hashes  map[uuid.UUID]string
	secrets map[uuid.UUID]string
}

func (s *fakeSource) PasswordHash(_ context.Context, id uuid.UUID) (string, error) {
	h, ok := s.hashes[id]
	if !ok {
		return "", ErrProfessionalNotFound
	}
	return h, nil
}

func (s *fakeSource) TOTPSecret(_ context.Context, id uuid.UUID) (string, error) {
	sec, ok := s.secrets[id]
	if !ok {
		return "", ErrProfessionalNotFound
	}
	return sec, nil
}

func TestPasswordProvider(t *testing.T) {
	ctx := context.Background()
	professional := uuid.New()

	hash, err := bcrypt.GenerateFromPassword([]byte("segredo123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	provider := NewPasswordProvider(&fakeSource{
		hashes: map[uuid.UUID]string{professional: string(hash)},
	})

	if err := provider.Reauthenticate(ctx, professional, "segredo123"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := provider.Reauthenticate(ctx, professional, "errada"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := provider.Reauthenticate(ctx, uuid.New(), "segredo123"); !errors.Is(err, ErrProfessionalNotFound) {
		t.Fatalf("expected ErrProfessionalNotFound, got %v", err)
	}
}

func TestTOTPProvider(t *testing.T) {
	ctx := context.Background()
	professional := uuid.New()

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "clinicflow", AccountName: "dra.souza"})
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	provider := NewTOTPProvider(&fakeSource{
		secrets: map[uuid.UUID]string{professional: key.Secret()},
	})

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	if err := provider.Reauthenticate(ctx, professional, code); err != nil {
		t.Fatalf("valid code rejected: %v", err)
	}
	if err := provider.Reauthenticate(ctx, professional, "000000"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestTOTPProviderRejectsUnenrolled(t *testing.T) {
	professional := uuid.New()
	provider := NewTOTPProvider(&fakeSource{
		secrets: map[uuid.UUID]string{professional: ""},
	})

	err := provider.Reauthenticate(context.Background(), professional, "123456")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for empty secret, got %v", err)
	}
}
