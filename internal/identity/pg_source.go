package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgCredentialSource struct {
	pool *pgxpool.Pool
}

func NewPgCredentialSource(pool *pgxpool.Pool) *PgCredentialSource {
	return &PgCredentialSource{pool: pool}
}

func (s *PgCredentialSource) PasswordHash(ctx context.Context, professionalID uuid.UUID) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT password_hash
		FROM professionals
		WHERE id = $1
	`, professionalID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfessionalNotFound
		}
		return "", err
	}
	return hash, nil
}

func (s *PgCredentialSource) TOTPSecret(ctx context.Context, professionalID uuid.UUID) (string, error) {
	var secret *string
	err := s.pool.QueryRow(ctx, `
		SELECT totp_secret
		FROM professionals
		WHERE id = $1
	`, professionalID).Scan(&secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfessionalNotFound
		}
		return "", err
	}
	if secret == nil {
		return "", nil
	}
	return *secret, nil
}
