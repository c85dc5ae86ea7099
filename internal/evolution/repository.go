package evolution

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrRecordNotFound = errors.New("evolution record not found")

type Repository interface {
	CreateRecord(ctx context.Context, rec Record) (*Record, error)
	GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, error)
	SetInvalidated(ctx context.Context, id uuid.UUID) (*Record, error)
}
