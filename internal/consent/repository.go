package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("consent template not found")
	ErrRecordNotFound   = errors.New("consent record not found")
	ErrPartyNotFound    = errors.New("patient or professional not found")
)

// PartyNames carries the display names substituted into a template's
// placeholder tokens.
type PartyNames struct {
	Patient      string
	Professional string
	Clinic       string
}

// Repository contains all DB interactions needed by the consent service.
type Repository interface {
	ListTemplatesByClinic(ctx context.Context, clinicID uuid.UUID) ([]Template, error)
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error)

	GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// FindOpenRecord returns the pending or signed record for the patient and
	// template created inside the window, the dedup key for idempotent draft
	// creation.
	FindOpenRecord(ctx context.Context, patientID, templateID uuid.UUID, dayStart, dayEnd time.Time) (*Record, error)

	// FindLatestRecord is FindOpenRecord without the status filter: the
	// newest record for the key regardless of how far it progressed. Used by
	// the evolution gate, where a completed record also satisfies consent.
	FindLatestRecord(ctx context.Context, patientID, templateID uuid.UUID, dayStart, dayEnd time.Time) (*Record, error)

	CreateRecord(ctx context.Context, rec Record) (*Record, error)

	// MarkSigned is a compare-and-swap from pending; MarkCompleted from
	// signed. Both return ErrRecordNotFound when the row is missing or the
	// swap misses.
	MarkSigned(ctx context.Context, id uuid.UUID, signatureRef string, signedAt time.Time) (*Record, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, professionalSignature string) (*Record, error)

	PartyNames(ctx context.Context, patientID, professionalID uuid.UUID) (PartyNames, error)
	ProfessionalSignatureRef(ctx context.Context, professionalID uuid.UUID) (string, error)
}
