package consent

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSigned    Status = "signed"
	StatusCompleted Status = "completed"
)

type TemplateType string

const (
	TypeTermo TemplateType = "termo"
	TypePos   TemplateType = "pos"
)

// Template is immutable. Its content is snapshotted into each record at match
// time, so later template edits never touch records already issued.
type Template struct {
	ID                uuid.UUID
	ClinicID          uuid.UUID
	Title             string
	Content           string
	ProcedureKeywords []string
	Type              TemplateType
	CreatedAt         time.Time
}

// Record is the per-visit consent agreement. It moves pending → signed by the
// patient actor and signed → completed by the professional actor after
// re-authentication, and is immutable once completed.
type Record struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	PatientID       uuid.UUID
	ProfessionalID  uuid.UUID
	TemplateID      *uuid.UUID
	ProcedureName   string
	ContentSnapshot string
	Status          Status

	// PatientSignature and ProfessionalSignatureSnapshot reference stored
	// signature images by handle, never inline bytes.
	PatientSignature              *string
	ProfessionalSignatureSnapshot *string

	ProfessionalValidatedWithPassword bool

	CreatedAt time.Time
	SignedAt  *time.Time
}
