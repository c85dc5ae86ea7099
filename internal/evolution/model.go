package evolution

import (
	"time"

	"github.com/google/uuid"
)

// Record is the clinical note produced when a session finalizes. It is
// written once; the only mutation afterwards is the soft-invalidate flag.
type Record struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	AppointmentID  uuid.UUID
	Date           time.Time
	Subject        string
	Description    string
	Attachments    []string
	Invalidated    bool
	CreatedAt      time.Time
}

// NoteInput is what the professional's client submits on finalize.
type NoteInput struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	ClinicID       uuid.UUID
	AppointmentID  uuid.UUID
	Subject        string
	Description    string
	Attachments    []string
	// ProcedureName drives the consent gate; empty means no procedure was
	// selected and no consent is required.
	ProcedureName string
	// ReturnDate, when set, schedules a follow-up appointment.
	ReturnDate *time.Time
}
