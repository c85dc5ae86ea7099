package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Session start: the stale sweep and today's appointment lookup. The
	// lookup is scoped to one professional's agenda; a patient scheduled
	// with someone else is a walk-in from this professional's point of view.
	ListArrivedByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Appointment, error)
	FindOpenAppointmentForPatient(ctx context.Context, patientID, professionalID uuid.UUID, dayStart, dayEnd time.Time) (*Appointment, error)

	// Stale-session worker.
	ListArrivedOlderThan(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-swap: it only applies when the
	// stored status still equals from, and returns ErrAppointmentNotFound
	// when the row is missing or the swap misses.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
