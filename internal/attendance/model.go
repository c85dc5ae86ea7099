package attendance

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusArrived   AppointmentStatus = "arrived"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
	StatusBlocked   AppointmentStatus = "blocked"
	StatusCanceled  AppointmentStatus = "canceled"
)

// Terminal reports whether the status accepts no further transitions other
// than an explicit operator reopen. Blocked windows are not terminal: they can
// still be canceled to free the agenda.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCanceled:
		return true
	}
	return false
}

type Clinic struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty *string
	// SignatureRef points at the professional's stored signature image.
	SignatureRef *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Appointment is the unit the attendance state machine operates on.
// PatientID is nil only for blocked agenda windows.
type Appointment struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	PatientID      *uuid.UUID
	ProfessionalID uuid.UUID
	ServiceID      *uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Status         AppointmentStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
