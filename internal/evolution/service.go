package evolution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/clock"
	"github.com/clinicflow/attendance-engine/internal/consent"
	"github.com/clinicflow/attendance-engine/internal/timer"
)

var (
	// ErrSessionNotActive means the professional tried to save a note with no
	// running session for the patient. Start the session first.
	ErrSessionNotActive = errors.New("no active session for patient")
	// ErrConsentRequired means the selected procedure needs a consent that
	// the patient has not signed yet. Obtain the signature first, then retry.
	ErrConsentRequired = errors.New("procedure requires a signed consent")
)

// ConsentChecker is the slice of the consent service the finalizer needs.
type ConsentChecker interface {
	ConsentStatus(ctx context.Context, clinicID, patientID uuid.UUID, procedureName string) (bool, consent.Status, error)
}

// AppointmentBook is the slice of the attendance service the finalizer uses
// after the note is durable. Both calls are retryable on their own.
type AppointmentBook interface {
	Complete(ctx context.Context, id uuid.UUID) (*attendance.Appointment, error)
	ScheduleFollowUp(ctx context.Context, patientID, professionalID uuid.UUID, at time.Time) (*attendance.Appointment, error)
}

type Service struct {
	repo     Repository
	consents ConsentChecker
	book     AppointmentBook
	timers   timer.Store
	clk      clock.Clock
}

func NewService(repo Repository, consents ConsentChecker, book AppointmentBook, timers timer.Store, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		consents: consents,
		book:     book,
		timers:   timers,
		clk:      clk,
	}
}

// Save gates and persists the clinical note, then closes out the session.
// The note insert is the durability boundary: everything after it is
// best-effort bookkeeping that is logged and retried rather than allowed to
// lose the note.
func (s *Service) Save(ctx context.Context, input NoteInput) (*Record, error) {
	active, err := s.timers.Active(ctx, input.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check session state: %w", err)
	}
	if !active {
		return nil, ErrSessionNotActive
	}

	if input.ProcedureName != "" {
		required, status, err := s.consents.ConsentStatus(ctx, input.ClinicID, input.PatientID, input.ProcedureName)
		if err != nil {
			return nil, fmt.Errorf("check consent: %w", err)
		}
		if required && status != consent.StatusSigned && status != consent.StatusCompleted {
			return nil, ErrConsentRequired
		}
	}

	rec := Record{
		ID:             uuid.New(),
		PatientID:      input.PatientID,
		ProfessionalID: input.ProfessionalID,
		AppointmentID:  input.AppointmentID,
		Date:           s.clk.Now(),
		Subject:        input.Subject,
		Description:    input.Description,
		Attachments:    input.Attachments,
	}

	created, err := s.repo.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("persist evolution record: %w", err)
	}

	if input.ReturnDate != nil {
		if _, err := s.book.ScheduleFollowUp(ctx, input.PatientID, input.ProfessionalID, *input.ReturnDate); err != nil {
			log.Printf("failed to schedule follow-up for patient %s: %v", input.PatientID, err)
		}
	}

	if _, err := s.book.Complete(ctx, input.AppointmentID); err != nil {
		// The note is already durable. Completion can be retried on its own.
		log.Printf("failed to complete appointment %s after saving note %s: %v", input.AppointmentID, created.ID, err)
	}

	if err := s.timers.Clear(ctx, input.PatientID); err != nil {
		log.Printf("failed to clear session timer for patient %s: %v", input.PatientID, err)
	}

	return created, nil
}

// Invalidate flips the soft-invalidate flag. The record itself stays intact.
func (s *Service) Invalidate(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.SetInvalidated(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invalidate evolution record: %w", err)
	}
	return rec, nil
}

// GetRecord loads a single note.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetRecordByID(ctx, id)
}

// ListByPatient pages through a patient's notes, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListRecordsByPatient(ctx, patientID, limit, offset)
}
