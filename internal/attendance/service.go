package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/clock"
	"github.com/clinicflow/attendance-engine/internal/config"
	"github.com/clinicflow/attendance-engine/internal/timer"
)

const (
	EventSessionStarted        = "SESSION_STARTED"
	EventStaleArrivedCompleted = "STALE_ARRIVED_COMPLETED"
	EventAppointmentConfirmed  = "APPOINTMENT_CONFIRMED"
	EventAppointmentCanceled   = "APPOINTMENT_CANCELED"
	EventAppointmentNoShow     = "APPOINTMENT_NO_SHOW"
	EventAppointmentCompleted  = "APPOINTMENT_COMPLETED"
	EventAppointmentReopened   = "APPOINTMENT_REOPENED"
	EventAgendaBlocked         = "AGENDA_BLOCKED"
)

var (
	// ErrClinicNotResolved means the owning clinic for the professional could
	// not be determined. Fatal for the operation, nothing is mutated.
	ErrClinicNotResolved       = errors.New("clinic could not be resolved for professional")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type Service struct {
	repo   Repository
	timers timer.Store
	clk    clock.Clock
	cfg    config.Config
}

func NewService(repo Repository, timers timer.Store, clk clock.Clock, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		timers: timers,
		clk:    clk,
		cfg:    cfg,
	}
}

// StartSession begins attending a patient. It first closes every other
// arrived appointment the professional still has open (sessions left behind
// by crashed or forgotten clients), then resolves today's appointment for the
// patient, creating an ad-hoc one when nothing is on the agenda, and marks it
// arrived. The session timer origin is recorded as part of the same call.
//
// A professional can physically run only one session, so the single-arrived
// invariant is enforced optimistically: read, complete stale, then set the new
// one. A partially applied prior attempt is repaired, never an error.
func (s *Service) StartSession(ctx context.Context, patientID, professionalID uuid.UUID) (*Appointment, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	professional, err := s.repo.GetProfessionalByID(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	// All validation happens before any write.
	if professional.ClinicID == uuid.Nil {
		return nil, ErrClinicNotResolved
	}
	if patient.ClinicID != uuid.Nil && patient.ClinicID != professional.ClinicID {
		return nil, ErrClinicNotResolved
	}

	arrived, err := s.repo.ListArrivedByProfessional(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list arrived appointments: %w", err)
	}

	// An arrived appointment for this same patient means the client reloaded
	// mid-session. Keep it; close everything else.
	var current *Appointment
	for i := range arrived {
		appt := arrived[i]
		if appt.PatientID != nil && *appt.PatientID == patientID {
			current = &appt
			continue
		}
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusArrived, StatusCompleted); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Someone else already moved it, the sweep's job is done.
				continue
			}
			return nil, fmt.Errorf("complete stale arrived appointment %s: %w", appt.ID, err)
		}
		s.logEvent(ctx, appt.ID, EventStaleArrivedCompleted, map[string]any{
			"professional_id": professionalID.String(),
			"reason":          "new_session_started",
		})
	}

	if current == nil {
		current, err = s.resolveOrCreate(ctx, patientID, professional)
		if err != nil {
			return nil, err
		}

		if current.Status != StatusArrived {
			updated, err := s.repo.UpdateAppointmentStatus(ctx, current.ID, current.Status, StatusArrived)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					// The swap missed. Re-read: a retry of this same call may
					// already have marked it arrived.
					reloaded, rerr := s.repo.GetAppointmentByID(ctx, current.ID)
					if rerr == nil && reloaded.Status == StatusArrived {
						updated = reloaded
					} else {
						return nil, fmt.Errorf("mark appointment arrived: %w", err)
					}
				} else {
					return nil, fmt.Errorf("mark appointment arrived: %w", err)
				}
			}
			current = updated
		}
	}

	if _, err := s.timers.Start(ctx, patientID); err != nil {
		// The appointment is already arrived; a timer write failure must not
		// abort the session. Elapsed will read zero until a retry succeeds.
		log.Printf("failed to record session origin for patient %s: %v", patientID, err)
	}

	s.logEvent(ctx, current.ID, EventSessionStarted, map[string]any{
		"patient_id":      patientID.String(),
		"professional_id": professionalID.String(),
	})

	return current, nil
}

func (s *Service) resolveOrCreate(ctx context.Context, patientID uuid.UUID, professional *Professional) (*Appointment, error) {
	dayStart, dayEnd := s.dayBounds()

	existing, err := s.repo.FindOpenAppointmentForPatient(ctx, patientID, professional.ID, dayStart, dayEnd)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("find appointment for patient: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// Walk-in: nothing on this professional's agenda today, create an
	// ad-hoc appointment. A booking with another professional stays where
	// it is; marking it arrived here could give that professional a second
	// simultaneous arrived appointment.
	now := s.clk.Now()
	pid := patientID
	appt := Appointment{
		ID:             uuid.New(),
		ClinicID:       professional.ClinicID,
		PatientID:      &pid,
		ProfessionalID: professional.ID,
		StartTime:      now,
		EndTime:        now.Add(s.cfg.SessionLength),
		Status:         StatusScheduled,
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create ad-hoc appointment: %w", err)
	}
	return created, nil
}

// Confirm moves a scheduled appointment to confirmed. Confirming an already
// confirmed appointment is a no-op.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusConfirmed {
		return appt, nil
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// Cancel moves any non-terminal appointment to canceled. Canceling an
// appointment that already reached a terminal status is a no-op. The session
// timer for the patient is cleared when an arrived appointment is canceled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status.Terminal() {
		return appt, nil
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCanceled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race. Re-read and treat an already-terminal row as done.
			reloaded, rerr := s.repo.GetAppointmentByID(ctx, appt.ID)
			if rerr == nil && reloaded.Status.Terminal() {
				return reloaded, nil
			}
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.Status == StatusArrived && appt.PatientID != nil {
		if err := s.timers.Clear(ctx, *appt.PatientID); err != nil {
			log.Printf("failed to clear session timer for patient %s: %v", *appt.PatientID, err)
		}
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCanceled, map[string]any{
		"previous_status": string(appt.Status),
	})
	return updated, nil
}

// MarkNoShow records that the patient never arrived. Only scheduled and
// confirmed appointments qualify.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusNoShow)
	if err != nil {
		return nil, fmt.Errorf("mark no-show: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentNoShow, map[string]any{})
	return updated, nil
}

// Reopen is the explicit operator override pulling a completed or no_show
// appointment back to confirmed. Every reopen is recorded in the event log
// with who asked for it.
func (s *Service) Reopen(ctx context.Context, id, operatorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusCompleted && appt.Status != StatusNoShow {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("reopen appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentReopened, map[string]any{
		"previous_status": string(appt.Status),
		"operator_id":     operatorID.String(),
	})
	return updated, nil
}

// Block reserves a patient-less window on the professional's agenda. Blocked
// windows never count against the single-arrived invariant.
func (s *Service) Block(ctx context.Context, professionalID uuid.UUID, start, end time.Time, note string) (*Appointment, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("block window end must be after start")
	}

	professional, err := s.repo.GetProfessionalByID(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if professional.ClinicID == uuid.Nil {
		return nil, ErrClinicNotResolved
	}

	appt := Appointment{
		ID:             uuid.New(),
		ClinicID:       professional.ClinicID,
		ProfessionalID: professionalID,
		StartTime:      start,
		EndTime:        end,
		Status:         StatusBlocked,
		Notes:          note,
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create blocked window: %w", err)
	}

	s.logEvent(ctx, created.ID, EventAgendaBlocked, map[string]any{
		"start": start,
		"end":   end,
	})
	return created, nil
}

// Complete moves an arrived appointment to completed. Completing an already
// completed appointment is a no-op, which makes the call safe to retry after
// a finalize that persisted the note but failed here.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusCompleted {
		return appt, nil
	}
	if appt.Status != StatusArrived {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusArrived, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

// ScheduleFollowUp books a return visit for the patient. Used by the
// evolution finalizer when a note carries a return date.
func (s *Service) ScheduleFollowUp(ctx context.Context, patientID, professionalID uuid.UUID, at time.Time) (*Appointment, error) {
	professional, err := s.repo.GetProfessionalByID(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if professional.ClinicID == uuid.Nil {
		return nil, ErrClinicNotResolved
	}

	pid := patientID
	appt := Appointment{
		ID:             uuid.New(),
		ClinicID:       professional.ClinicID,
		PatientID:      &pid,
		ProfessionalID: professionalID,
		StartTime:      at,
		EndTime:        at.Add(s.cfg.SessionLength),
		Status:         StatusScheduled,
		Notes:          "retorno",
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create follow-up appointment: %w", err)
	}
	return created, nil
}

// CompleteStaleArrivals closes arrived appointments not touched since the
// cutoff. Intended to be called by the worker periodically as a global backstop
// for the per-professional sweep in StartSession.
func (s *Service) CompleteStaleArrivals(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clk.Now().Add(-olderThan)

	stale, err := s.repo.ListArrivedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale arrived appointments: %w", err)
	}

	closed := 0
	for _, appt := range stale {
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusArrived, StatusCompleted); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			log.Printf("failed to close stale appointment %s: %v", appt.ID, err)
			continue
		}
		closed++
		s.logEvent(ctx, appt.ID, EventStaleArrivedCompleted, map[string]any{
			"reason": "worker",
		})
	}

	return closed, nil
}

// Elapsed reports how long the patient's current session has been running,
// zero when no session is active.
func (s *Service) Elapsed(ctx context.Context, patientID uuid.UUID) (time.Duration, error) {
	return s.timers.Elapsed(ctx, patientID)
}

// SessionActive reports whether a session timer exists for the patient. A
// just-started session is active even while its elapsed time still reads
// zero.
func (s *Service) SessionActive(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return s.timers.Active(ctx, patientID)
}

func (s *Service) dayBounds() (time.Time, time.Time) {
	loc := s.cfg.Location()
	now := s.clk.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clk.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
