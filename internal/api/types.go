package api

import (
	"time"

	"github.com/google/uuid"
)

type StartSessionRequest struct {
	PatientID      string `json:"patient_id"`
	ProfessionalID string `json:"professional_id"`
}

type BlockAgendaRequest struct {
	ProfessionalID string    `json:"professional_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Note           string    `json:"note,omitempty"`
}

type ReopenRequest struct {
	OperatorID string `json:"operator_id"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	ClinicID       uuid.UUID  `json:"clinic_id"`
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	ProfessionalID uuid.UUID  `json:"professional_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Status         string     `json:"status"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type RequireConsentRequest struct {
	ClinicID       string `json:"clinic_id"`
	PatientID      string `json:"patient_id"`
	ProfessionalID string `json:"professional_id"`
	ProcedureName  string `json:"procedure_name"`
}

type RequireConsentResponse struct {
	Required bool             `json:"required"`
	Consent  *ConsentResponse `json:"consent,omitempty"`
}

type ConsentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ProfessionalID  uuid.UUID  `json:"professional_id"`
	ProcedureName   string     `json:"procedure_name"`
	ContentSnapshot string     `json:"content_snapshot"`
	Status          string     `json:"status"`
	SignedAt        *time.Time `json:"signed_at,omitempty"`
}

type SignLinkResponse struct {
	URL string `json:"url"`
}

type SubmitSignatureRequest struct {
	Token        string `json:"token"`
	SignatureRef string `json:"signature_ref"`
}

type FinalizeConsentRequest struct {
	Credential string `json:"credential"`
}

type SaveEvolutionRequest struct {
	PatientID      string     `json:"patient_id"`
	ProfessionalID string     `json:"professional_id"`
	ClinicID       string     `json:"clinic_id"`
	AppointmentID  string     `json:"appointment_id"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
	Attachments    []string   `json:"attachments,omitempty"`
	ProcedureName  string     `json:"procedure_name,omitempty"`
	ReturnDate     *time.Time `json:"return_date,omitempty"`
}

type EvolutionResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Date          time.Time `json:"date"`
	Subject       string    `json:"subject"`
	Description   string    `json:"description"`
	Invalidated   bool      `json:"invalidated"`
}

type ElapsedResponse struct {
	PatientID      uuid.UUID `json:"patient_id"`
	Active         bool      `json:"active"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
