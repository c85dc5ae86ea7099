package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/consent"
	"github.com/clinicflow/attendance-engine/internal/evolution"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func toAppointmentResponse(a *attendance.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		ClinicID:       a.ClinicID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Status:         string(a.Status),
		UpdatedAt:      a.UpdatedAt,
	}
}

func toConsentResponse(r *consent.Record) ConsentResponse {
	return ConsentResponse{
		ID:              r.ID,
		PatientID:       r.PatientID,
		ProfessionalID:  r.ProfessionalID,
		ProcedureName:   r.ProcedureName,
		ContentSnapshot: r.ContentSnapshot,
		Status:          string(r.Status),
		SignedAt:        r.SignedAt,
	}
}

func toEvolutionResponse(r *evolution.Record) EvolutionResponse {
	return EvolutionResponse{
		ID:            r.ID,
		PatientID:     r.PatientID,
		AppointmentID: r.AppointmentID,
		Date:          r.Date,
		Subject:       r.Subject,
		Description:   r.Description,
		Invalidated:   r.Invalidated,
	}
}
