package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/consent"
	"github.com/clinicflow/attendance-engine/internal/evolution"
)

func startSessionHandler(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		appt, err := svc.StartSession(r.Context(), patientID, professionalID)
		if err != nil {
			handleAttendanceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentActionHandler(action func(r *http.Request, id uuid.UUID) (*attendance.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := action(r, id)
		if err != nil {
			handleAttendanceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func reopenAppointmentHandler(svc *attendance.Service) http.HandlerFunc {
	return appointmentActionHandler(func(r *http.Request, id uuid.UUID) (*attendance.Appointment, error) {
		var req ReopenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errBadRequest("invalid_request_body", "could not parse JSON")
		}
		operatorID, err := uuid.Parse(req.OperatorID)
		if err != nil {
			return nil, errBadRequest("invalid_operator_id", "operator_id must be a valid UUID")
		}
		return svc.Reopen(r.Context(), id, operatorID)
	})
}

func blockAgendaHandler(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockAgendaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}

		appt, err := svc.Block(r.Context(), professionalID, req.Start, req.End, req.Note)
		if err != nil {
			handleAttendanceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func elapsedHandler(svc *attendance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		active, err := svc.SessionActive(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		elapsed, err := svc.Elapsed(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ElapsedResponse{
			PatientID:      patientID,
			Active:         active,
			ElapsedSeconds: int64(elapsed.Seconds()),
		})
	}
}

func requireConsentHandler(svc *consent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequireConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		if req.ProcedureName == "" {
			writeError(w, http.StatusBadRequest, "missing_procedure_name", "procedure_name is required")
			return
		}

		rec, err := svc.RequireConsent(r.Context(), clinicID, patientID, professionalID, req.ProcedureName)
		if err != nil {
			handleConsentError(w, err)
			return
		}

		resp := RequireConsentResponse{Required: rec != nil}
		if rec != nil {
			c := toConsentResponse(rec)
			resp.Consent = &c
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getConsentHandler(svc *consent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consent_id", "id must be a valid UUID")
			return
		}

		rec, err := svc.GetRecord(r.Context(), id)
		if err != nil {
			handleConsentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsentResponse(rec))
	}
}

func signLinkHandler(svc *consent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consent_id", "id must be a valid UUID")
			return
		}

		// The record must exist before a link is handed out.
		if _, err := svc.GetRecord(r.Context(), id); err != nil {
			handleConsentError(w, err)
			return
		}

		link, err := svc.SignLink(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SignLinkResponse{URL: link})
	}
}

func submitSignatureHandler(svc *consent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consent_id", "id must be a valid UUID")
			return
		}

		var req SubmitSignatureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.VerifySignToken(req.Token, id); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_sign_token", "the sign link is invalid or has expired, request a new one")
			return
		}
		if req.SignatureRef == "" {
			writeError(w, http.StatusBadRequest, "missing_signature", "signature_ref is required")
			return
		}

		rec, err := svc.SubmitSignature(r.Context(), id, req.SignatureRef)
		if err != nil {
			handleConsentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsentResponse(rec))
	}
}

func finalizeConsentHandler(svc *consent.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consent_id", "id must be a valid UUID")
			return
		}

		var req FinalizeConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.Finalize(r.Context(), id, req.Credential)
		if err != nil {
			handleConsentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsentResponse(rec))
	}
}

func saveEvolutionHandler(svc *evolution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveEvolutionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		input := evolution.NoteInput{
			Subject:       req.Subject,
			Description:   req.Description,
			Attachments:   req.Attachments,
			ProcedureName: req.ProcedureName,
			ReturnDate:    req.ReturnDate,
		}

		var err error
		if input.PatientID, err = uuid.Parse(req.PatientID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if input.ProfessionalID, err = uuid.Parse(req.ProfessionalID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		if input.ClinicID, err = uuid.Parse(req.ClinicID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		if input.AppointmentID, err = uuid.Parse(req.AppointmentID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		rec, err := svc.Save(r.Context(), input)
		if err != nil {
			handleEvolutionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEvolutionResponse(rec))
	}
}

func invalidateEvolutionHandler(svc *evolution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_evolution_id", "id must be a valid UUID")
			return
		}

		rec, err := svc.Invalidate(r.Context(), id)
		if err != nil {
			handleEvolutionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEvolutionResponse(rec))
	}
}

func listEvolutionsHandler(svc *evolution.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		records, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleEvolutionError(w, err)
			return
		}

		out := make([]EvolutionResponse, 0, len(records))
		for i := range records {
			out = append(out, toEvolutionResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// requestError carries a handler-level validation failure through the shared
// action plumbing.
type requestError struct {
	code    string
	details string
}

func (e *requestError) Error() string { return e.details }

func errBadRequest(code, details string) error {
	return &requestError{code: code, details: details}
}

func handleAttendanceError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.code, reqErr.details)
	case errors.Is(err, attendance.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, attendance.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, attendance.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, attendance.ErrClinicNotResolved):
		writeError(w, http.StatusUnprocessableEntity, "clinic_not_resolved", "the professional has no clinic configured, fix the registration before starting sessions")
	case errors.Is(err, attendance.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleConsentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consent.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "consent_not_found", err.Error())
	case errors.Is(err, consent.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, consent.ErrPartyNotFound):
		writeError(w, http.StatusNotFound, "party_not_found", err.Error())
	case errors.Is(err, consent.ErrNotReady):
		writeError(w, http.StatusConflict, "consent_not_signed", "the patient has not signed yet, obtain the signature first")
	case errors.Is(err, consent.ErrNotPending):
		writeError(w, http.StatusConflict, "consent_not_pending", err.Error())
	case errors.Is(err, consent.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "reauthentication_failed", "credential rejected, verify it and try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleEvolutionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, evolution.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session_not_active", "start the attendance session before saving the note")
	case errors.Is(err, evolution.ErrConsentRequired):
		writeError(w, http.StatusConflict, "consent_required", "the selected procedure requires a signed consent, obtain the signature first")
	case errors.Is(err, evolution.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "evolution_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
