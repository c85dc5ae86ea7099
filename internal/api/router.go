package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/consent"
	"github.com/clinicflow/attendance-engine/internal/evolution"
)

type RouterConfig struct {
	Attendance *attendance.Service
	Consents   *consent.Service
	Watcher    *consent.Watcher
	Evolutions *evolution.Service
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Attendance session lifecycle
	r.Post("/sessions/start", startSessionHandler(cfg.Attendance))
	r.Get("/sessions/{patientID}/elapsed", elapsedHandler(cfg.Attendance))

	r.Post("/appointments/{id}/confirm", appointmentActionHandler(func(req *http.Request, id uuid.UUID) (*attendance.Appointment, error) {
		return cfg.Attendance.Confirm(req.Context(), id)
	}))
	r.Post("/appointments/{id}/cancel", appointmentActionHandler(func(req *http.Request, id uuid.UUID) (*attendance.Appointment, error) {
		return cfg.Attendance.Cancel(req.Context(), id)
	}))
	r.Post("/appointments/{id}/no-show", appointmentActionHandler(func(req *http.Request, id uuid.UUID) (*attendance.Appointment, error) {
		return cfg.Attendance.MarkNoShow(req.Context(), id)
	}))
	r.Post("/appointments/{id}/reopen", reopenAppointmentHandler(cfg.Attendance))
	r.Post("/appointments/block", blockAgendaHandler(cfg.Attendance))

	// Consent handshake
	r.Post("/consents/require", requireConsentHandler(cfg.Consents))
	r.Get("/consents/{id}", getConsentHandler(cfg.Consents))
	r.Get("/consents/{id}/sign-link", signLinkHandler(cfg.Consents))
	r.Post("/consents/{id}/signature", submitSignatureHandler(cfg.Consents))
	r.Post("/consents/{id}/finalize", finalizeConsentHandler(cfg.Consents))
	r.Get("/consents/{id}/watch", watchConsentHandler(cfg.Watcher))

	// Clinical notes
	r.Post("/evolutions", saveEvolutionHandler(cfg.Evolutions))
	r.Post("/evolutions/{id}/invalidate", invalidateEvolutionHandler(cfg.Evolutions))
	r.Get("/patients/{patientID}/evolutions", listEvolutionsHandler(cfg.Evolutions))

	return r
}
