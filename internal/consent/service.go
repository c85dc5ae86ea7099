package consent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/clock"
	"github.com/clinicflow/attendance-engine/internal/config"
	"github.com/clinicflow/attendance-engine/internal/identity"
	redisclient "github.com/clinicflow/attendance-engine/internal/redis"
)

var (
	// ErrNotReady means finalize ran before the patient signed. Retry after
	// the signature arrives.
	ErrNotReady = errors.New("consent has not been signed by the patient yet")
	// ErrAuthentication means the professional's re-authentication failed or
	// timed out. The record stays signed and the call is retryable.
	ErrAuthentication = errors.New("professional re-authentication failed")
	// ErrNotPending means a signature was submitted against a record that is
	// no longer waiting for one.
	ErrNotPending = errors.New("consent record is not pending")
)

type Service struct {
	repo     Repository
	notifier redisclient.Notifier
	provider identity.Provider
	clk      clock.Clock
	cfg      config.Config
}

func NewService(repo Repository, notifier redisclient.Notifier, provider identity.Provider, clk clock.Clock, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		provider: provider,
		clk:      clk,
		cfg:      cfg,
	}
}

// RequireConsent resolves whether a procedure needs a consent record and, when
// it does, ensures exactly one open record exists for the patient today. A nil
// record with a nil error means the procedure needs no consent.
func (s *Service) RequireConsent(ctx context.Context, clinicID, patientID, professionalID uuid.UUID, procedureName string) (*Record, error) {
	templates, err := s.repo.ListTemplatesByClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list consent templates: %w", err)
	}

	tpl := Match(procedureName, templates)
	if tpl == nil {
		return nil, nil
	}

	return s.EnsurePending(ctx, patientID, professionalID, *tpl, procedureName)
}

// EnsurePending returns the open consent record for (patient, template, day),
// creating a pending one when none exists. Repeated calls never create
// duplicates: the existing record is returned unchanged.
func (s *Service) EnsurePending(ctx context.Context, patientID, professionalID uuid.UUID, tpl Template, procedureName string) (*Record, error) {
	dayStart, dayEnd := s.dayBounds()

	existing, err := s.repo.FindOpenRecord(ctx, patientID, tpl.ID, dayStart, dayEnd)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("find open consent record: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	names, err := s.repo.PartyNames(ctx, patientID, professionalID)
	if err != nil {
		return nil, fmt.Errorf("resolve party names: %w", err)
	}

	tplID := tpl.ID
	rec := Record{
		ID:              uuid.New(),
		ClinicID:        tpl.ClinicID,
		PatientID:       patientID,
		ProfessionalID:  professionalID,
		TemplateID:      &tplID,
		ProcedureName:   procedureName,
		ContentSnapshot: renderContent(tpl.Content, names, s.clk.Now().In(s.cfg.Location())),
		Status:          StatusPending,
	}

	created, err := s.repo.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create pending consent record: %w", err)
	}
	return created, nil
}

// SubmitSignature is the patient actor's half of the handshake: it attaches
// the signature image reference and flips the record to signed. Submitting
// against an already signed record is a no-op returning the record as stored.
func (s *Service) SubmitSignature(ctx context.Context, consentID uuid.UUID, signatureRef string) (*Record, error) {
	if signatureRef == "" {
		return nil, fmt.Errorf("signature reference is required")
	}

	signed, err := s.repo.MarkSigned(ctx, consentID, signatureRef, s.clk.Now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// Swap miss or truly missing. Re-read to tell the two apart.
			rec, rerr := s.repo.GetRecordByID(ctx, consentID)
			if rerr != nil {
				return nil, rerr
			}
			if rec.Status == StatusSigned || rec.Status == StatusCompleted {
				return rec, nil
			}
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("mark consent signed: %w", err)
	}

	// Best-effort hint. The professional's watcher polls regardless, so a
	// failed publish only costs latency.
	if err := s.notifier.NotifyChanged(ctx, consentID); err != nil {
		log.Printf("failed to publish consent change hint for %s: %v", consentID, err)
	}

	return signed, nil
}

// Finalize is the professional actor's half: it re-verifies the professional's
// identity and seals the signed record. The re-authentication is bounded by
// the configured timeout and any failure maps to ErrAuthentication with no
// mutation, so the call can simply be retried. Finalizing an already completed
// record is a no-op.
func (s *Service) Finalize(ctx context.Context, consentID uuid.UUID, credential string) (*Record, error) {
	rec, err := s.repo.GetRecordByID(ctx, consentID)
	if err != nil {
		return nil, fmt.Errorf("load consent record: %w", err)
	}

	if rec.Status == StatusCompleted {
		return rec, nil
	}
	if rec.Status != StatusSigned {
		return nil, ErrNotReady
	}

	reauthCtx, cancel := context.WithTimeout(ctx, s.cfg.ReauthTimeout)
	defer cancel()

	if err := s.provider.Reauthenticate(reauthCtx, rec.ProfessionalID, credential); err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrAuthentication
		}
		return nil, fmt.Errorf("re-authenticate professional: %w", err)
	}

	signatureRef, err := s.repo.ProfessionalSignatureRef(ctx, rec.ProfessionalID)
	if err != nil {
		return nil, fmt.Errorf("load professional signature: %w", err)
	}

	completed, err := s.repo.MarkCompleted(ctx, consentID, signatureRef)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// A concurrent finalize won the swap. Idempotent from the
			// caller's point of view.
			rec, rerr := s.repo.GetRecordByID(ctx, consentID)
			if rerr == nil && rec.Status == StatusCompleted {
				return rec, nil
			}
		}
		return nil, fmt.Errorf("mark consent completed: %w", err)
	}

	if err := s.notifier.NotifyChanged(ctx, consentID); err != nil {
		log.Printf("failed to publish consent change hint for %s: %v", consentID, err)
	}

	return completed, nil
}

// ConsentStatus reports whether a procedure requires consent for the patient
// today and, when it does, how far the record progressed. A required procedure
// with no record at all reports StatusPending: from the gate's point of view
// both mean the signature is still missing.
func (s *Service) ConsentStatus(ctx context.Context, clinicID, patientID uuid.UUID, procedureName string) (bool, Status, error) {
	templates, err := s.repo.ListTemplatesByClinic(ctx, clinicID)
	if err != nil {
		return false, "", fmt.Errorf("list consent templates: %w", err)
	}

	tpl := Match(procedureName, templates)
	if tpl == nil {
		return false, "", nil
	}

	dayStart, dayEnd := s.dayBounds()
	rec, err := s.repo.FindLatestRecord(ctx, patientID, tpl.ID, dayStart, dayEnd)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return true, StatusPending, nil
		}
		return false, "", fmt.Errorf("find consent record: %w", err)
	}

	return true, rec.Status, nil
}

// GetRecord is the authoritative pull the sync channel and handlers rely on.
func (s *Service) GetRecord(ctx context.Context, consentID uuid.UUID) (*Record, error) {
	return s.repo.GetRecordByID(ctx, consentID)
}

func (s *Service) dayBounds() (time.Time, time.Time) {
	loc := s.cfg.Location()
	now := s.clk.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

// renderContent substitutes the placeholder tokens a template may carry.
// Unknown tokens are left as-is so a typo in a template is visible instead of
// silently dropped.
func renderContent(content string, names PartyNames, now time.Time) string {
	r := strings.NewReplacer(
		"{{paciente}}", names.Patient,
		"{{profissional}}", names.Professional,
		"{{clinica}}", names.Clinic,
		"{{data}}", now.Format("02/01/2006"),
	)
	return r.Replace(content)
}
