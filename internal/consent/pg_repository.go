package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `id, clinic_id, patient_id, professional_id, template_id, procedure_name, content_snapshot, status, patient_signature, professional_signature_snapshot, professional_validated_with_password, created_at, signed_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template

	err := row.Scan(
		&t.ID,
		&t.ClinicID,
		&t.Title,
		&t.Content,
		&t.ProcedureKeywords,
		&t.Type,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var templateID *uuid.UUID
	var patientSig, profSig *string
	var signedAt *time.Time

	err := row.Scan(
		&r.ID,
		&r.ClinicID,
		&r.PatientID,
		&r.ProfessionalID,
		&templateID,
		&r.ProcedureName,
		&r.ContentSnapshot,
		&r.Status,
		&patientSig,
		&profSig,
		&r.ProfessionalValidatedWithPassword,
		&r.CreatedAt,
		&signedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	r.TemplateID = templateID
	r.PatientSignature = patientSig
	r.ProfessionalSignatureSnapshot = profSig
	r.SignedAt = signedAt
	return &r, nil
}

func (p *PgRepository) ListTemplatesByClinic(ctx context.Context, clinicID uuid.UUID) ([]Template, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, clinic_id, title, content, procedure_keywords, type, created_at
		FROM consent_templates
		WHERE clinic_id = $1
		ORDER BY created_at
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PgRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, clinic_id, title, content, procedure_keywords, type, created_at
		FROM consent_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (p *PgRepository) GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (p *PgRepository) FindOpenRecord(ctx context.Context, patientID, templateID uuid.UUID, dayStart, dayEnd time.Time) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE patient_id = $1
		  AND template_id = $2
		  AND status IN ('pending', 'signed')
		  AND created_at >= $3
		  AND created_at < $4
		ORDER BY created_at
		LIMIT 1
	`, patientID, templateID, dayStart, dayEnd)
	return scanRecord(row)
}

func (p *PgRepository) FindLatestRecord(ctx context.Context, patientID, templateID uuid.UUID, dayStart, dayEnd time.Time) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE patient_id = $1
		  AND template_id = $2
		  AND created_at >= $3
		  AND created_at < $4
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID, templateID, dayStart, dayEnd)
	return scanRecord(row)
}

func (p *PgRepository) CreateRecord(ctx context.Context, rec Record) (*Record, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO consent_records (id, clinic_id, patient_id, professional_id, template_id, procedure_name, content_snapshot, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', now())
		RETURNING `+recordColumns+`
	`, id, rec.ClinicID, rec.PatientID, rec.ProfessionalID, rec.TemplateID, rec.ProcedureName, rec.ContentSnapshot)

	return scanRecord(row)
}

func (p *PgRepository) MarkSigned(ctx context.Context, id uuid.UUID, signatureRef string, signedAt time.Time) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE consent_records
		SET status = 'signed',
		    patient_signature = $2,
		    signed_at = $3
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+recordColumns+`
	`, id, signatureRef, signedAt)

	return scanRecord(row)
}

func (p *PgRepository) MarkCompleted(ctx context.Context, id uuid.UUID, professionalSignature string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE consent_records
		SET status = 'completed',
		    professional_signature_snapshot = $2,
		    professional_validated_with_password = TRUE
		WHERE id = $1
		  AND status = 'signed'
		RETURNING `+recordColumns+`
	`, id, professionalSignature)

	return scanRecord(row)
}

func (p *PgRepository) PartyNames(ctx context.Context, patientID, professionalID uuid.UUID) (PartyNames, error) {
	var names PartyNames

	err := p.pool.QueryRow(ctx, `
		SELECT pa.name, pr.name, c.name
		FROM patients pa
		JOIN professionals pr ON pr.id = $2
		JOIN clinics c ON c.id = pr.clinic_id
		WHERE pa.id = $1
	`, patientID, professionalID).Scan(&names.Patient, &names.Professional, &names.Clinic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartyNames{}, ErrPartyNotFound
		}
		return PartyNames{}, err
	}

	return names, nil
}

func (p *PgRepository) ProfessionalSignatureRef(ctx context.Context, professionalID uuid.UUID) (string, error) {
	var ref *string
	err := p.pool.QueryRow(ctx, `
		SELECT signature_ref
		FROM professionals
		WHERE id = $1
	`, professionalID).Scan(&ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPartyNotFound
		}
		return "", err
	}
	if ref == nil {
		return "", nil
	}
	return *ref, nil
}
