package evolution

import (
	"context"
	"errors"

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

const recordColumns = `id, patient_id, professional_id, appointment_id, date, subject, description, attachments, invalidated, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.ProfessionalID,
		&r.AppointmentID,
		&r.Date,
		&r.Subject,
		&r.Description,
		&r.Attachments,
		&r.Invalidated,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (p *PgRepository) CreateRecord(ctx context.Context, rec Record) (*Record, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := p.pool.QueryRow(ctx, `
		INSERT INTO evolution_records (id, patient_id, professional_id, appointment_id, date, subject, description, attachments, invalidated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, now())
		RETURNING `+recordColumns+`
	`, id, rec.PatientID, rec.ProfessionalID, rec.AppointmentID, rec.Date, rec.Subject, rec.Description, rec.Attachments)

	return scanRecord(row)
}

func (p *PgRepository) GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM evolution_records
		WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (p *PgRepository) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM evolution_records
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PgRepository) SetInvalidated(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE evolution_records
		SET invalidated = TRUE
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id)
	return scanRecord(row)
}
