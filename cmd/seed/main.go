package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicflow/attendance-engine/internal/db"
)

// Every seeded professional gets this password so the consent finalize flow
// can be exercised by hand.
const seedPassword = "segredo123"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinicID, err := seedClinic(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed clinic: %v", err)
	}
	professionals, err := seedProfessionals(context.Background(), pool, clinicID, 12)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, clinicID, 400)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedTemplates(context.Background(), pool, clinicID); err != nil {
		log.Fatalf("seed consent templates: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, clinicID, professionals, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO clinics (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
	`, id, gofakeit.Company()+" Estética")
	return id, err
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	specialties := []string{
		"Dermatologia",
		"Estética Facial",
		"Fisioterapia",
		"Odontologia",
		"Nutrição",
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[i%len(specialties)]
		_, err := pool.Exec(ctx, `
			INSERT INTO professionals (id, clinic_id, name, specialty, signature_ref, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, clinicID, gofakeit.Name(), specialty, "signatures/"+id.String()+".png", string(hash))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, clinic_id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, clinicID, gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedTemplates(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID) error {
	templates := []struct {
		title    string
		content  string
		keywords []string
		kind     string
	}{
		{
			title:    "Botox",
			content:  "Eu, {{paciente}}, autorizo a aplicação de toxina botulínica por {{profissional}} da {{clinica}} em {{data}}.",
			keywords: []string{"toxina", "botulínica"},
			kind:     "termo",
		},
		{
			title:    "Peeling Químico",
			content:  "Eu, {{paciente}}, declaro estar ciente dos riscos do procedimento de peeling realizado por {{profissional}} em {{data}}.",
			keywords: []string{"peeling", "ácido"},
			kind:     "termo",
		},
		{
			title:    "Pós-operatório",
			content:  "Orientações pós-procedimento entregues a {{paciente}} pela {{clinica}} em {{data}}.",
			keywords: []string{"cirurgia", "pós"},
			kind:     "pos",
		},
	}

	log.Printf("seeding %d consent templates", len(templates))

	for _, t := range templates {
		_, err := pool.Exec(ctx, `
			INSERT INTO consent_templates (id, clinic_id, title, content, procedure_keywords, type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`, uuid.New(), clinicID, t.title, t.content, t.keywords, t.kind)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, professionals, patients []uuid.UUID) error {
	if len(professionals) == 0 || len(patients) == 0 {
		return nil
	}

	count := len(professionals) * 8
	log.Printf("seeding %d appointments for today", count)

	dayStart := time.Now().Truncate(24 * time.Hour).Add(8 * time.Hour)

	for i := 0; i < count; i++ {
		prof := professionals[i%len(professionals)]
		patient := patients[gofakeit.IntRange(0, len(patients)-1)]
		start := dayStart.Add(time.Duration(i/len(professionals)) * time.Hour)

		_, err := pool.Exec(ctx, `
			INSERT INTO appointments (id, clinic_id, patient_id, professional_id, start_time, end_time, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', '', now(), now())
		`, uuid.New(), clinicID, patient, prof, start, start.Add(30*time.Minute))
		if err != nil {
			return err
		}
	}
	return nil
}
