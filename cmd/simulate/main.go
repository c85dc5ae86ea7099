// simulate drives the full attendance handshake against a running api-server:
// start session, require consent, fetch the sign link, submit the patient
// signature from a "second device", finalize with the professional's
// credential and save the evolution note. It reports per-step latencies.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicflow/attendance-engine/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Rounds      int
	Workers     int
	Credential  string
	PostgresDSN string
}

type DataPool struct {
	ClinicID      uuid.UUID
	Patients      []uuid.UUID
	Professionals []uuid.UUID
}

type StepMetrics struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int
}

func (m *StepMetrics) Record(latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errors++
		return
	}
	m.latencies = append(m.latencies, latency)
}

func (m *StepMetrics) Report(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		fmt.Printf("%-16s ok=0 errors=%d\n", name, m.errors)
		return
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	p := func(q int) time.Duration {
		idx := len(sorted) * q / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	fmt.Printf("%-16s ok=%d errors=%d avg=%s p50=%s p95=%s max=%s\n",
		name, len(sorted), m.errors, sum/time.Duration(len(sorted)), p(50), p(95), sorted[len(sorted)-1])
}

type Metrics struct {
	StartSession StepMetrics
	Require      StepMetrics
	Sign         StepMetrics
	Finalize     StepMetrics
	Save         StepMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()

	pool, err := loadDataPool(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("data pool: %d patients, %d professionals", len(pool.Patients), len(pool.Professionals))

	gofakeit.Seed(time.Now().UnixNano())

	var metrics Metrics
	rounds := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 15 * time.Second}
			for range rounds {
				runHandshake(client, cfg, pool, &metrics)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < cfg.Rounds; i++ {
		rounds <- i
	}
	close(rounds)
	wg.Wait()

	fmt.Printf("\n%d handshake rounds with %d workers in %s\n\n", cfg.Rounds, cfg.Workers, time.Since(start))
	metrics.StartSession.Report("start-session")
	metrics.Require.Report("require-consent")
	metrics.Sign.Report("sign")
	metrics.Finalize.Report("finalize")
	metrics.Save.Report("save-evolution")
}

func runHandshake(client *http.Client, cfg SimConfig, pool *DataPool, m *Metrics) {
	patient := pool.Patients[rand.Intn(len(pool.Patients))]
	professional := pool.Professionals[rand.Intn(len(pool.Professionals))]

	// Professional device: start the session.
	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	err := timedPost(client, &m.StartSession, cfg.APIBaseURL+"/sessions/start", map[string]any{
		"patient_id":      patient.String(),
		"professional_id": professional.String(),
	}, &appt)
	if err != nil {
		return
	}

	// Professional device: select a procedure that requires consent.
	var required struct {
		Required bool `json:"required"`
		Consent  *struct {
			ID uuid.UUID `json:"id"`
		} `json:"consent"`
	}
	err = timedPost(client, &m.Require, cfg.APIBaseURL+"/consents/require", map[string]any{
		"clinic_id":       pool.ClinicID.String(),
		"patient_id":      patient.String(),
		"professional_id": professional.String(),
		"procedure_name":  "Aplicação de Botox Facial",
	}, &required)
	if err != nil || !required.Required || required.Consent == nil {
		return
	}
	consentID := required.Consent.ID

	// Patient device: open the sign link and submit a signature.
	err = func() error {
		start := time.Now()

		var link struct {
			URL string `json:"url"`
		}
		if err := getJSON(client, cfg.APIBaseURL+"/consents/"+consentID.String()+"/sign-link", &link); err != nil {
			m.Sign.Record(0, err)
			return err
		}

		parsed, err := url.Parse(link.URL)
		if err != nil {
			m.Sign.Record(0, err)
			return err
		}
		token := parsed.Query().Get("token")

		var signed struct {
			Status string `json:"status"`
		}
		err = postJSON(client, cfg.APIBaseURL+"/consents/"+consentID.String()+"/signature", map[string]any{
			"token":         token,
			"signature_ref": "signatures/sim-" + uuid.NewString() + ".png",
		}, &signed)
		m.Sign.Record(time.Since(start), err)
		return err
	}()
	if err != nil {
		return
	}

	// Professional device: finalize after observing the signature.
	var finalized struct {
		Status string `json:"status"`
	}
	err = timedPost(client, &m.Finalize, cfg.APIBaseURL+"/consents/"+consentID.String()+"/finalize", map[string]any{
		"credential": cfg.Credential,
	}, &finalized)
	if err != nil {
		return
	}

	// Professional device: save the note and close out.
	var note struct {
		ID uuid.UUID `json:"id"`
	}
	_ = timedPost(client, &m.Save, cfg.APIBaseURL+"/evolutions", map[string]any{
		"patient_id":      patient.String(),
		"professional_id": professional.String(),
		"clinic_id":       pool.ClinicID.String(),
		"appointment_id":  appt.ID.String(),
		"subject":         "Atendimento simulado",
		"description":     gofakeit.Sentence(12),
		"procedure_name":  "Aplicação de Botox Facial",
	}, &note)
}

func timedPost(client *http.Client, m *StepMetrics, url string, body, out any) error {
	start := time.Now()
	err := postJSON(client, url, body, out)
	m.Record(time.Since(start), err)
	return err
}

func postJSON(client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, data)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, data)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:      getEnvInt("SIM_ROUNDS", 50),
		Workers:     getEnvInt("SIM_WORKERS", 4),
		Credential:  getEnv("SIM_CREDENTIAL", "segredo123"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func loadDataPool(dsn string) (*DataPool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	dp := &DataPool{}

	if err := pool.QueryRow(ctx, `SELECT id FROM clinics LIMIT 1`).Scan(&dp.ClinicID); err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT 200`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dp.Professionals, err = loadIDs(ctx, pool, `SELECT id FROM professionals LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}

	if len(dp.Patients) == 0 || len(dp.Professionals) == 0 {
		return nil, fmt.Errorf("data pool empty, run the seed first")
	}
	return dp, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
