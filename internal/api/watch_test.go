package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clinicflow/attendance-engine/internal/consent"
)

// watchRepo serves exactly one record and counts reads. Only the methods the
// watcher touches do anything.
type watchRepo struct {
	record consent.Record
	reads  atomic.Int64
}

func (r *watchRepo) GetRecordByID(_ context.Context, id uuid.UUID) (*consent.Record, error) {
	r.reads.Add(1)
	if id != r.record.ID {
		return nil, consent.ErrRecordNotFound
	}
	cp := r.record
	return &cp, nil
}

func (r *watchRepo) ListTemplatesByClinic(context.Context, uuid.UUID) ([]consent.Template, error) {
	return nil, nil
}

func (r *watchRepo) GetTemplateByID(context.Context, uuid.UUID) (*consent.Template, error) {
	return nil, consent.ErrTemplateNotFound
}

func (r *watchRepo) FindOpenRecord(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) (*consent.Record, error) {
	return nil, consent.ErrRecordNotFound
}

func (r *watchRepo) FindLatestRecord(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Time) (*consent.Record, error) {
	return nil, consent.ErrRecordNotFound
}

func (r *watchRepo) CreateRecord(_ context.Context, rec consent.Record) (*consent.Record, error) {
	return &rec, nil
}

func (r *watchRepo) MarkSigned(context.Context, uuid.UUID, string, time.Time) (*consent.Record, error) {
	return nil, consent.ErrRecordNotFound
}

func (r *watchRepo) MarkCompleted(context.Context, uuid.UUID, string) (*consent.Record, error) {
	return nil, consent.ErrRecordNotFound
}

func (r *watchRepo) PartyNames(context.Context, uuid.UUID, uuid.UUID) (consent.PartyNames, error) {
	return consent.PartyNames{}, consent.ErrPartyNotFound
}

func (r *watchRepo) ProfessionalSignatureRef(context.Context, uuid.UUID) (string, error) {
	return "", consent.ErrPartyNotFound
}

func TestWatchStopsPollingAfterClientDisconnect(t *testing.T) {
	repo := &watchRepo{
		record: consent.Record{
			ID:     uuid.New(),
			Status: consent.StatusPending,
		},
	}
	watcher := consent.NewWatcher(repo, nil, 10*time.Millisecond)

	r := chi.NewRouter()
	r.Get("/consents/{id}/watch", watchConsentHandler(watcher))

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/consents/" + repo.record.ID.String() + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}

	var first ConsentResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if first.Status != string(consent.StatusPending) {
		t.Fatalf("expected pending, got %s", first.Status)
	}

	// Let the poll loop run, then drop the client without a close frame. The
	// record never leaves pending, so only the disconnect can stop the loop.
	time.Sleep(50 * time.Millisecond)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		before := repo.reads.Load()
		time.Sleep(100 * time.Millisecond)
		if repo.reads.Load() == before {
			return
		}
	}
	t.Fatal("store still being polled after client disconnected")
}

func TestWatchUnknownConsentReturns404(t *testing.T) {
	repo := &watchRepo{record: consent.Record{ID: uuid.New()}}
	watcher := consent.NewWatcher(repo, nil, 10*time.Millisecond)

	r := chi.NewRouter()
	r.Get("/consents/{id}/watch", watchConsentHandler(watcher))

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/consents/" + uuid.NewString() + "/watch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
