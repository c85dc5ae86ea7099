package consent

import (
	"context"
	"testing"
	"time"
)

func waitUpdate(t *testing.T, updates <-chan Record, within time.Duration) Record {
	t.Helper()
	select {
	case rec, ok := <-updates:
		if !ok {
			t.Fatal("watch channel closed before expected update")
		}
		return rec
	case <-time.After(within):
		t.Fatalf("no update within %v", within)
	}
	return Record{}
}

func TestWatchObservesSignature(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)

	rec, err := f.svc.EnsurePending(ctx, f.patient, f.professional, f.template, "Botox")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	watcher := NewWatcher(f.repo, f.notifier, 20*time.Millisecond)
	updates, err := watcher.Watch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	first := waitUpdate(t, updates, time.Second)
	if first.Status != StatusPending {
		t.Fatalf("expected initial pending, got %s", first.Status)
	}

	// The patient device signs on its own; the only link between the two
	// actors is the store plus the change hint.
	if _, err := f.svc.SubmitSignature(ctx, rec.ID, "signatures/patient-abc.png"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	signed := waitUpdate(t, updates, time.Second)
	if signed.Status != StatusSigned {
		t.Fatalf("expected signed, got %s", signed.Status)
	}
}

func TestWatchFallsBackToPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)

	rec, err := f.svc.EnsurePending(ctx, f.patient, f.professional, f.template, "Botox")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// No notifier at all: the watcher must still observe the transition
	// within the poll interval.
	watcher := NewWatcher(f.repo, nil, 20*time.Millisecond)
	updates, err := watcher.Watch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitUpdate(t, updates, time.Second) // initial pending

	if _, err := f.repo.MarkSigned(ctx, rec.ID, "signatures/p.png", f.clk.Now()); err != nil {
		t.Fatalf("mark signed: %v", err)
	}

	signed := waitUpdate(t, updates, time.Second)
	if signed.Status != StatusSigned {
		t.Fatalf("expected signed via poll, got %s", signed.Status)
	}
}

func TestWatchClosesOnCompleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)

	rec, err := f.svc.EnsurePending(ctx, f.patient, f.professional, f.template, "Botox")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := f.svc.SubmitSignature(ctx, rec.ID, "signatures/p.png"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	watcher := NewWatcher(f.repo, f.notifier, 20*time.Millisecond)
	updates, err := watcher.Watch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitUpdate(t, updates, time.Second) // initial signed

	if _, err := f.svc.Finalize(ctx, rec.ID, "segredo123"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	completed := waitUpdate(t, updates, time.Second)
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("expected channel to close after completed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after terminal status")
	}
}
