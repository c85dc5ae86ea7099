package consent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicflow/attendance-engine/internal/redis"
)

// Watcher exposes pending → signed → completed transitions of a single
// consent record to the professional's client. Change hints from the notifier
// only wake the loop early; every emitted record comes from a fresh store
// read, and a bounded poll interval guarantees a missed hint self-heals.
type Watcher struct {
	repo     Repository
	notifier redisclient.Notifier
	poll     time.Duration
}

func NewWatcher(repo Repository, notifier redisclient.Notifier, poll time.Duration) *Watcher {
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return &Watcher{
		repo:     repo,
		notifier: notifier,
		poll:     poll,
	}
}

// Watch emits the record's current state immediately, then once per status
// change. The channel closes when the record reaches completed or the context
// is cancelled.
func (w *Watcher) Watch(ctx context.Context, consentID uuid.UUID) (<-chan Record, error) {
	initial, err := w.repo.GetRecordByID(ctx, consentID)
	if err != nil {
		return nil, fmt.Errorf("load consent record: %w", err)
	}

	var hints <-chan struct{}
	stopSub := func() {}
	if w.notifier != nil {
		h, stop, err := w.notifier.Subscribe(ctx, consentID)
		if err != nil {
			// Push is only a hint, keep going on poll alone.
			log.Printf("consent watch %s: subscribe failed, polling only: %v", consentID, err)
		} else {
			hints = h
			stopSub = stop
		}
	}

	updates := make(chan Record, 1)
	updates <- *initial

	if initial.Status == StatusCompleted {
		stopSub()
		close(updates)
		return updates, nil
	}

	go func() {
		defer close(updates)
		defer stopSub()

		last := initial.Status

		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-hints:
				if !ok {
					hints = nil
					continue
				}
			}

			rec, err := w.repo.GetRecordByID(ctx, consentID)
			if err != nil {
				// Transient store errors just wait for the next tick.
				log.Printf("consent watch %s: read failed: %v", consentID, err)
				continue
			}

			if rec.Status == last {
				continue
			}
			last = rec.Status

			select {
			case updates <- *rec:
			case <-ctx.Done():
				return
			}

			if last == StatusCompleted {
				return
			}
		}
	}()

	return updates, nil
}
