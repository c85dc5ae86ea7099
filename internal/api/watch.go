package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/go-chi/chi/v5"

	"github.com/clinicflow/attendance-engine/internal/consent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The professional's client runs on a different origin than the API in
	// dev setups; record-level access is enforced by the watch itself.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const watchWriteTimeout = 10 * time.Second

// watchConsentHandler streams consent status changes to the professional's
// client over a websocket. Each frame is the full record as read from the
// store; the stream ends when the record completes or either side goes away.
func watchConsentHandler(watcher *consent.Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_consent_id", "id must be a valid UUID")
			return
		}

		// Upgrade hijacks the connection, after which r.Context() no longer
		// ends on client disconnect. The drain goroutine owns cancellation so
		// the watch loop stops when the client goes away.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := watcher.Watch(ctx, id)
		if err != nil {
			if errors.Is(err, consent.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "consent_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Printf("consent watch %s: upgrade failed: %v", id, err)
			return
		}
		defer conn.Close()

		// Drain reads so client close frames are processed; a read error
		// means the client is gone and the watch must stop.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for rec := range updates {
			resp := toConsentResponse(&rec)
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				log.Printf("consent watch %s: write failed: %v", id, err)
				return
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "consent completed"))
	}
}
