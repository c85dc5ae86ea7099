// Package timer keeps the per-patient session start instant in a restart-safe
// store. The start instant is written exactly once per session, so a client
// that reloads mid-attendance recomputes elapsed time from the true origin
// instead of restarting from zero.
package timer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	// Start records now as the session origin for the patient, unless an
	// origin is already stored. Returns the effective origin either way.
	Start(ctx context.Context, patientID uuid.UUID) (time.Time, error)
	// Elapsed returns the time since the stored origin, or zero when no
	// session is active for the patient.
	Elapsed(ctx context.Context, patientID uuid.UUID) (time.Duration, error)
	// Active reports whether an origin is stored for the patient.
	Active(ctx context.Context, patientID uuid.UUID) (bool, error)
	// Clear removes the stored origin. Called on finalize or explicit cancel.
	Clear(ctx context.Context, patientID uuid.UUID) error
}
