package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/clock"
)

type memoryStore struct {
	clk clock.Clock

	mu      sync.Mutex
	origins map[uuid.UUID]time.Time
}

// NewMemoryStore creates an in-process Store. It does not survive a process
// restart, so it is only suitable for tests and single-node development.
func NewMemoryStore(clk clock.Clock) Store {
	return &memoryStore{
		clk:     clk,
		origins: make(map[uuid.UUID]time.Time),
	}
}

func (s *memoryStore) Start(_ context.Context, patientID uuid.UUID) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if origin, ok := s.origins[patientID]; ok {
		return origin, nil
	}
	now := s.clk.Now()
	s.origins[patientID] = now
	return now, nil
}

func (s *memoryStore) Elapsed(_ context.Context, patientID uuid.UUID) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	origin, ok := s.origins[patientID]
	if !ok {
		return 0, nil
	}
	return s.clk.Now().Sub(origin), nil
}

func (s *memoryStore) Active(_ context.Context, patientID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.origins[patientID]
	return ok, nil
}

func (s *memoryStore) Clear(_ context.Context, patientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.origins, patientID)
	return nil
}
