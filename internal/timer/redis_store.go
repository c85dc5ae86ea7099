package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicflow/attendance-engine/internal/clock"
)

type redisStore struct {
	client *redis.Client
	clk    clock.Clock
	ttl    time.Duration
}

// NewRedisStore creates a Store keyed per patient in Redis. SETNX gives the
// write-once semantics: a second Start against the same patient keeps the
// original origin. Entries expire after ttl as a safety net against sessions
// that were never finalized or cancelled.
func NewRedisStore(client *redis.Client, clk clock.Clock, ttl time.Duration) Store {
	return &redisStore{client: client, clk: clk, ttl: ttl}
}

func timerKey(patientID uuid.UUID) string {
	return fmt.Sprintf("session:timer:%s", patientID.String())
}

func (s *redisStore) Start(ctx context.Context, patientID uuid.UUID) (time.Time, error) {
	now := s.clk.Now()

	ok, err := s.client.SetNX(ctx, timerKey(patientID), now.Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("store session origin: %w", err)
	}
	if ok {
		return now, nil
	}

	// Lost the write or a session is already running, either way the stored
	// origin wins.
	origin, err := s.origin(ctx, patientID)
	if err != nil {
		return time.Time{}, err
	}
	if origin.IsZero() {
		// Entry vanished between SETNX and GET, very unlikely, retry once.
		ok, err := s.client.SetNX(ctx, timerKey(patientID), now.Format(time.RFC3339Nano), s.ttl).Result()
		if err != nil || !ok {
			return time.Time{}, fmt.Errorf("store session origin after retry: %w", err)
		}
		return now, nil
	}
	return origin, nil
}

func (s *redisStore) Elapsed(ctx context.Context, patientID uuid.UUID) (time.Duration, error) {
	origin, err := s.origin(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if origin.IsZero() {
		return 0, nil
	}
	return s.clk.Now().Sub(origin), nil
}

func (s *redisStore) Active(ctx context.Context, patientID uuid.UUID) (bool, error) {
	origin, err := s.origin(ctx, patientID)
	if err != nil {
		return false, err
	}
	return !origin.IsZero(), nil
}

func (s *redisStore) Clear(ctx context.Context, patientID uuid.UUID) error {
	if err := s.client.Del(ctx, timerKey(patientID)).Err(); err != nil {
		return fmt.Errorf("clear session origin: %w", err)
	}
	return nil
}

func (s *redisStore) origin(ctx context.Context, patientID uuid.UUID) (time.Time, error) {
	raw, err := s.client.Get(ctx, timerKey(patientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load session origin: %w", err)
	}

	origin, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse session origin %q: %w", raw, err)
	}
	return origin, nil
}
