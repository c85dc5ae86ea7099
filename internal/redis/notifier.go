package redisclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier carries best-effort change hints for a single consent record between
// the patient-facing and professional-facing sides of the service. A dropped
// message is acceptable: subscribers always re-read the record from the store,
// and the poll fallback covers missed hints.
type Notifier interface {
	// NotifyChanged publishes a hint that the consent record changed.
	NotifyChanged(ctx context.Context, consentID uuid.UUID) error
	// Subscribe returns a channel that receives one element per published hint
	// and a stop function releasing the subscription.
	Subscribe(ctx context.Context, consentID uuid.UUID) (<-chan struct{}, func(), error)
}

type redisConsentNotifier struct {
	client *redis.Client
}

// NewConsentNotifier creates a Notifier backed by a per consent Redis pub/sub channel.
func NewConsentNotifier(client *redis.Client) Notifier {
	return &redisConsentNotifier{client: client}
}

func channelFor(consentID uuid.UUID) string {
	return fmt.Sprintf("consent:changed:%s", consentID.String())
}

func (n *redisConsentNotifier) NotifyChanged(ctx context.Context, consentID uuid.UUID) error {
	if err := n.client.Publish(ctx, channelFor(consentID), "changed").Err(); err != nil {
		return fmt.Errorf("publish consent hint: %w", err)
	}
	return nil
}

func (n *redisConsentNotifier) Subscribe(ctx context.Context, consentID uuid.UUID) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, channelFor(consentID))

	// Force the SUBSCRIBE round trip so a broken connection surfaces here
	// instead of as a silently empty channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe consent hints: %w", err)
	}

	hints := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(hints)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case hints <- struct{}{}:
				default: // a pending hint already queued, coalesce
				}
			}
		}
	}()

	stop := func() {
		close(done)
		_ = sub.Close()
	}

	return hints, stop, nil
}
