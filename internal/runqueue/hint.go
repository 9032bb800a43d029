package runqueue

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ClaimHint is a thin Redis pub/sub wrapper that lets a worker wake up
// immediately when a document is enqueued instead of waiting out its poll
// interval. It is pure optimization: every method is best-effort, and a
// publish/subscribe failure is logged, never returned, because correctness
// never depends on the hint arriving (see spec's concurrency model —
// Postgres row-locking is the only source of truth). Grounded on the
// teacher's queue/redis Queue, which used the same client for job state.
type ClaimHint struct {
	client  *redis.Client
	channel string
	log     *logrus.Entry
}

// NewClaimHint connects to redisURL and returns a ClaimHint, or nil with an
// error if Redis is unreachable — callers are expected to treat a nil hint
// as "no acceleration available" and fall back to plain polling.
func NewClaimHint(ctx context.Context, redisURL, channel string, log *logrus.Entry) (*ClaimHint, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &ClaimHint{client: client, channel: channel, log: log.WithField("component", "claim_hint")}, nil
}

// Notify publishes runID on the claim-hint channel. Failures are logged and
// swallowed.
func (h *ClaimHint) Notify(ctx context.Context, runID string) {
	if h == nil || h.client == nil {
		return
	}
	if err := h.client.Publish(ctx, h.channel, runID).Err(); err != nil {
		h.log.WithError(err).Debug("claim hint publish failed")
	}
}

// Subscribe returns a channel of run IDs that were hinted as having new
// work. Closing ctx stops the subscription.
func (h *ClaimHint) Subscribe(ctx context.Context) <-chan string {
	out := make(chan string)
	if h == nil || h.client == nil {
		close(out)
		return out
	}
	sub := h.client.Subscribe(ctx, h.channel)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (h *ClaimHint) Close() error {
	if h == nil || h.client == nil {
		return nil
	}
	return h.client.Close()
}
