// Package indexer consumes the auction event stream and keeps the read-side
// caches honest: every committed event evicts the auction's snapshot so the
// next HTTP read hits the store.
package indexer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/bidstream/go-live-auctions/internal/auction"
	kafkax "github.com/bidstream/go-live-auctions/internal/kafka"
	"github.com/bidstream/go-live-auctions/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleEvent is the consumer handler for both auction topics. Events may
// arrive more than once; the redis dedup key makes the eviction idempotent.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env auction.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case auction.EventBidAccepted, auction.EventLifecycleChanged:
	default:
		return nil
	}

	dkey := redisx.KeyDedup(s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	// CorrelationID carries the auction id for every event type. The dedup
	// key is set only after the eviction lands: a failed Del surfaces as an
	// error and the redelivered message retries the whole step.
	if err := s.Redis.Del(ctx, redisx.KeySnapshot(env.CorrelationID)).Err(); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	if env.EventType == auction.EventLifecycleChanged {
		p, err := kafkax.UnwrapPayload[auction.LifecycleChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Printf("indexer: auction=%s %s -> %s", env.CorrelationID, p.OldStatus, p.NewStatus)
		return nil
	}
	log.Printf("indexer: invalidated snapshot auction=%s event=%s", env.CorrelationID, env.EventType)
	return nil
}
