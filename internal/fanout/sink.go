package fanout

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/bidstream/go-live-auctions/internal/auction"
	kafkax "github.com/bidstream/go-live-auctions/internal/kafka"
	"github.com/bidstream/go-live-auctions/internal/redisx"
)

const defaultQueue = 1024

// Publisher is the production store.Sink. Deliver only enqueues; a single
// drain loop (Run) fans each committed event into:
//   - redis pub/sub, where every node's websocket bridge picks it up;
//   - kafka, keyed by auction id, for durable downstream consumption.
//
// The queue is bounded with drop-oldest, same policy as the hub, so a stalled
// broker never reaches back into the store's per-auction critical section.
// One drain loop keeps one auction's envelopes in enqueue order on both legs.
type Publisher struct {
	producer  string
	redis     *redis.Client
	bids      *kafkax.Producer
	lifecycle *kafkax.Producer
	queue     chan auction.Envelope
}

// NewPublisher builds the sink. buf <= 0 picks the default queue size. Call
// Run in a goroutine before handing the sink to a store.
func NewPublisher(producer string, rdb *redis.Client, bids, lifecycle *kafkax.Producer, buf int) *Publisher {
	if buf <= 0 {
		buf = defaultQueue
	}
	return &Publisher{
		producer:  producer,
		redis:     rdb,
		bids:      bids,
		lifecycle: lifecycle,
		queue:     make(chan auction.Envelope, buf),
	}
}

// Deliver implements store.Sink. It never blocks and never does I/O: callers
// hold the auction's serialization point while delivering.
func (p *Publisher) Deliver(ctx context.Context, ev auction.Event) {
	env := auction.NewEnvelope(p.producer, ev)
	select {
	case p.queue <- env:
	default:
		// Queue full: drop the oldest, then retry once. The second select
		// guards against the drain loop winning the race.
		select {
		case <-p.queue:
		default:
		}
		select {
		case p.queue <- env:
		default:
		}
	}
}

// Run publishes queued envelopes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-p.queue:
			p.publish(ctx, env)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env auction.Envelope) {
	body := kafkax.MustMarshal(env)

	if p.redis != nil {
		channel := redisx.ChannelAuctionEvents(env.CorrelationID)
		if err := p.redis.Publish(ctx, channel, body).Err(); err != nil {
			log.Printf("fanout: redis publish %s: %v", channel, err)
		}
	}

	prod := p.bids
	if env.EventType == auction.EventLifecycleChanged {
		prod = p.lifecycle
	}
	if prod != nil {
		prod.Publish(auction.PartitionKey(env.CorrelationID), body)
	}
}

// Bridge republishes envelopes from redis pub/sub into a local hub, so a
// node serves the live stream for auctions whose bids commit elsewhere.
type Bridge struct {
	redis *redis.Client
	hub   *Hub
}

func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{redis: rdb, hub: hub}
}

// Run blocks consuming the pattern subscription until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.redis.PSubscribe(ctx, redisx.PatternAuctionEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env auction.Envelope
			if err := kafkax.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("fanout: bad envelope on %s: %v", msg.Channel, err)
				continue
			}
			b.hub.Broadcast(env.CorrelationID, env)
		}
	}
}
