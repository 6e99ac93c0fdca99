// Package fanout distributes committed auction events to subscribers.
package fanout

import (
	"context"
	"sync"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

const defaultBuffer = 64

// Hub is the in-process pub/sub primitive. Each subscriber owns a bounded
// queue; publishing never blocks — a full queue drops its oldest pending
// event instead of stalling the publisher. Within one auction, events reach
// each subscriber in publish order.
type Hub struct {
	producer string

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{} // auction id -> subscribers
}

type Subscriber struct {
	hub       *Hub
	auctionID string
	ch        chan auction.Envelope
	once      sync.Once
}

func NewHub(producer string) *Hub {
	return &Hub{producer: producer, subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe attaches a new subscriber to one auction's stream. Late
// subscribers receive only future events. buffer <= 0 picks the default.
func (h *Hub) Subscribe(auctionID string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &Subscriber{hub: h, auctionID: auctionID, ch: make(chan auction.Envelope, buffer)}
	h.mu.Lock()
	set, ok := h.subs[auctionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[auctionID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// C is the subscriber's event stream. It is closed by Close.
func (s *Subscriber) C() <-chan auction.Envelope { return s.ch }

// Close detaches the subscriber. Other subscribers and publishers are
// unaffected.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.auctionID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.auctionID)
			}
		}
		h.mu.Unlock()
		close(s.ch)
	})
}

// Deliver implements store.Sink: it wraps the event in an envelope and
// broadcasts it to the auction's subscribers.
func (h *Hub) Deliver(ctx context.Context, ev auction.Event) {
	h.Broadcast(ev.AuctionID, auction.NewEnvelope(h.producer, ev))
}

// Broadcast pushes an already-built envelope to every subscriber of one
// auction. Non-blocking: a stalled consumer loses its oldest event, not the
// publisher's time.
func (h *Hub) Broadcast(auctionID string, env auction.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[auctionID] {
		select {
		case s.ch <- env:
		default:
			// Queue full: drop the oldest, then retry once. The second
			// select guards against a concurrent reader winning the race.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- env:
			default:
			}
		}
	}
}

// SubscriberCount reports how many subscribers an auction currently has.
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}
