package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

func envelope(auctionID string, seq int) auction.Envelope {
	return auction.Envelope{
		EventID:       fmt.Sprintf("ev-%d", seq),
		EventType:     auction.EventBidAccepted,
		EventVersion:  1,
		CorrelationID: auctionID,
	}
}

func TestHub_FIFOPerAuction(t *testing.T) {
	h := NewHub("test")
	sub := h.Subscribe("a1", 16)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		h.Broadcast("a1", envelope("a1", i))
	}
	for i := 0; i < 10; i++ {
		env := <-sub.C()
		assert.Equal(t, fmt.Sprintf("ev-%d", i), env.EventID)
	}
}

func TestHub_AuctionIsolation(t *testing.T) {
	h := NewHub("test")
	s1 := h.Subscribe("a1", 4)
	defer s1.Close()
	s2 := h.Subscribe("a2", 4)
	defer s2.Close()

	h.Broadcast("a1", envelope("a1", 1))

	env := <-s1.C()
	assert.Equal(t, "a1", env.CorrelationID)
	select {
	case <-s2.C():
		t.Fatal("subscriber of a2 received a1's event")
	default:
	}
}

func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	h := NewHub("test")
	slow := h.Subscribe("a1", 2)
	defer slow.Close()
	fast := h.Subscribe("a1", 16)
	defer fast.Close()

	// Nobody reads: the slow queue overflows and sheds from the front.
	for i := 0; i < 5; i++ {
		h.Broadcast("a1", envelope("a1", i))
	}

	// The fast subscriber saw everything in order.
	for i := 0; i < 5; i++ {
		env := <-fast.C()
		assert.Equal(t, fmt.Sprintf("ev-%d", i), env.EventID)
	}

	// The slow one kept the most recent events, still in order.
	a := <-slow.C()
	b := <-slow.C()
	assert.Equal(t, "ev-3", a.EventID)
	assert.Equal(t, "ev-4", b.EventID)
	select {
	case <-slow.C():
		t.Fatal("slow subscriber held more than its buffer")
	default:
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := NewHub("test")
	sub := h.Subscribe("a1", 1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Broadcast("a1", envelope("a1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}

func TestHub_CloseDetaches(t *testing.T) {
	h := NewHub("test")
	sub := h.Subscribe("a1", 4)
	assert.Equal(t, 1, h.SubscriberCount("a1"))

	sub.Close()
	assert.Equal(t, 0, h.SubscriberCount("a1"))

	// Closing twice is safe; the channel reports closed.
	sub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	// Broadcasting to a drained auction is a no-op.
	h.Broadcast("a1", envelope("a1", 1))
}

func TestHub_DeliverWrapsEvent(t *testing.T) {
	h := NewHub("bid-svc")
	sub := h.Subscribe("a1", 4)
	defer sub.Close()

	bid := auction.Bid{ID: "b1", AuctionID: "a1", BidderID: "u1", Amount: auction.MustMoney("105.00")}
	h.Deliver(context.Background(), auction.Event{
		Type:      auction.EventBidAccepted,
		AuctionID: "a1",
		Bid:       &bid,
		NewPrice:  auction.MustMoney("105.00"),
	})

	env := <-sub.C()
	assert.Equal(t, auction.EventBidAccepted, env.EventType)
	assert.Equal(t, "bid-svc", env.Producer)
	assert.Equal(t, "a1", env.CorrelationID)
	assert.NotEqual(t, "", env.EventID)
}
