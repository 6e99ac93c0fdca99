package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/engine"
	"github.com/bidstream/go-live-auctions/internal/store"
)

func bidEvent(auctionID string) auction.Event {
	return auction.Event{
		Type:      auction.EventBidAccepted,
		AuctionID: auctionID,
		Bid:       &auction.Bid{ID: uuid.NewString(), AuctionID: auctionID},
		NewPrice:  auction.MustMoney("10.00"),
	}
}

func TestPublisher_DeliverNeverBlocks(t *testing.T) {
	// No Run loop: nothing drains the queue, Deliver must still return.
	p := NewPublisher("test", nil, nil, nil, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Deliver(context.Background(), bidEvent("a1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked on a full, undrained queue")
	}
}

func TestPublisher_QueueDropsOldest(t *testing.T) {
	p := NewPublisher("test", nil, nil, nil, 2)

	for i := 0; i < 5; i++ {
		p.Deliver(context.Background(), bidEvent(fmt.Sprintf("a%d", i)))
	}

	// The two most recent survive, in order.
	a := <-p.queue
	b := <-p.queue
	assert.Equal(t, "a3", a.CorrelationID)
	assert.Equal(t, "a4", b.CorrelationID)
	select {
	case <-p.queue:
		t.Fatal("queue held more than its buffer")
	default:
	}
}

// A stalled broker must never reach back into the store's per-auction
// critical section: a second bid on the same auction has to go through even
// when the sink's queue is full and nothing is draining it.
func TestPublisher_StalledSinkDoesNotBlockBidders(t *testing.T) {
	sink := NewPublisher("test", nil, nil, nil, 1)
	st := store.NewMemory(sink)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(st).WithClock(func() time.Time { return now })

	a := &auction.Auction{
		ID:              uuid.NewString(),
		Title:           "lot",
		StartingPrice:   auction.MustMoney("100.00"),
		CurrentPrice:    auction.MustMoney("100.00"),
		MinBidIncrement: auction.MustMoney("5.00"),
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		AutoExtend:      5 * time.Minute,
		Status:          auction.StatusActive,
		SellerID:        "seller-1",
		CategoryID:      "cat-1",
	}
	assert.NoError(t, st.CreateAuction(context.Background(), a, nil))

	done := make(chan struct{})
	go func() {
		amount := auction.MustMoney("100.00")
		for i := 0; i < 4; i++ {
			res, err := eng.SubmitBid(context.Background(), a.ID, fmt.Sprintf("bidder-%d", i), amount)
			assert.NoError(t, err)
			assert.True(t, res.Accepted)
			amount = amount.Add(auction.MustMoney("5.00"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitBid blocked inside the sink while holding the auction lock")
	}
}
