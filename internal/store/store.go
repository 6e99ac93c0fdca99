// Package store holds the authoritative auction registry and bid ledger.
//
// All mutations to one auction flow through WithAuction: a single-writer
// critical section per auction. Two auctions never share a lock. Events
// recorded inside the unit are handed to the Sink after a successful commit,
// before the auction's serialization point is released, so each subscriber
// sees one auction's events in commit order.
package store

import (
	"context"
	"time"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

// Tx is the mutable view of one auction inside WithAuction. Reads see the
// authoritative post-lock state, never a stale snapshot.
type Tx interface {
	// Auction returns the current row. Mutate the copy and pass it to
	// UpdateAuction to persist.
	Auction() *auction.Auction
	UpdateAuction(a *auction.Auction) error
	AppendBid(b *auction.Bid) error
	GetBid(id string) (*auction.Bid, error)
	// CancelOpenBids marks every PENDING/ACCEPTED bid CANCELLED and returns
	// how many were touched.
	CancelOpenBids() (int, error)
	// Record queues an event for delivery after commit. Rolled-back units
	// deliver nothing.
	Record(ev auction.Event)
}

type Store interface {
	CreateAuction(ctx context.Context, a *auction.Auction, items []auction.AuctionItem) error
	GetAuction(ctx context.Context, id string) (*auction.Snapshot, error)
	ListBids(ctx context.Context, auctionID string, limit int) ([]auction.Bid, error)
	// ListSweepable returns ids of non-terminal auctions due for a
	// time-based transition at now.
	ListSweepable(ctx context.Context, now time.Time) ([]string, error)
	WithAuction(ctx context.Context, id string, fn func(tx Tx) error) error
}

// Sink receives committed events. Implementations must not block: admission
// latency is never allowed to depend on a subscriber.
type Sink interface {
	Deliver(ctx context.Context, ev auction.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev auction.Event)

func (f SinkFunc) Deliver(ctx context.Context, ev auction.Event) { f(ctx, ev) }
