package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

// Memory is an in-process Store: an arena of auction entries, each guarded by
// its own mutex. It backs the unit tests and single-node runs without
// Postgres.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	sink    Sink
}

type memEntry struct {
	mu      sync.Mutex
	auction auction.Auction
	bids    []auction.Bid
	items   []auction.AuctionItem
}

func NewMemory(sink Sink) *Memory {
	return &Memory{entries: make(map[string]*memEntry), sink: sink}
}

func (m *Memory) CreateAuction(ctx context.Context, a *auction.Auction, items []auction.AuctionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &memEntry{auction: *a}
	e.items = append(e.items, items...)
	m.entries[a.ID] = e
	return nil
}

func (m *Memory) entry(id string) (*memEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Memory) GetAuction(ctx context.Context, id string) (*auction.Snapshot, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, auction.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := &auction.Snapshot{Auction: e.auction}
	snap.Items = append(snap.Items, e.items...)
	if e.auction.HighestBidID != nil {
		for i := range e.bids {
			if e.bids[i].ID == *e.auction.HighestBidID {
				b := e.bids[i]
				snap.HighestBid = &b
				break
			}
		}
	}
	return snap, nil
}

func (m *Memory) ListBids(ctx context.Context, auctionID string, limit int) ([]auction.Bid, error) {
	e, ok := m.entry(auctionID)
	if !ok {
		return nil, auction.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]auction.Bid(nil), e.bids...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListSweepable(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, e := range m.entries {
		e.mu.Lock()
		a := e.auction
		e.mu.Unlock()
		if a.Status.Terminal() {
			continue
		}
		due := (a.Status == auction.StatusDraft || a.Status == auction.StatusPending) && !now.Before(a.StartTime) ||
			a.Status == auction.StatusActive && now.After(a.EndTime)
		if due {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) WithAuction(ctx context.Context, id string, fn func(tx Tx) error) error {
	e, ok := m.entry(id)
	if !ok {
		return auction.ErrAuctionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// The tx works on copies; in-place mutators like CancelOpenBids must not
	// write through to committed state before fn succeeds.
	tx := &memTx{
		current: e.auction,
		bids:    append([]auction.Bid(nil), e.bids...),
	}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit: write back the working copies, then deliver while this
	// auction's lock is still held so delivery order matches commit order.
	e.auction = tx.current
	e.bids = tx.bids
	if m.sink != nil {
		for _, ev := range tx.events {
			m.sink.Deliver(ctx, ev)
		}
	}
	return nil
}

type memTx struct {
	current auction.Auction
	bids    []auction.Bid
	events  []auction.Event
}

func (t *memTx) Auction() *auction.Auction {
	a := t.current
	return &a
}

func (t *memTx) UpdateAuction(a *auction.Auction) error {
	t.current = *a
	return nil
}

func (t *memTx) AppendBid(b *auction.Bid) error {
	t.bids = append(t.bids, *b)
	return nil
}

func (t *memTx) GetBid(id string) (*auction.Bid, error) {
	for i := range t.bids {
		if t.bids[i].ID == id {
			b := t.bids[i]
			return &b, nil
		}
	}
	return nil, auction.ErrBidNotFound
}

func (t *memTx) CancelOpenBids() (int, error) {
	n := 0
	for i := range t.bids {
		switch t.bids[i].Status {
		case auction.BidStatusPending, auction.BidStatusAccepted:
			t.bids[i].Status = auction.BidStatusCancelled
			n++
		}
	}
	return n, nil
}

func (t *memTx) Record(ev auction.Event) {
	t.events = append(t.events, ev)
}
