// Package scheduler drives time-based auction lifecycle transitions.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/store"
)

type Scheduler struct {
	store    store.Store
	interval time.Duration
	now      func() time.Time
}

func New(s store.Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Scheduler{store: s, interval: interval, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source. Tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run sweeps until the context is cancelled. The sweep may stop between
// auctions on shutdown; each auction's transition is one short atomic step.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep re-evaluates every auction due for a transition. A failing auction is
// logged and skipped, never aborts the sweep; it is retried next time.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	ids, err := s.store.ListSweepable(ctx, now)
	if err != nil {
		log.Printf("sweep: list: %v", err)
		return
	}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.store.WithAuction(ctx, id, func(tx store.Tx) error {
			return s.transition(tx, now)
		}); err != nil {
			log.Printf("sweep: auction %s: %v", id, err)
		}
	}
}

// transition applies at most the transitions due at now. Re-running on a
// terminal or up-to-date auction is a no-op and records no event.
func (s *Scheduler) transition(tx store.Tx, now time.Time) error {
	a := tx.Auction()
	if a.Status.Terminal() {
		return nil
	}

	if (a.Status == auction.StatusDraft || a.Status == auction.StatusPending) && !now.Before(a.StartTime) {
		if err := s.apply(tx, a, auction.StatusActive, now); err != nil {
			return err
		}
	}

	if a.Status == auction.StatusActive && now.After(a.EndTime) {
		next := auction.StatusEnded
		if a.HighestBidID != nil && a.ReserveMet() {
			next = auction.StatusSold
			b, err := tx.GetBid(*a.HighestBidID)
			if err != nil {
				return err
			}
			a.WinnerID = &b.BidderID
		}
		if err := s.apply(tx, a, next, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) apply(tx store.Tx, a *auction.Auction, next auction.Status, now time.Time) error {
	old := a.Status
	if !auction.CanTransition(old, next) {
		return fmt.Errorf("illegal transition %s -> %s", old, next)
	}
	a.Status = next
	a.UpdatedAt = now
	if err := tx.UpdateAuction(a); err != nil {
		return err
	}
	tx.Record(auction.Event{
		Type:       auction.EventLifecycleChanged,
		AuctionID:  a.ID,
		OccurredAt: now,
		OldStatus:  old,
		NewStatus:  next,
		WinnerID:   a.WinnerID,
	})
	return nil
}
