// Package engine implements bid admission: the atomic decide-and-apply step
// for one candidate bid against the authoritative auction state.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/store"
)

type Engine struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Engine {
	return &Engine{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SubmitBid runs the admission checks and, on success, moves the price,
// points highest_bid at the new bid and applies the anti-snipe extension —
// all inside one per-auction unit of work. Rejected attempts are written to
// the ledger with their reason and never touch the price.
//
// Business rejections come back in the result, not as errors. An error means
// the attempt itself failed (unknown auction, conflict, storage) and is safe
// to retry only for auction.ErrConflict.
func (e *Engine) SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*auction.AdmissionResult, error) {
	var res *auction.AdmissionResult

	err := e.store.WithAuction(ctx, auctionID, func(tx store.Tx) error {
		// State observed here is post-lock: a bid losing a race is judged
		// against the winner's update, not against what its caller saw.
		a := tx.Auction()
		now := e.now()

		if reason, min := admissionCheck(a, bidderID, amount, now); reason != auction.ReasonNone {
			rejected := newBid(a.ID, bidderID, amount, now)
			rejected.Status = auction.BidStatusRejected
			rejected.RejectionReason = reason
			if err := tx.AppendBid(rejected); err != nil {
				return err
			}
			res = &auction.AdmissionResult{Bid: rejected, Reason: reason, MinimumRequired: min}
			return nil
		}

		accepted := newBid(a.ID, bidderID, amount, now)
		accepted.Status = auction.BidStatusAccepted
		if err := tx.AppendBid(accepted); err != nil {
			return err
		}

		a.CurrentPrice = amount
		a.HighestBidID = &accepted.ID
		// Anti-snipe: a bid landing inside the extension window pushes the
		// deadline to now+window. Forward only, and unbounded in repetition.
		if a.EndTime.Sub(now) <= a.AutoExtend {
			a.EndTime = now.Add(a.AutoExtend)
		}
		a.UpdatedAt = now
		if err := tx.UpdateAuction(a); err != nil {
			return err
		}

		tx.Record(auction.Event{
			Type:       auction.EventBidAccepted,
			AuctionID:  a.ID,
			OccurredAt: now,
			Bid:        accepted,
			NewPrice:   a.CurrentPrice,
			NewEndTime: a.EndTime,
		})
		res = &auction.AdmissionResult{Accepted: true, Bid: accepted, Auction: a}
		return nil
	})

	if errors.Is(err, auction.ErrAuctionNotFound) {
		// No auction row to hang an audit record on.
		return &auction.AdmissionResult{Reason: auction.ReasonNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// admissionCheck applies the precondition chain in order. The returned
// minimum accompanies BID_TOO_LOW so the caller can retry without a round
// trip.
func admissionCheck(a *auction.Auction, bidderID string, amount decimal.Decimal, now time.Time) (auction.RejectReason, *decimal.Decimal) {
	if a.Status != auction.StatusActive || now.Before(a.StartTime) || now.After(a.EndTime) {
		return auction.ReasonAuctionNotActive, nil
	}
	if bidderID == a.SellerID {
		return auction.ReasonSelfBidding, nil
	}
	if !amount.IsPositive() {
		return auction.ReasonInvalidAmount, nil
	}
	min := a.MinimumBid()
	if amount.LessThan(min) {
		return auction.ReasonBidTooLow, &min
	}
	return auction.ReasonNone, nil
}

// Cancel moves a non-terminal auction to CANCELLED on behalf of its seller.
// Open bids are cancelled with it; no winner emerges.
func (e *Engine) Cancel(ctx context.Context, auctionID, callerID string) error {
	return e.store.WithAuction(ctx, auctionID, func(tx store.Tx) error {
		a := tx.Auction()
		if callerID != a.SellerID {
			return auction.ErrNotSeller
		}
		if !auction.CanTransition(a.Status, auction.StatusCancelled) {
			return auction.ErrTerminalState
		}
		if _, err := tx.CancelOpenBids(); err != nil {
			return err
		}

		now := e.now()
		old := a.Status
		a.Status = auction.StatusCancelled
		a.WinnerID = nil
		a.HighestBidID = nil
		a.UpdatedAt = now
		if err := tx.UpdateAuction(a); err != nil {
			return err
		}

		tx.Record(auction.Event{
			Type:       auction.EventLifecycleChanged,
			AuctionID:  a.ID,
			OccurredAt: now,
			OldStatus:  old,
			NewStatus:  auction.StatusCancelled,
		})
		return nil
	})
}

func newBid(auctionID, bidderID string, amount decimal.Decimal, now time.Time) *auction.Bid {
	return &auction.Bid{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
