package auction

import "errors"

// RejectReason is the closed set of business-rule rejections. These are
// recorded in the ledger and returned to callers; they are never Go errors.
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonNotFound         RejectReason = "NOT_FOUND"
	ReasonAuctionNotActive RejectReason = "AUCTION_NOT_ACTIVE"
	ReasonSelfBidding      RejectReason = "SELF_BIDDING"
	ReasonInvalidAmount    RejectReason = "INVALID_AMOUNT"
	ReasonBidTooLow        RejectReason = "BID_TOO_LOW"
)

// Hard failures. ErrConflict is transient: the whole admission attempt is
// safe to retry. Storage errors are surfaced unretried; the caller decides.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrConflict        = errors.New("concurrent conflict")
	ErrNotSeller       = errors.New("caller is not the seller")
	ErrTerminalState   = errors.New("auction is in a terminal state")
	ErrInvalidInput    = errors.New("invalid input")
)
