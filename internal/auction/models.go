package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction is the authoritative record for one listing. CurrentPrice,
// HighestBidID and EndTime are the contended fields; every mutation of them
// goes through the store's per-auction serialization point.
type Auction struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	StartingPrice   decimal.Decimal  `json:"starting_price"`
	ReservePrice    *decimal.Decimal `json:"-"` // hidden from bidders
	CurrentPrice    decimal.Decimal  `json:"current_price"`
	MinBidIncrement decimal.Decimal  `json:"min_bid_increment"`

	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	AutoExtend time.Duration `json:"auto_extend_ns"`

	Status     Status `json:"status"`
	SellerID   string `json:"seller_id"`
	CategoryID string `json:"category_id"`

	WinnerID     *string `json:"winner_id,omitempty"`
	HighestBidID *string `json:"highest_bid_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bid is one submission attempt that reached the engine. Rejected attempts
// are kept for audit; only accepted ones move the price.
type Bid struct {
	ID              string          `json:"id"`
	AuctionID       string          `json:"auction_id"`
	BidderID        string          `json:"bidder_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          BidStatus       `json:"status"`
	RejectionReason RejectReason    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AuctionItem is descriptive payload attached to an auction. It has no
// bearing on bidding and is deleted with its auction.
type AuctionItem struct {
	ID          string    `json:"id"`
	AuctionID   string    `json:"auction_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Condition   string    `json:"condition,omitempty"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is a read-only view of an auction for display. It may be briefly
// stale; writes never are.
type Snapshot struct {
	Auction    Auction       `json:"auction"`
	HighestBid *Bid          `json:"highest_bid,omitempty"`
	Items      []AuctionItem `json:"items"`
}

// AdmissionResult is the outcome of one SubmitBid call.
type AdmissionResult struct {
	Accepted bool `json:"accepted"`
	// Bid is the ledger record written for this attempt. Nil only for
	// NotFound, where there is no auction to attach the record to.
	Bid *Bid `json:"bid,omitempty"`
	// Auction is the post-admission state on success.
	Auction *Auction     `json:"auction,omitempty"`
	Reason  RejectReason `json:"reason,omitempty"`
	// MinimumRequired lets a rejected caller retry without another round trip.
	MinimumRequired *decimal.Decimal `json:"minimum_required,omitempty"`
}
