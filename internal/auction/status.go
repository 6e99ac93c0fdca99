package auction

// Status is the auction lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
	StatusSold      Status = "SOLD"
)

var validNext = map[Status]map[Status]bool{
	StatusDraft:     {StatusPending: true, StatusActive: true, StatusCancelled: true},
	StatusPending:   {StatusActive: true, StatusCancelled: true},
	StatusActive:    {StatusEnded: true, StatusSold: true, StatusCancelled: true},
	StatusEnded:     {},
	StatusCancelled: {},
	StatusSold:      {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// BidStatus is the state of a single bid attempt.
type BidStatus string

const (
	BidStatusPending   BidStatus = "PENDING"
	BidStatusAccepted  BidStatus = "ACCEPTED"
	BidStatusRejected  BidStatus = "REJECTED"
	BidStatusCancelled BidStatus = "CANCELLED"
)
