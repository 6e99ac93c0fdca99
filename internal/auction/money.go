package auction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money values are fixed-point with two decimal places. All price comparisons
// in the engine go through decimal.Decimal; floats never enter domain logic.

// ParseMoney parses a decimal amount and normalizes it to two places.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Round(2), nil
}

// MustMoney is a test/fixture helper; it panics on malformed input.
func MustMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MinimumBid computes the lowest admissible bid for an auction. The first
// accepted bid only has to match the starting price; after that every bid
// must clear the current price by the configured increment.
func (a *Auction) MinimumBid() decimal.Decimal {
	if a.HighestBidID == nil {
		return a.StartingPrice
	}
	return a.CurrentPrice.Add(a.MinBidIncrement)
}

// ReserveMet reports whether the reserve price (if any) is satisfied by the
// current price. A reserve exactly equal to the final price counts as met.
func (a *Auction) ReserveMet() bool {
	if a.ReservePrice == nil {
		return true
	}
	return a.CurrentPrice.GreaterThanOrEqual(*a.ReservePrice)
}
