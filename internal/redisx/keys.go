package redisx

import (
	"fmt"
	"time"
)

const (
	// Auction snapshot cache for GET /auctions/{id}: auction_snapshot:{id}.
	// Display reads may be briefly stale; the TTL keeps "briefly" small and
	// the indexer invalidates on every committed event.
	keySnapshot = "auction_snapshot:%s"

	// Consumer dedup: dedup:{service}:{event_id}.
	keyDedup = "dedup:%s:%s"

	// Pub/sub channel per auction carrying event envelopes.
	channelEvents = "auction_events:%s"

	// PatternAuctionEvents matches every auction's event channel.
	PatternAuctionEvents = "auction_events:*"
)

var (
	TTLSnapshot = 2 * time.Second
	TTLDedup    = 48 * time.Hour
)

func KeySnapshot(auctionID string) string { return fmt.Sprintf(keySnapshot, auctionID) }

func KeyDedup(service, eventID string) string { return fmt.Sprintf(keyDedup, service, eventID) }

func ChannelAuctionEvents(auctionID string) string { return fmt.Sprintf(channelEvents, auctionID) }
