package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestLockForStriped(t *testing.T) {
	s := NewPostgres(nil, nil)

	// Same auction always maps to the same mutex.
	assert.True(t, s.lockFor("auction-1") == s.lockFor("auction-1"))

	// The lock set stays bounded no matter how many auctions pass through.
	seen := make(map[*sync.Mutex]bool)
	for i := 0; i < 10_000; i++ {
		seen[s.lockFor(fmt.Sprintf("auction-%d", i))] = true
	}
	assert.True(t, len(seen) <= lockStripes)
}
