package redisx

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestNewAppliesTimeout(t *testing.T) {
	c := New("localhost:6379")
	opts := c.Options()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
}
