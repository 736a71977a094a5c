package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("tok"))
	assert.True(t, rl.Allow("tok"))
	assert.False(t, rl.Allow("tok"))
	assert.True(t, rl.Allow("other"))

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("tok"))

	now = now.Add(time.Minute)
	rl.Prune()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.history)
}
