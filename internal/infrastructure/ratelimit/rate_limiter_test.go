package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(map[string]Policy{
		ActionSendMessage: {Burst: 3, Every: time.Hour},
	})

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("u1", ActionSendMessage)
		assert.True(t, allowed, "call %d", i)
	}

	allowed, wait := rl.Allow("u1", ActionSendMessage)
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))

	// other users and actions have their own buckets
	allowed, _ = rl.Allow("u2", ActionSendMessage)
	assert.True(t, allowed)
	allowed, _ = rl.Allow("u1", ActionTyping)
	assert.True(t, allowed)

	tokens, max := rl.Status("u1", ActionSendMessage)
	assert.Equal(t, 0, tokens)
	assert.Equal(t, 3, max)
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 10*time.Millisecond)

	allowed, _ := tb.Allow()
	assert.True(t, allowed)
	allowed, _ = tb.Allow()
	assert.False(t, allowed)

	time.Sleep(25 * time.Millisecond)
	allowed, _ = tb.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.Allow("u1", ActionConnectionRequest)

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, rl.Cleanup(time.Millisecond))

	tokens, max := rl.Status("u1", ActionConnectionRequest)
	assert.Zero(t, tokens)
	assert.Zero(t, max)
}
