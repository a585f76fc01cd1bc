package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }
	allow := func(key string) bool {
		ok, _ := l.Take(key, 2, 1)
		return ok
	}

	assert.True(t, allow("ip"))
	assert.True(t, allow("ip"))
	assert.False(t, allow("ip"))
	assert.True(t, allow("other"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, allow("ip"))
	assert.False(t, allow("ip"))

	now = now.Add(time.Hour)
	assert.True(t, allow("ip"))
	assert.True(t, allow("ip"))
	assert.False(t, allow("ip"), "refill caps at capacity")
}

func TestLimiterTakeReportsWait(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	ok, wait := l.Take("ip", 1, 2)
	assert.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = l.Take("ip", 1, 2)
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ok, wait = l.Take("frozen", 0, 0)
	assert.False(t, ok)
	assert.Zero(t, wait)
}

func TestLimiterEvictsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	l.Take("a", 1, 1)
	l.Take("b", 1, 1)
	assert.Equal(t, 2, l.Len())

	now = now.Add(idleAfter + time.Second)
	l.Take("c", 1, 1)
	assert.Equal(t, 1, l.Len())
}
