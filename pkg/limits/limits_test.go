package limits

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTokenBucket(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(1, 2, 0, WithClock(c.now))

	assert.True(t, tb.Allow("a"))
	assert.True(t, tb.Allow("a"))
	assert.False(t, tb.Allow("a"))
	assert.True(t, tb.Allow("b"), "keys are independent")

	c.t = c.t.Add(500 * time.Millisecond)
	assert.False(t, tb.Allow("a"))
	c.t = c.t.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow("a"))

	c.t = c.t.Add(time.Hour)
	assert.True(t, tb.AllowN("a", 2), "refill is capped at burst")
	assert.False(t, tb.Allow("a"))
}

func TestTokenBucketForgetsOldestKey(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(0, 1, 2, WithClock(c.now))

	assert.True(t, tb.Allow("a"))
	assert.False(t, tb.Allow("a"))
	assert.True(t, tb.Allow("b"))
	assert.True(t, tb.Allow("c")) // evicts a
	assert.True(t, tb.Allow("a"))
}

func TestConnectionLimiter(t *testing.T) {
	cl := NewConnectionLimiter(2)
	assert.True(t, cl.Acquire("10.0.0.1"))
	assert.True(t, cl.Acquire("10.0.0.1"))
	assert.False(t, cl.Acquire("10.0.0.1"))
	assert.True(t, cl.Acquire("10.0.0.2"))
	assert.Equal(t, 2, cl.Count("10.0.0.1"))

	cl.Release("10.0.0.1")
	assert.True(t, cl.Acquire("10.0.0.1"))
	cl.Release("10.0.0.1")
	cl.Release("10.0.0.1")
	assert.Equal(t, 0, cl.Count("10.0.0.1"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1:1", "203.0.113.9"},
		{"no port", nil, "unix", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
