package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func TestShutdownOrder(t *testing.T) {
	h := NewHandler(nil, nil)
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	h.RegisterFunc("store", PriorityStore, record("store"))
	h.RegisterFunc("http", PriorityHTTP, record("http"))
	h.RegisterFunc("sessions", PrioritySessions, record("sessions"))
	h.RegisterFunc("sessions-2", PrioritySessions, record("sessions-2"))
	c := &closer{}
	h.RegisterCloser("cache", PriorityCache, c)

	require.NoError(t, h.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "sessions", "sessions-2", "store"}, order)
	assert.True(t, c.closed)

	assert.ErrorIs(t, h.Shutdown(context.Background()), ErrAlreadyClosed)
}

func TestShutdownCollectsErrors(t *testing.T) {
	h := NewHandler(nil, nil)
	boom := errors.New("boom")
	ran := false
	h.RegisterFunc("fails", PriorityHTTP, func(context.Context) error { return boom })
	h.RegisterFunc("after", PriorityStore, func(context.Context) error {
		ran = true
		return nil
	})

	err := h.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestShutdownTimeout(t *testing.T) {
	h := NewHandler(&Config{Timeout: 10 * time.Millisecond}, nil)
	ran := false
	h.RegisterFunc("slow", PriorityHTTP, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	h.RegisterFunc("skipped", PriorityStore, func(context.Context) error {
		ran = true
		return nil
	})

	err := h.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.False(t, ran)
}
