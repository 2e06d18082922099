package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	seen   []int
	gate   chan struct{}
	failOn map[int]int
}

func (r *recorder) handle(_ context.Context, v int) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[v] > 0 {
		r.failOn[v]--
		return errors.New("boom")
	}
	r.seen = append(r.seen, v)
	return nil
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int{}, r.seen...)
}

func TestCoalescerStopDrainsLatestPayload(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer[int]("test", rec.handle, CoalescerConfig{})

	for i := 1; i <= 5; i++ {
		assert.True(t, c.Submit(i))
	}
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, []int{5}, rec.values())
	assert.False(t, c.Submit(6))
}

func TestCoalescerCoalescesWhileBusy(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	c := NewCoalescer[int]("test", rec.handle, CoalescerConfig{})
	c.Start(context.Background())

	c.Submit(1)
	// wait for the worker to pick up the first payload
	require.Eventually(t, func() bool { return !c.Pending() }, time.Second, time.Millisecond)
	c.Submit(2)
	c.Submit(3)
	close(rec.gate)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int{1, 3}, rec.values())
}

func TestCoalescerRetriesFailedPayload(t *testing.T) {
	rec := &recorder{failOn: map[int]int{7: 2}}
	c := NewCoalescer[int]("test", rec.handle, CoalescerConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	c.Start(context.Background())

	c.Submit(7)
	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int{7}, rec.values())
}

func TestCoalescerStopReturnsFinalError(t *testing.T) {
	rec := &recorder{failOn: map[int]int{1: 1}}
	c := NewCoalescer[int]("test", rec.handle, CoalescerConfig{})

	c.Submit(1)
	err := c.Stop(context.Background())
	require.Error(t, err)
	assert.Empty(t, rec.values())
}
