package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one payload.
type Handler[T any] func(context.Context, T) error

// CoalescerConfig configures retry behaviour.
type CoalescerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Coalescer runs a handler on a single worker goroutine over a one-slot
// mailbox. Submitting while a payload is waiting replaces it, so only the most
// recent payload is processed and handler calls never overlap.
type Coalescer[T any] struct {
	name    string
	handler Handler[T]

	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	mu         sync.Mutex
	pending    T
	hasPending bool
	started    bool
	stopped    bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	run  sync.Mutex
}

// NewCoalescer builds a coalescer around handler.
func NewCoalescer[T any](name string, handler Handler[T], cfg CoalescerConfig) *Coalescer[T] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coalescer[T]{
		name:       name,
		handler:    handler,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the worker. Safe to call once; later calls are ignored.
func (c *Coalescer[T]) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	go c.loop(ctx)
	c.logger.Debug("coalescer started", zap.String("coalescer", c.name))
}

// Submit stores payload in the slot, replacing any payload not yet picked up.
// It never blocks and returns false once the coalescer is stopped.
func (c *Coalescer[T]) Submit(payload T) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.pending = payload
	c.hasPending = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports whether a payload is waiting in the slot.
func (c *Coalescer[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasPending
}

// Stop halts the worker after its current handler call and then processes any
// payload still waiting, using ctx. The returned error is that final call's.
func (c *Coalescer[T]) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	if started {
		close(c.quit)
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload, ok := c.take()
	if !ok {
		return nil
	}
	c.run.Lock()
	defer c.run.Unlock()
	return c.handler(ctx, payload)
}

func (c *Coalescer[T]) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		for {
			payload, ok := c.take()
			if !ok {
				break
			}
			c.process(ctx, payload)
		}
	}
}

func (c *Coalescer[T]) take() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if !c.hasPending {
		return zero, false
	}
	payload := c.pending
	c.pending = zero
	c.hasPending = false
	return payload, true
}

func (c *Coalescer[T]) process(ctx context.Context, payload T) {
	for attempt := 0; ; attempt++ {
		c.run.Lock()
		err := c.handler(ctx, payload)
		c.run.Unlock()
		if err == nil {
			return
		}
		if attempt >= c.maxRetries {
			c.logger.Error("coalescer handler failed", zap.String("coalescer", c.name), zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		if c.Pending() {
			// a newer payload supersedes this one
			return
		}
		c.logger.Warn("coalescer handler failed, retrying", zap.String("coalescer", c.name), zap.Int("attempt", attempt+1), zap.Error(err))

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-c.quit:
			timer.Stop()
			c.requeue(payload)
			return
		case <-ctx.Done():
			timer.Stop()
			c.requeue(payload)
			return
		case <-timer.C:
		}
		if c.Pending() {
			return
		}
	}
}

// requeue puts payload back for the final drain unless something newer arrived.
func (c *Coalescer[T]) requeue(payload T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPending {
		c.pending = payload
		c.hasPending = true
	}
}
