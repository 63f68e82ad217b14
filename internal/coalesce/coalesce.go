// Package coalesce batches bursts of document saves into a single remote
// write.
//
// Every Schedule restarts a trailing-edge timer. When the timer fires the most
// recent document is sent. While a send is in flight, newer documents wait in
// a single slot where the latest one replaces any earlier one; the slot is
// drained as soon as the in-flight send completes. At most one send runs at a
// time.
package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/jos-todo/todosync/internal/model"
)

// DefaultDelay is the quiet period after the last Schedule before a save
// is sent.
const DefaultDelay = 500 * time.Millisecond

// SendFunc performs one remote write.
type SendFunc func(ctx context.Context, doc model.Document) error

// ResultFunc observes the outcome of every send, nil on success.
type ResultFunc func(err error)

// Coalescer debounces and serialises saves.
type Coalescer struct {
	delay    time.Duration
	send     SendFunc
	onResult ResultFunc

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	latest  *model.Document // scheduled, timer running
	pending *model.Document // due, waiting for the in-flight send
	busy    bool
	idle    chan struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Coalescer. A delay of zero or less uses DefaultDelay.
// onResult may be nil.
func New(delay time.Duration, send SendFunc, onResult ResultFunc) *Coalescer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if onResult == nil {
		onResult = func(error) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Coalescer{
		delay:    delay,
		send:     send,
		onResult: onResult,
		idle:     idle,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule records doc as the newest payload and restarts the timer.
// Schedule after Close is a no-op.
func (c *Coalescer) Schedule(doc model.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	d := doc.Clone()
	c.latest = &d
	c.stopTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

// fire runs when the timer for generation gen expires.
func (c *Coalescer) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed {
		return
	}
	c.timer = nil
	c.dispatchLocked()
}

// stopTimerLocked cancels the running timer and invalidates its callback.
func (c *Coalescer) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// dispatchLocked moves the latest payload to the pending slot, or starts a
// drain if nothing is in flight.
func (c *Coalescer) dispatchLocked() {
	if c.latest == nil {
		return
	}
	doc := *c.latest
	c.latest = nil

	if c.busy {
		c.pending = &doc
		return
	}
	c.busy = true
	c.idle = make(chan struct{})
	c.wg.Add(1)
	go c.drain(doc)
}

// drain sends doc and then every payload that arrived meanwhile.
func (c *Coalescer) drain(doc model.Document) {
	defer c.wg.Done()

	for {
		err := c.send(c.ctx, doc)
		c.onResult(err)

		c.mu.Lock()
		if c.pending != nil && !c.closed {
			doc = *c.pending
			c.pending = nil
			c.mu.Unlock()
			continue
		}
		c.pending = nil
		c.busy = false
		close(c.idle)
		c.mu.Unlock()
		return
	}
}

// Flush sends any scheduled payload immediately and waits until no send is in
// flight or queued.
func (c *Coalescer) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.latest != nil {
			c.stopTimerLocked()
			c.dispatchLocked()
		}
		if !c.busy {
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Cancel drops the scheduled and queued payloads. A send already in flight
// is left to finish.
func (c *Coalescer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.latest = nil
	c.pending = nil
}

// InFlight reports whether a send is running.
func (c *Coalescer) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Close drops unsent payloads, aborts the in-flight send through its context
// and waits for the drain goroutine to exit. Call Flush first to deliver
// outstanding work.
func (c *Coalescer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.latest = nil
	c.pending = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
