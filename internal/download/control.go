package download

import (
	"context"
	"fmt"
	"sync"

	"github.com/renvik/mangarr/internal/provider"
)

// taskControl carries the pause/cancel signals for one task. Cancel is a
// closed channel, observed at checkpoints. Pause swaps the gate for an
// open channel; Resume closes it, releasing anyone parked on it.
type taskControl struct {
	cancel     chan struct{}
	cancelOnce sync.Once

	mu     sync.Mutex
	gate   chan struct{}
	paused bool
}

func newTaskControl() *taskControl {
	g := make(chan struct{})
	close(g)
	return &taskControl{
		cancel: make(chan struct{}),
		gate:   g,
	}
}

func (c *taskControl) Cancel() {
	c.cancelOnce.Do(func() { close(c.cancel) })
}

func (c *taskControl) cancelled() <-chan struct{} {
	return c.cancel
}

func (c *taskControl) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.gate = make(chan struct{})
		c.paused = true
	}
}

func (c *taskControl) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *taskControl) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		close(c.gate)
		c.paused = false
	}
}

// checkpoint blocks while paused and reports cancellation. Workers call it
// between page fetches so neither signal interrupts a request mid-flight.
func (c *taskControl) checkpoint(ctx context.Context) error {
	select {
	case <-c.cancel:
		return errCancelled
	default:
	}

	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	select {
	case <-gate:
	case <-c.cancel:
		return errCancelled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.cancel:
		return errCancelled
	default:
		return nil
	}
}

func pageFileName(p provider.Page) string {
	return fmt.Sprintf("page_%03d%s", p.Index, p.Ext())
}
