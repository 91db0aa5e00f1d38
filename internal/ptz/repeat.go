package ptz

import (
	"context"
	"sync"
	"time"
)

// Repeater re-issues a command while a button is held. Press runs the action
// once immediately and then on every tick until Release. Only one action is
// held at a time; pressing again replaces the previous one.
type Repeater struct {
	interval time.Duration
	pressMu  sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRepeater returns a repeater ticking at interval.
func NewRepeater(interval time.Duration) *Repeater {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Repeater{interval: interval}
}

// Press starts repeating action. Errors from the action stop the repeat.
func (r *Repeater) Press(ctx context.Context, action func(context.Context) error) error {
	r.pressMu.Lock()
	defer r.pressMu.Unlock()
	r.Release()
	if err := action(ctx); err != nil {
		return err
	}

	holdCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-holdCtx.Done():
				return
			case <-ticker.C:
				if err := action(holdCtx); err != nil {
					return
				}
			}
		}
	}()
	return nil
}

// Release stops the held action and waits for the last tick to finish.
func (r *Repeater) Release() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether an action is currently held.
func (r *Repeater) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
