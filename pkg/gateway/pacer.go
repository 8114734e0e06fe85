// -- pkg/gateway/pacer.go --
package gateway

import (
	"context"
	"sync"
	"time"
)

type clockFunc func() time.Time

type sleepFunc func(ctx context.Context, d time.Duration) error

// Pacer is the hard pacing gate in front of the model endpoint. It
// holds the only shared mutable state in the core: the timestamp of the
// last successful request, protected so concurrent runs cannot both
// pass the gate and exceed the configured requests-per-minute budget.
//
// The gate is an explicit injectable component rather than a hidden
// singleton: each gateway receives one, and tests construct pacers with
// their own clocks.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   clockFunc
	sleep sleepFunc
}

// NewPacer creates a pacing gate enforcing at most one request per
// interval. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until the pacing gate opens, then keeps the gate held.
// Callers must release it with Done; the lock spans the entire upstream
// request so read-compute-wait-update stays one critical section.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	if p.interval <= 0 || p.last.IsZero() {
		return nil
	}
	elapsed := p.now().Sub(p.last)
	if elapsed < p.interval {
		if err := p.sleep(ctx, p.interval-elapsed); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	return nil
}

// Done releases the gate. A successful request refreshes the pacing
// timestamp; failures leave it untouched.
func (p *Pacer) Done(success bool) {
	if success {
		p.last = p.now()
	}
	p.mu.Unlock()
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
