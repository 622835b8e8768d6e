package scan

import (
	"context"
	"time"

	"github.com/projectdiscovery/ratelimit"
)

// pacer spaces secondary queries by at least one delay. The first Wait
// already pauses, since the pacer is created right after the primary query.
type pacer struct {
	limiter *ratelimit.Limiter
}

func newPacer(ctx context.Context, delay time.Duration) *pacer {
	if delay <= 0 {
		return nil
	}

	limiter := ratelimit.New(ctx, 1, delay)
	// Spend the initial token so the next Take waits for a refill.
	limiter.Take()
	return &pacer{limiter: limiter}
}

// Wait blocks until the next query may run or ctx is done
func (p *pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	taken := make(chan struct{})
	go func() {
		p.limiter.Take()
		close(taken)
	}()

	select {
	case <-taken:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the limiter
func (p *pacer) Stop() {
	if p != nil {
		p.limiter.Stop()
	}
}
