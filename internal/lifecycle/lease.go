package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// heartbeat keeps a runner's lease alive on a ticker.
type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

func startHeartbeat(st Store, runner string, ttl time.Duration, log *slog.Logger) *heartbeat {
	hb := &heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), ttl/3)
				if err := st.RenewLease(ctx, runner, ttl); err != nil {
					log.Warn("could not renew runner lease", "err", err)
				}
				cancel()
			case <-hb.stop:
				return
			}
		}
	}()
	return hb
}

func (hb *heartbeat) halt() {
	close(hb.stop)
	<-hb.done
}

// holdLease renews this runner's lease and keeps it renewed until the
// controller has no scan left. Called before a record is stamped with the
// runner.
func (c *Controller) holdLease(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RenewLease(ctx, c.runner, c.opts.LeaseTTL); err != nil {
		return fmt.Errorf("take runner lease: %w", err)
	}
	if c.beat == nil {
		c.beat = startHeartbeat(c.store, c.runner, c.opts.LeaseTTL, c.log)
	}
	return nil
}

// dropLeaseIfIdleLocked stops renewing and releases the lease once no scan
// is active, reserved or starting. c.mu must be held, which orders the release before
// any later holdLease.
func (c *Controller) dropLeaseIfIdleLocked() {
	if c.beat == nil || len(c.active) > 0 || c.starting > 0 {
		return
	}
	c.beat.halt()
	c.beat = nil
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.LeaseTTL/3)
	defer cancel()
	if err := c.store.ReleaseLease(ctx, c.runner); err != nil {
		c.log.Warn("could not release runner lease", "err", err)
	}
}
