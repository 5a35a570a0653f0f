package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// Poller drives one pipeline queue on a fixed interval. A tick that fires
// while the previous tick is still processing is dropped entirely. The
// optional Redis lease covers the multi-process case; when Redis is
// unavailable the poller proceeds under the local guard alone, which is safe
// only for single-process deployments.
type Poller struct {
	Name     string
	Interval time.Duration
	LeaseTTL time.Duration
	Logger   *logrus.Logger
	Locker   *redislock.Client
	Tick     func(ctx context.Context) error

	running atomic.Bool
}

func (p *Poller) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// RunOnce executes a single tick, subject to the single-flight guard and the
// lease. Returns false when the tick was dropped. The manual trigger
// endpoint calls this directly, so it shares the exact contract of a
// scheduled tick.
func (p *Poller) RunOnce(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"poller": p.Name,
			}).Warn("previous tick still running; dropping tick")
		}
		return false
	}
	defer p.running.Store(false)

	if p.Locker != nil {
		ttl := p.LeaseTTL
		if ttl <= 0 {
			ttl = 2 * p.Interval
		}
		lock, err := p.Locker.Obtain(ctx, "pipeline:lease:"+p.Name, ttl, nil)
		if err == redislock.ErrNotObtained {
			if p.Logger != nil {
				p.Logger.WithFields(logrus.Fields{
					"poller": p.Name,
				}).Debug("lease held elsewhere; skipping tick")
			}
			return false
		} else if err != nil {
			if p.Logger != nil {
				p.Logger.WithFields(logrus.Fields{
					"poller": p.Name,
				}).Warn("error obtaining lease; proceeding without it: " + err.Error())
			}
		} else {
			defer func() {
				if releaseErr := lock.Release(ctx); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
					if p.Logger != nil {
						p.Logger.WithFields(logrus.Fields{
							"poller": p.Name,
						}).Warn("failed to release lease: " + releaseErr.Error())
					}
				}
			}()
		}
	}

	if err := p.Tick(ctx); err != nil {
		// Page-selection fault: the whole tick aborts, the next tick retries.
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"poller": p.Name,
			}).Error("queue tick failed: " + err.Error())
		}
	}
	return true
}
