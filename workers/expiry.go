package workers

import (
	"context"
	"time"

	"library-api/log"
)

// Expirer expires reservations that are past their expiry date.
type Expirer interface {
	ExpireReservations(ctx context.Context) int
}

// ExpirySweeper periodically expires overdue reservations.
type ExpirySweeper struct {
	expirer  Expirer
	interval time.Duration
}

// NewExpirySweeper returns a sweeper that expires reservations every interval.
func NewExpirySweeper(expirer Expirer, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{expirer: expirer, interval: interval}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
// The returned channel is closed once the sweeper has stopped.
func (s *ExpirySweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(s.interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		s.Sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				log.GetLogger(ctx).Info("expiry sweeper stopped")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
	return done
}

// Sweep runs one expiry pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	expired := s.expirer.ExpireReservations(ctx)
	log.GetLogger(ctx).WithField("expired", expired).Debug("expiry sweep finished")
	return expired
}
