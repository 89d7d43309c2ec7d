package scheduler

import (
	"context"
	"time"

	"paylesscars/platform/logger"
)

const defaultExpirySweepInterval = time.Minute

// ExpirySweeper periodically expires overdue negotiations whose scheduled
// task was lost or never enqueued.
type ExpirySweeper struct {
	expirer  Expirer
	log      *logger.Logger
	interval time.Duration
}

func NewExpirySweeper(expirer Expirer, log *logger.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = defaultExpirySweepInterval
	}
	return &ExpirySweeper{expirer: expirer, log: log, interval: interval}
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	if s == nil || s.expirer == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		s.log.Warn("expiry sweep failed", "error", err, "expired", expired)
		return
	}
	if expired > 0 {
		s.log.Info("expiry sweep complete", "expired", expired)
	}
}
