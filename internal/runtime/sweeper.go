package runtime

import (
	"context"
	"time"

	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/pkg/logger"
	"github.com/go-co-op/gocron"
)

// LockSweeper periodically deletes row locks older than the lock TTL so
// abandoned locks do not pile up in the backend.
type LockSweeper struct {
	scheduler *gocron.Scheduler
	purge     commands.PurgeExpiredLocksCommandHandler
	timeout   time.Duration
	logger    logger.Logger
}

func NewLockSweeper(
	purge commands.PurgeExpiredLocksCommandHandler,
	interval time.Duration,
	log logger.Logger,
) (*LockSweeper, error) {
	sweeper := &LockSweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		purge:     purge,
		timeout:   interval,
		logger:    log.Component("lock-sweeper"),
	}

	seconds := int(interval / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	if _, err := sweeper.scheduler.Every(seconds).Seconds().SingletonMode().Do(sweeper.Sweep); err != nil {
		return nil, err
	}

	return sweeper, nil
}

func (s *LockSweeper) Start() {
	s.scheduler.StartAsync()
}

func (s *LockSweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep runs one purge. Failures are logged and retried on the next tick.
func (s *LockSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	purged, err := s.purge.Handle(ctx, commands.PurgeExpiredLocksCommand{})
	if err != nil {
		s.logger.Error().Err(err).Msg("purging expired row locks failed")

		return
	}

	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Msg("purged expired row locks")
	}
}
