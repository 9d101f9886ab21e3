package jobs

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

type Scheduler interface {
	Start()
	Shutdown() error
}

type SchedulerJob interface {
	Run() error
}

var _ Scheduler = &scheduler{}

type scheduler struct {
	gocronScheduler gocron.Scheduler
}

// NewScheduler runs networkJob every interval, starting immediately. A run
// that is still going when the next one is due delays it rather than
// overlapping.
func NewScheduler(log *slog.Logger, clock clockwork.Clock, interval time.Duration, networkJob SchedulerJob) (Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gocron scheduler")
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := networkJob.Run(); err != nil {
				log.Info("failed to run network job", "err", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeWait),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create job")
	}

	return &scheduler{
		gocronScheduler: s,
	}, nil
}

func (s *scheduler) Start() {
	s.gocronScheduler.Start()
}

func (s *scheduler) Shutdown() error {
	if err := s.gocronScheduler.Shutdown(); err != nil {
		return errors.Wrap(err, "failed to shutdown gocron scheduler")
	}
	return nil
}
