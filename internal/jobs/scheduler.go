package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper evicts idle page contexts.
type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	log     zerolog.Logger
}

func NewScheduler(sweeper Sweeper, spec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		spec:    spec,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.sweepContexts); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepContexts() {
	removed := s.sweeper.Sweep()
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("idle page contexts evicted")
	}
}
