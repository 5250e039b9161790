package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "not a cron spec", zerolog.Nop())
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestSweepRunsOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "@every 1s", zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for sweeper.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if sweeper.calls.Load() == 0 {
		t.Fatal("sweeper never ran")
	}
}
