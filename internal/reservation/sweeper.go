package reservation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Sweeper periodically deletes expired holds. Reads already ignore expired
// rows, so the sweep only keeps the table small.
type Sweeper struct {
	cron  *cron.Cron
	coord Coordinator
}

// NewSweeper schedules the sweep. schedule uses cron syntax or descriptors
// such as "@every 1m".
func NewSweeper(coord Coordinator, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		cron:  cron.New(),
		coord: coord,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	log.Println("[reservation] expiry sweeper started")
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.coord.Sweep(ctx)
	if err != nil {
		log.Printf("[reservation] sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[reservation] swept %d expired holds", n)
	}
}
