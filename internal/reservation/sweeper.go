package reservation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/parkline/tonpark/internal/model"
)

// DefaultSweepInterval is how often the sweeper scans for expired
// reservations when no interval is configured.
const DefaultSweepInterval = 30 * time.Second

// sweepTimeout bounds one full pass, including persistence writes.
const sweepTimeout = 20 * time.Second

// Sweeper periodically reclaims spaces whose reservation window has
// elapsed, whether or not the client is still around.  It runs
// independently of client requests; the engine's per-space locks make
// the concurrent expire/reserve interleaving safe.  A failure on one
// space is logged and retried on the next tick, never fatal.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	cron     *cron.Cron
}

// NewSweeper builds a sweeper over the engine.  interval <= 0 selects
// DefaultSweepInterval.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Start schedules the recurring sweep and returns immediately.
func (s *Sweeper) Start() error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	c.Start()
	s.cron = c
	log.Printf("sweeper: running every %s", s.interval)
	return nil
}

// Stop halts the schedule.  A sweep already in flight finishes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep performs one pass: every Reserved space past its deadline is
// driven through the engine's expiry edge, which also ends the
// plate's session.  Exported so one pass can be forced (tests, ops).
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := s.engine.now()
	var expired, failed int
	for _, sp := range s.engine.Snapshot() {
		if sp.Status != model.StatusReserved || sp.Deadline == nil || !now.After(*sp.Deadline) {
			continue
		}
		if err := s.engine.Expire(ctx, sp.ID, now); err != nil {
			failed++
			log.Printf("sweeper: expiring space %s failed: %v", sp.ID, err)
			continue
		}
		expired++
	}
	if expired > 0 || failed > 0 {
		log.Printf("sweeper: pass done, expired=%d failed=%d", expired, failed)
	}
}
