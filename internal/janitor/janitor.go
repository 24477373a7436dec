// Package janitor implements the Janitor (spec §4.G): a periodic,
// preemptible sweep over stale orders, archived trades and inactive
// tokens. It is grounded in the teacher's internal/worker.go WorkerPool —
// the same "keep going until t.Dying() fires" supervision shape, just
// driven by a ticker instead of a task channel, since the Janitor has one
// job rather than a pool of interchangeable ones.
package janitor

import (
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Sweeper is the slice of the engine the Janitor is allowed to mutate.
// Each method processes at most one bounded batch and returns how much it
// did, so a single tick never blocks the process for long (spec §5:
// "Janitor operations are preemptible: each tick processes a bounded batch
// and yields").
type Sweeper interface {
	SweepExpiredOrders(nowNs uint64, limit int) int
	SweepExpiredTrades(nowNs uint64, limit int) int
	SweepDelistableTokens(nowNs uint64, limit int) int
}

// Config holds the TTLs and batch size spec §4.G leaves as tunables
// ("e.g. 90 days" / "e.g. 180 days").
type Config struct {
	Interval   time.Duration
	OrderTTL   time.Duration
	ArchiveTTL time.Duration
	DelistTTL  time.Duration
	BatchSize  int
}

// DefaultConfig matches the example figures spec §4.G gives.
func DefaultConfig() Config {
	return Config{
		Interval:   time.Minute,
		OrderTTL:   90 * 24 * time.Hour,
		ArchiveTTL: 180 * 24 * time.Hour,
		DelistTTL:  180 * 24 * time.Hour,
		BatchSize:  500,
	}
}

type Janitor struct {
	cfg     Config
	sweeper Sweeper
}

func New(cfg Config, sweeper Sweeper) *Janitor {
	return &Janitor{cfg: cfg, sweeper: sweeper}
}

// Run ticks until t is dying, running one bounded sweep per tick. It is
// meant to be started with t.Go(janitor.Run) from the owning tomb, the
// same wiring the teacher uses for its worker pool.
func (j *Janitor) Run(t *tomb.Tomb) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case tick := <-ticker.C:
			j.sweep(tick)
		}
	}
}

func (j *Janitor) sweep(tick time.Time) {
	now := uint64(tick.UnixNano())
	orderCutoff := now - uint64(j.cfg.OrderTTL.Nanoseconds())
	archiveCutoff := now - uint64(j.cfg.ArchiveTTL.Nanoseconds())
	delistCutoff := now - uint64(j.cfg.DelistTTL.Nanoseconds())

	orders := j.sweeper.SweepExpiredOrders(orderCutoff, j.cfg.BatchSize)
	trades := j.sweeper.SweepExpiredTrades(archiveCutoff, j.cfg.BatchSize)
	delisted := j.sweeper.SweepDelistableTokens(delistCutoff, j.cfg.BatchSize)

	if orders > 0 || trades > 0 || delisted > 0 {
		log.Info().
			Int("ordersClosed", orders).
			Int("tradesArchivedAway", trades).
			Int("tokensDelisted", delisted).
			Msg("janitor sweep")
	}
}
