package engine

import (
	"time"

	"beacon/internal/common"
)

// dayNs is a UTC calendar day expressed in nanoseconds since the epoch,
// used to bucket trades the way the Janitor buckets its own TTL cutoffs.
const dayNs = uint64(24 * time.Hour)

type dayStats struct {
	day    uint64
	volume common.Amount
	trades uint64
}

// recordTrade folds one fill into the current UTC-day bucket for token,
// rolling the bucket over if the trade lands on a new day rather than
// rescanning the full archive (spec §9's "compute incrementally" habit,
// extended from the Janitor's own tick-driven sweeps to this per-trade
// stats update).
func (e *Engine) recordTrade(token common.TokenID, nowNs uint64, amount common.Amount) {
	day := nowNs / dayNs
	ds, ok := e.volumeDay[token]
	if !ok || ds.day != day {
		ds = &dayStats{day: day}
		e.volumeDay[token] = ds
	}
	ds.volume = common.AddAmount(ds.volume, amount)
	ds.trades++
}

// AggregateStats is the data() query payload (spec §6), extended with a
// per-token volume/trade-count for the current UTC day (reset at UTC
// midnight, not a rolling 24h window).
type AggregateStats struct {
	FeeBps             uint32
	VolumeDay          map[common.TokenID]common.Amount
	TradesDay          map[common.TokenID]uint64
	PaymentTokenLocked common.Amount
	TokensListed       int
	ActiveTraders      int
}

// Data implements data() (spec §6).
func (e *Engine) Data() AggregateStats {
	var out AggregateStats
	e.exec(func() {
		now := e.clock()
		today := now / dayNs

		out = AggregateStats{
			FeeBps:    e.cfg.FeeBps,
			VolumeDay: make(map[common.TokenID]common.Amount),
			TradesDay: make(map[common.TokenID]uint64),
		}
		for token, ds := range e.volumeDay {
			if ds.day != today {
				continue
			}
			out.VolumeDay[token] = ds.volume
			out.TradesDay[token] = ds.trades
		}

		if e.paymentTokenSet {
			out.PaymentTokenLocked = e.balances.LockedTotal(e.paymentToken)
		} else {
			out.PaymentTokenLocked = common.ZeroAmount()
		}
		out.TokensListed = len(e.registry.All())
		out.ActiveTraders = len(e.balances.ActiveOwners(common.FeeAccount))
	})
	return out
}
