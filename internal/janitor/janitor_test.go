package janitor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tomb "gopkg.in/tomb.v2"

	"beacon/internal/janitor"
)

type fakeSweeper struct {
	orders, trades, tokens int
	calls                  int
}

func (f *fakeSweeper) SweepExpiredOrders(uint64, int) int    { f.calls++; return f.orders }
func (f *fakeSweeper) SweepExpiredTrades(uint64, int) int    { f.calls++; return f.trades }
func (f *fakeSweeper) SweepDelistableTokens(uint64, int) int { f.calls++; return f.tokens }

func TestJanitorStopsOnTombDeath(t *testing.T) {
	fs := &fakeSweeper{orders: 1, trades: 2, tokens: 3}
	cfg := janitor.DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	j := janitor.New(cfg, fs)

	var tb tomb.Tomb
	tb.Go(func() error { return j.Run(&tb) })

	time.Sleep(30 * time.Millisecond)
	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
	assert.Greater(t, fs.calls, 0, "the janitor must have ticked at least once before being killed")
}
