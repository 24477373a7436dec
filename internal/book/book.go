// Package book implements one traded token's two-sided order book (spec
// §4.C): price-time priority, insert/cancel/best, and the matchable-order
// walk the matcher drives. The btree-backed price level structure is
// carried over from the teacher's internal/engine/orderbook.go almost
// unchanged in shape — only the key type (Amount instead of float64) and
// the addition of a self-trade-aware walker are new.
package book

import (
	"sort"

	"github.com/tidwall/btree"

	"beacon/internal/common"
)

type levels = btree.BTreeG[*PriceLevel]

// Book holds one token's Buy and Sell sides.
type Book struct {
	Token common.TokenID
	Bids  *levels // sorted highest price first
	Asks  *levels // sorted lowest price first
}

func New(token common.TokenID) *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GT(b.Price) // greatest first: best bid sorts first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LT(b.Price) // least first: best ask sorts first
	})
	return &Book{Token: token, Bids: bids, Asks: asks}
}

func (bk *Book) levels(side common.Side) *levels {
	if side == common.Buy {
		return bk.Bids
	}
	return bk.Asks
}

// Insert places a resting order into its side at its price level, creating
// the level if this is the first order at that price. Orders within a
// level are kept sorted by (timestamp, owner), so two orders arriving at
// the same timestamp still resolve to a stable priority ordering by
// owner-id rather than by whatever order Insert happened to be called in.
func (bk *Book) Insert(o *common.Order) {
	lv := bk.levels(o.Side)
	level, ok := lv.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		lv.Set(&PriceLevel{Price: o.Price, Orders: []*common.Order{o}})
		return
	}
	idx := sort.Search(len(level.Orders), func(i int) bool {
		return orderLess(o, level.Orders[i])
	})
	level.Orders = append(level.Orders, nil)
	copy(level.Orders[idx+1:], level.Orders[idx:])
	level.Orders[idx] = o
}

// orderLess reports whether a has strictly higher priority than b within
// the same price level: earlier timestamp first, owner-id as the tiebreak.
func orderLess(a, b *common.Order) bool {
	if a.TimestampNs != b.TimestampNs {
		return a.TimestampNs < b.TimestampNs
	}
	return a.Owner < b.Owner
}

// Cancel removes the resting order matching key, if any. It is idempotent
// by construction: cancelling an absent order simply returns false (spec
// §5 "close_order is idempotent").
func (bk *Book) Cancel(key common.Key) (*common.Order, bool) {
	lv := bk.levels(key.Side)
	level, ok := lv.GetMut(&PriceLevel{Price: key.Price})
	if !ok {
		return nil, false
	}
	for i, o := range level.Orders {
		if o.Owner == key.Owner && o.TimestampNs == key.TimestampNs {
			found := o
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			if len(level.Orders) == 0 {
				lv.Delete(level)
			}
			return found, true
		}
	}
	return nil, false
}

// Best returns the highest-priority resting order on side, if any.
func (bk *Book) Best(side common.Side) (*common.Order, bool) {
	level, ok := bk.levels(side).Min()
	if !ok || len(level.Orders) == 0 {
		return nil, false
	}
	return level.Orders[0], true
}

// IsEmpty reports whether both sides have no resting orders, used by the
// Janitor's delisting policy (spec §4.G).
func (bk *Book) IsEmpty() bool {
	return bk.Bids.Len() == 0 && bk.Asks.Len() == 0
}

// Levels returns every price level on side, best-priority first. Used by
// the orders() query (spec §6) and by invariant checks.
func (bk *Book) Levels(side common.Side) []*PriceLevel {
	var out []*PriceLevel
	bk.levels(side).Scan(func(item *PriceLevel) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Orders returns every resting order on side, best-priority and FIFO
// order preserved.
func (bk *Book) Orders(side common.Side) []*common.Order {
	var out []*common.Order
	for _, lv := range bk.Levels(side) {
		out = append(out, lv.Orders...)
	}
	return out
}

// snapshotSide is a deep, pointer-free copy of one side's resting orders,
// used to roll back an aborted trade (spec §4.D step 4).
type snapshotSide struct {
	prices []common.Amount
	orders [][]common.Order
}

type Snapshot struct {
	bids snapshotSide
	asks snapshotSide
}

func snapshotOf(lv *levels) snapshotSide {
	var s snapshotSide
	lv.Scan(func(item *PriceLevel) bool {
		s.prices = append(s.prices, item.Price)
		cp := make([]common.Order, len(item.Orders))
		for i, o := range item.Orders {
			cp[i] = *o
		}
		s.orders = append(s.orders, cp)
		return true
	})
	return s
}

// Snapshot captures the entire book so the matcher can restore it
// wholesale if post-trade invariants fail. Full-book snapshotting keeps
// the rollback logic simple at the scale a reference engine runs at.
func (bk *Book) Snapshot() Snapshot {
	return Snapshot{bids: snapshotOf(bk.Bids), asks: snapshotOf(bk.Asks)}
}

func restoreSide(side common.Side, s snapshotSide) *levels {
	var lv *levels
	if side == common.Buy {
		lv = btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price.GT(b.Price) })
	} else {
		lv = btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price.LT(b.Price) })
	}
	for i, price := range s.prices {
		orders := make([]*common.Order, len(s.orders[i]))
		for j := range s.orders[i] {
			o := s.orders[i][j]
			orders[j] = &o
		}
		lv.Set(&PriceLevel{Price: price, Orders: orders})
	}
	return lv
}

// Restore replaces the book's contents with a prior Snapshot.
func (bk *Book) Restore(s Snapshot) {
	bk.Bids = restoreSide(common.Buy, s.bids)
	bk.Asks = restoreSide(common.Sell, s.asks)
}
