package book

import "beacon/internal/common"

// Walker drives a single trade()'s sweep across one side of the book in
// price-time priority, skipping the taker's own resting orders (spec
// §4.C's self-trade prohibition — the "skip" variant from §9's design
// notes, not "cross and cancel": a caller's own orders are left resting).
//
// The matcher calls Next() repeatedly, mutates the returned order's
// AmountRemaining in place (fill bookkeeping lives in the matcher, not
// here), and calls Close() once it stops walking so the last-touched
// level gets compacted.
type Walker struct {
	lv      *levels
	self    string
	crosses func(levelPrice common.Amount) bool

	cur *PriceLevel
	idx int
}

// NewWalker returns a Walker over side, which must be the side opposite
// the incoming taker order. crosses reports whether a given resting
// price still crosses the taker's limit (always true for a market
// taker).
func (bk *Book) NewWalker(side common.Side, self string, crosses func(common.Amount) bool) *Walker {
	return &Walker{lv: bk.levels(side), self: self, crosses: crosses}
}

// Next returns the next matchable maker order, or ok=false once the book
// is exhausted or the best remaining price no longer crosses.
func (w *Walker) Next() (*common.Order, bool) {
	for {
		if w.cur == nil {
			level, ok := w.lv.MinMut()
			if !ok {
				return nil, false
			}
			if !w.crosses(level.Price) {
				return nil, false
			}
			w.cur = level
			w.idx = 0
		}

		for w.idx < len(w.cur.Orders) {
			o := w.cur.Orders[w.idx]
			if o.AmountRemaining.IsZero() || o.Owner == w.self {
				w.idx++
				continue
			}
			return o, true
		}

		prev := w.cur
		w.compactCurrent()
		w.cur = nil

		// A level still holding the caller's own orders survives compaction,
		// so step past it by price instead of asking for the minimum again.
		var next *PriceLevel
		w.lv.Ascend(prev, func(item *PriceLevel) bool {
			if item.Price.Equal(prev.Price) {
				return true
			}
			next = item
			return false
		})
		if next == nil || !w.crosses(next.Price) {
			return nil, false
		}
		w.cur = next
		w.idx = 0
	}
}

// compactCurrent drops every fully-filled order from the current level
// (preserving the relative order of whatever remains — untouched
// self-owned orders and any partially filled order), deleting the level
// entirely if nothing is left.
func (w *Walker) compactCurrent() {
	lv := w.cur
	filtered := lv.Orders[:0]
	for _, o := range lv.Orders {
		if !o.AmountRemaining.IsZero() {
			filtered = append(filtered, o)
		}
	}
	lv.Orders = filtered
	if len(lv.Orders) == 0 {
		w.lv.Delete(lv)
	}
}

// Close finalizes the walk, compacting whatever level was last visited.
// It is always safe to call, including after Next() has already returned
// false.
func (w *Walker) Close() {
	if w.cur != nil {
		w.compactCurrent()
		w.cur = nil
	}
}
