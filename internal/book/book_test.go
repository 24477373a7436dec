package book_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/book"
	"beacon/internal/common"
)

var token = common.TokenIDFromBytes([]byte("T"))

func mkOrder(owner string, side common.Side, price, amount int64, ts uint64) *common.Order {
	return &common.Order{
		ID:              uuid.New(),
		Owner:           owner,
		Token:           token,
		Side:            side,
		OrderType:       common.LimitOrder,
		Price:           common.AmountFromUint64(uint64(price)),
		AmountRemaining: common.AmountFromUint64(uint64(amount)),
		TotalAmount:     common.AmountFromUint64(uint64(amount)),
		TimestampNs:     ts,
	}
}

func TestBestIsPriceTimePriority(t *testing.T) {
	bk := book.New(token)
	bk.Insert(mkOrder("alice", common.Sell, 300, 10, 1))
	bk.Insert(mkOrder("bob", common.Sell, 200, 10, 2))
	bk.Insert(mkOrder("carol", common.Sell, 200, 10, 1))

	best, ok := bk.Best(common.Sell)
	require.True(t, ok)
	assert.Equal(t, "carol", best.Owner, "lower price wins; earlier timestamp wins the tie")
}

func TestSameTimestampOrdersBreakTiesByOwner(t *testing.T) {
	bk := book.New(token)
	// Inserted deliberately out of owner order, to confirm priority comes
	// from the tiebreak rule and not from insertion call order.
	bk.Insert(mkOrder("zoe", common.Sell, 200, 10, 5))
	bk.Insert(mkOrder("amy", common.Sell, 200, 10, 5))
	bk.Insert(mkOrder("mia", common.Sell, 200, 10, 5))

	best, ok := bk.Best(common.Sell)
	require.True(t, ok)
	assert.Equal(t, "amy", best.Owner, "identical timestamps must break the tie by owner-id, lexicographically")

	orders := bk.Orders(common.Sell)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"amy", "mia", "zoe"}, []string{orders[0].Owner, orders[1].Owner, orders[2].Owner})
}

func TestCancelIsIdempotent(t *testing.T) {
	bk := book.New(token)
	o := mkOrder("alice", common.Buy, 100, 5, 1)
	bk.Insert(o)

	key := common.Key{Side: common.Buy, Price: o.Price, TimestampNs: o.TimestampNs, Owner: o.Owner}
	_, ok := bk.Cancel(key)
	assert.True(t, ok)

	_, ok = bk.Cancel(key)
	assert.False(t, ok, "cancelling an absent order is a no-op, not an error")
	assert.True(t, bk.IsEmpty())
}

func TestSnapshotRestore(t *testing.T) {
	bk := book.New(token)
	bk.Insert(mkOrder("alice", common.Buy, 100, 5, 1))
	snap := bk.Snapshot()

	bk.Insert(mkOrder("bob", common.Buy, 110, 5, 2))
	assert.Equal(t, 2, len(bk.Orders(common.Buy)))

	bk.Restore(snap)
	orders := bk.Orders(common.Buy)
	require.Len(t, orders, 1)
	assert.Equal(t, "alice", orders[0].Owner)
}

func TestWalkerSkipsSelfOwnedOrders(t *testing.T) {
	bk := book.New(token)
	bk.Insert(mkOrder("alice", common.Sell, 100, 10, 1))
	bk.Insert(mkOrder("bob", common.Sell, 100, 10, 2))

	w := bk.NewWalker(common.Sell, "alice", func(common.Amount) bool { return true })
	maker, ok := w.Next()
	require.True(t, ok)
	assert.Equal(t, "bob", maker.Owner, "alice's own resting order must be skipped, not matched")
	w.Close()

	// alice's order is left untouched in the book.
	_, stillThere := bk.Cancel(common.Key{Side: common.Sell, Price: common.AmountFromUint64(100), TimestampNs: 1, Owner: "alice"})
	assert.True(t, stillThere)
}

func TestWalkerStopsWhenPriceNoLongerCrosses(t *testing.T) {
	bk := book.New(token)
	bk.Insert(mkOrder("alice", common.Sell, 300, 10, 1))

	limit := common.AmountFromUint64(200)
	w := bk.NewWalker(common.Sell, "bob", func(p common.Amount) bool { return p.LTE(limit) })
	_, ok := w.Next()
	assert.False(t, ok, "best ask of 300 must not cross a buy limit of 200")
	w.Close()
}
