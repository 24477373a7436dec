package balances_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/balances"
	"beacon/internal/common"
)

var token = common.TokenIDFromBytes([]byte("T"))

func TestLockAndUnlock(t *testing.T) {
	l := balances.New()
	l.CreditLiquid("alice", token, common.AmountFromUint64(100))

	require.NoError(t, l.Lock("alice", token, common.AmountFromUint64(40)))
	liquid, locked := l.Read("alice", token)
	assert.True(t, liquid.Equal(common.AmountFromUint64(60)))
	assert.True(t, locked.Equal(common.AmountFromUint64(40)))

	require.NoError(t, l.Unlock("alice", token, common.AmountFromUint64(40)))
	liquid, locked = l.Read("alice", token)
	assert.True(t, liquid.Equal(common.AmountFromUint64(100)))
	assert.True(t, locked.IsZero())
}

func TestLockInsufficientFails(t *testing.T) {
	l := balances.New()
	l.CreditLiquid("alice", token, common.AmountFromUint64(10))
	err := l.Lock("alice", token, common.AmountFromUint64(11))
	assert.Error(t, err)
}

func TestSettleMovesLockedToLiquid(t *testing.T) {
	l := balances.New()
	l.CreditLiquid("alice", token, common.AmountFromUint64(100))
	require.NoError(t, l.Lock("alice", token, common.AmountFromUint64(100)))

	require.NoError(t, l.Settle("alice", "bob", token, common.AmountFromUint64(30)))

	_, aliceLocked := l.Read("alice", token)
	bobLiquid, _ := l.Read("bob", token)
	assert.True(t, aliceLocked.Equal(common.AmountFromUint64(70)))
	assert.True(t, bobLiquid.Equal(common.AmountFromUint64(30)))
}

func TestSnapshotRestore(t *testing.T) {
	l := balances.New()
	l.CreditLiquid("alice", token, common.AmountFromUint64(100))
	snap := l.Snapshot()

	require.NoError(t, l.Lock("alice", token, common.AmountFromUint64(100)))
	l.CreditLiquid("bob", token, common.AmountFromUint64(5))

	l.Restore(snap)

	liquid, locked := l.Read("alice", token)
	assert.True(t, liquid.Equal(common.AmountFromUint64(100)))
	assert.True(t, locked.IsZero())
	bobLiquid, _ := l.Read("bob", token)
	assert.True(t, bobLiquid.IsZero())
}

func TestTotalOf(t *testing.T) {
	l := balances.New()
	l.CreditLiquid("alice", token, common.AmountFromUint64(40))
	l.CreditLiquid("bob", token, common.AmountFromUint64(60))
	require.NoError(t, l.Lock("bob", token, common.AmountFromUint64(20)))

	assert.True(t, l.TotalOf(token).Equal(common.AmountFromUint64(100)))
}
