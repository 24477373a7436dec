package tokens_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/balances"
	"beacon/internal/common"
	"beacon/internal/ledger"
	"beacon/internal/tokens"
)

var (
	tokenT  = common.TokenIDFromBytes([]byte("T"))
	payment = common.TokenIDFromBytes([]byte("P"))
)

func amt(v int64) common.Amount { return common.AmountFromUint64(uint64(v)) }

func TestListTokenChargesFeeAndInsertsRecord(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(tokenT, ledger.Metadata{Symbol: "TKN", Decimals: 8, TransferFee: amt(1)})

	bal := balances.New()
	bal.CreditLiquid("alice", payment, amt(1000))

	reg := tokens.New()
	rec, err := reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 1)
	require.NoError(t, err)
	assert.Equal(t, "TKN", rec.Symbol)
	assert.True(t, reg.IsListed(tokenT))

	aliceLiquid, _ := bal.Read("alice", payment)
	assert.True(t, aliceLiquid.Equal(amt(900)))
	feeLiquid, _ := bal.Read(common.FeeAccount, payment)
	assert.True(t, feeLiquid.Equal(amt(100)))
}

func TestListTokenTwiceFailsAlreadyListed(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(tokenT, ledger.Metadata{Symbol: "TKN", Decimals: 8})

	bal := balances.New()
	bal.CreditLiquid("alice", payment, amt(1000))
	reg := tokens.New()

	_, err := reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 1)
	require.NoError(t, err)

	_, err = reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 2)
	require.Error(t, err)
	assert.Equal(t, common.KindAlreadyListed, common.KindOf(err))
}

func TestListTokenFailsAtomicallyOnInsufficientFee(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(tokenT, ledger.Metadata{Symbol: "TKN", Decimals: 8})

	bal := balances.New()
	bal.CreditLiquid("alice", payment, amt(10))
	reg := tokens.New()

	_, err := reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 1)
	require.Error(t, err)
	assert.False(t, reg.IsListed(tokenT), "a failed listing must not leave a partial record behind")
}

func TestListTokenRejectsDecimalsAboveMax(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(tokenT, ledger.Metadata{Symbol: "TKN", Decimals: 25})

	bal := balances.New()
	bal.CreditLiquid("alice", payment, amt(1000))
	reg := tokens.New()

	_, err := reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 1)
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
	assert.False(t, reg.IsListed(tokenT))

	aliceLiquid, _ := bal.Read("alice", payment)
	assert.True(t, aliceLiquid.Equal(amt(1000)), "a rejected listing must not charge the fee")
}

func TestDelistPreservesBalancesAndAllowsRelisting(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(tokenT, ledger.Metadata{Symbol: "TKN", Decimals: 8})

	bal := balances.New()
	bal.CreditLiquid("alice", payment, amt(1000))
	reg := tokens.New()

	_, err := reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 1)
	require.NoError(t, err)

	_, ok := reg.Delist(tokenT)
	require.True(t, ok)
	assert.False(t, reg.IsListed(tokenT))

	_, err = reg.ListToken(context.Background(), ml, bal, "alice", tokenT, payment, amt(100), 2)
	require.NoError(t, err, "a delisted token may be re-listed, re-charging the fee")
}
