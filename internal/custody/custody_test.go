package custody_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/balances"
	"beacon/internal/common"
	"beacon/internal/custody"
	"beacon/internal/ledger"
)

var token = common.TokenIDFromBytes([]byte("T"))

func amt(v int64) common.Amount { return common.AmountFromUint64(uint64(v)) }

func TestDepositLiquidityCreditsUsableAmount(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(token, ledger.Metadata{Symbol: "T", Decimals: 8, TransferFee: amt(10)})
	ml.Mint(token, ledger.SubaccountFor(token, "alice"), amt(1000))

	bal := balances.New()
	svc := custody.New(ml, bal)

	credited, err := svc.DepositLiquidity(context.Background(), "alice", token, amt(10))
	require.NoError(t, err)
	assert.True(t, credited.Equal(amt(990)))

	liquid, _ := bal.Read("alice", token)
	assert.True(t, liquid.Equal(amt(990)))
	assert.True(t, svc.Custodied(token).Equal(amt(990)))
}

func TestDepositLiquidityBelowFeeIsNoOp(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(token, ledger.Metadata{Symbol: "T", Decimals: 8, TransferFee: amt(10)})
	ml.Mint(token, ledger.SubaccountFor(token, "alice"), amt(1))

	bal := balances.New()
	svc := custody.New(ml, bal)

	credited, err := svc.DepositLiquidity(context.Background(), "alice", token, amt(10))
	require.NoError(t, err)
	assert.True(t, credited.IsZero())

	liquid, _ := bal.Read("alice", token)
	assert.True(t, liquid.IsZero())
}

func TestWithdrawRoundTripsThroughLedgerFee(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(token, ledger.Metadata{Symbol: "T", Decimals: 8, TransferFee: amt(10)})
	sub := ledger.SubaccountFor(token, "alice")
	ml.Mint(token, sub, amt(1000))

	bal := balances.New()
	svc := custody.New(ml, bal)

	_, err := svc.DepositLiquidity(context.Background(), "alice", token, amt(10))
	require.NoError(t, err)

	payout, err := svc.Withdraw(context.Background(), "alice", token, amt(10))
	require.NoError(t, err)
	assert.True(t, payout.Equal(amt(980)), "990 liquid minus a second 10-unit ledger fee")

	liquid, _ := bal.Read("alice", token)
	assert.True(t, liquid.IsZero())
	assert.True(t, ml.Outbound(token, sub).Equal(amt(980)))
	assert.True(t, svc.Custodied(token).IsZero())
}

type failingTransferLedger struct {
	*ledger.MemoryLedger
}

func (f failingTransferLedger) Transfer(ctx context.Context, token common.TokenID, to ledger.SubAccount, amount, fee common.Amount) error {
	return ledger.ErrTransport
}

func TestWithdrawRecreditsOnTransferFailure(t *testing.T) {
	ml := ledger.NewMemoryLedger()
	ml.RegisterToken(token, ledger.Metadata{Symbol: "T", Decimals: 8, TransferFee: amt(10)})
	ml.Mint(token, ledger.SubaccountFor(token, "alice"), amt(1000))

	bal := balances.New()
	svc := custody.New(failingTransferLedger{ml}, bal)

	_, err := svc.DepositLiquidity(context.Background(), "alice", token, amt(10))
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), "alice", token, amt(10))
	assert.Error(t, err)

	liquid, _ := bal.Read("alice", token)
	assert.True(t, liquid.Equal(amt(990)), "a failed transfer must fully re-credit the debited balance")
}
