package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"beacon/internal/common"
	"beacon/internal/config"
	"beacon/internal/engine"
	"beacon/internal/ledger"
)

func startEngine(t *testing.T) (*engine.Engine, *ledger.MemoryLedger, func()) {
	t.Helper()
	client := ledger.NewMemoryLedger()
	eng := engine.New(config.Default(), client)

	tb := new(tomb.Tomb)
	tb.Go(func() error { return eng.Run(tb) })

	return eng, client, func() {
		tb.Kill(nil)
		_ = tb.Wait()
	}
}

func fundPayment(t *testing.T, eng *engine.Engine, client *ledger.MemoryLedger, paymentToken common.TokenID, caller string, amount uint64) {
	t.Helper()
	client.Mint(paymentToken, ledger.SubaccountFor(paymentToken, caller), common.AmountFromUint64(amount))
	require.NoError(t, eng.DepositLiquidity(context.Background(), caller, paymentToken))
}

func listAndFund(t *testing.T, eng *engine.Engine, client *ledger.MemoryLedger, paymentToken, token common.TokenID, caller string, fund uint64) {
	t.Helper()
	fundPayment(t, eng, client, paymentToken, caller, fund)

	client.RegisterToken(token, ledger.Metadata{Symbol: "TOK", Decimals: 6, TransferFee: common.ZeroAmount()})
	require.NoError(t, eng.ListToken(context.Background(), caller, token))
}

func TestCloseOrderIsIdempotentThroughCommandLoop(t *testing.T) {
	eng, client, stop := startEngine(t)
	defer stop()

	paymentToken := common.TokenIDFromBytes([]byte("PAY"))
	token := common.TokenIDFromBytes([]byte("TOK"))

	require.NoError(t, eng.SetPaymentToken(paymentToken))
	listAndFund(t, eng, client, paymentToken, token, "alice", 1_000_000_000)

	outcome, err := eng.Trade("alice", token, common.AmountFromUint64(100), common.AmountFromUint64(2_000_000), common.Buy)
	require.NoError(t, err)
	assert.True(t, outcome.OrderCreated)
	assert.True(t, outcome.Filled.IsZero())

	resting := eng.Orders(token, common.Buy)
	require.Len(t, resting, 1)
	order := resting[0]

	require.NoError(t, eng.CloseOrder("alice", token, common.Buy, order.AmountRemaining, order.Price, order.TimestampNs))
	assert.Empty(t, eng.Orders(token, common.Buy))

	// Cancelling again is a no-op, not an error (spec §5 close_order idempotence).
	require.NoError(t, eng.CloseOrder("alice", token, common.Buy, order.AmountRemaining, order.Price, order.TimestampNs))
}

func TestTradeFillsAgainstRestingOrderEndToEnd(t *testing.T) {
	eng, client, stop := startEngine(t)
	defer stop()

	paymentToken := common.TokenIDFromBytes([]byte("PAY"))
	token := common.TokenIDFromBytes([]byte("TOK"))

	require.NoError(t, eng.SetPaymentToken(paymentToken))
	listAndFund(t, eng, client, paymentToken, token, "alice", 1_000_000_000)
	fundPayment(t, eng, client, paymentToken, "bob", 2_000_000_000)

	// Alice needs token to sell; mint it into her deposit subaccount and
	// deposit it.
	ctx := context.Background()
	client.Mint(token, ledger.SubaccountFor(token, "alice"), common.AmountFromUint64(1_000_000))
	require.NoError(t, eng.DepositLiquidity(ctx, "alice", token))

	_, err := eng.Trade("alice", token, common.AmountFromUint64(500_000), common.AmountFromUint64(2_000_000), common.Sell)
	require.NoError(t, err)

	outcome, err := eng.Trade("bob", token, common.AmountFromUint64(500_000), common.ZeroAmount(), common.Buy)
	require.NoError(t, err)
	assert.True(t, outcome.Filled.Equal(common.AmountFromUint64(500_000)))
	assert.False(t, outcome.OrderCreated)

	fills := eng.ExecutedOrders(token)
	require.Len(t, fills, 1)
	assert.Equal(t, "alice", fills[0].Maker)
	assert.Equal(t, "bob", fills[0].Taker)

	stats := eng.Data()
	assert.Equal(t, 1, stats.TokensListed)
	assert.EqualValues(t, 1, stats.TradesDay[token])
}

func TestSweepExpiredOrdersUnlocksAndRemovesStaleOrders(t *testing.T) {
	eng, client, stop := startEngine(t)
	defer stop()

	paymentToken := common.TokenIDFromBytes([]byte("PAY"))
	token := common.TokenIDFromBytes([]byte("TOK"))

	require.NoError(t, eng.SetPaymentToken(paymentToken))
	listAndFund(t, eng, client, paymentToken, token, "alice", 1_000_000_000)

	outcome, err := eng.Trade("alice", token, common.AmountFromUint64(100), common.AmountFromUint64(2_000_000), common.Buy)
	require.NoError(t, err)
	require.True(t, outcome.OrderCreated)

	resting := eng.Orders(token, common.Buy)
	require.Len(t, resting, 1)
	order := resting[0]

	before := eng.TokenBalances("alice")[paymentToken]
	require.True(t, before.Locked.IsPositive(), "the resting buy order should still hold its payment-token lock")

	swept := eng.SweepExpiredOrders(order.TimestampNs+1, 10)
	assert.Equal(t, 1, swept)
	assert.Empty(t, eng.Orders(token, common.Buy))

	after := eng.TokenBalances("alice")[paymentToken]
	assert.True(t, after.Locked.IsZero(), "sweeping an expired order must unlock its reserve")

	// Nothing left to sweep the second time around.
	assert.Equal(t, 0, eng.SweepExpiredOrders(order.TimestampNs+1, 10))
}
