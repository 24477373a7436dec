// Package custody implements Custody (spec §4.E): the bridge between a
// user's external ledger balance and their in-contract virtual balance.
// It is the only package that moves funds through a ledger.Client
// (internal/tokens only reads metadata through one), and every call it
// makes is the single suspension point the concurrency model in spec §5
// allows mutating operations to have.
package custody

import (
	"context"
	"fmt"

	"beacon/internal/balances"
	"beacon/internal/common"
	"beacon/internal/ledger"
)

// Service wraps one ledger.Client and the engine's balances.Ledger,
// tracking custodied(t) — the running total of each token's in-contract
// balance — so invariants.Verify can check conservation without a second
// round trip to the ledger on every mutation.
type Service struct {
	client    ledger.Client
	balances  *balances.Ledger
	custodied map[common.TokenID]common.Amount
}

func New(client ledger.Client, bal *balances.Ledger) *Service {
	return &Service{
		client:    client,
		balances:  bal,
		custodied: make(map[common.TokenID]common.Amount),
	}
}

// Custodied returns the running custodied(t) total used by invariant
// checks; a token never deposited reads as zero.
func (s *Service) Custodied(token common.TokenID) common.Amount {
	if v, ok := s.custodied[token]; ok {
		return v
	}
	return common.ZeroAmount()
}

// DepositLiquidity implements spec §4.E's deposit_liquidity: pull whatever
// the caller has parked in their ledger subaccount into the contract's
// main account, then credit it to their virtual liquid balance.
func (s *Service) DepositLiquidity(ctx context.Context, caller string, token common.TokenID, fee common.Amount) (common.Amount, error) {
	sub := ledger.SubaccountFor(token, caller)

	actual, err := s.client.BalanceOf(ctx, token, sub)
	if err != nil {
		return common.ZeroAmount(), common.WrapError(common.KindLedgerError, fmt.Errorf("balance_of: %w", err))
	}

	usable := common.ZeroAmount()
	if actual.GT(fee) {
		usable = actual.Sub(fee)
	}
	if !usable.IsPositive() {
		// Duplicate/Idempotent class (spec §7): depositing dust is a no-op, not an error.
		return common.ZeroAmount(), nil
	}

	if err := s.client.TransferFrom(ctx, token, sub, ledger.Main, usable); err != nil {
		return common.ZeroAmount(), common.WrapError(common.KindLedgerError, fmt.Errorf("transfer_from: %w", err))
	}

	s.balances.CreditLiquid(caller, token, usable)
	s.custodied[token] = common.AddAmount(s.Custodied(token), usable)
	return usable, nil
}

// Withdraw implements spec §4.E's withdraw: debit first so no interleaved
// trade can observe or spend the amount in flight, then attempt the
// external transfer; on failure the debit is reversed in full.
func (s *Service) Withdraw(ctx context.Context, caller string, token common.TokenID, fee common.Amount) (common.Amount, error) {
	liquid, _ := s.balances.Read(caller, token)
	if liquid.LTE(fee) {
		return common.ZeroAmount(), common.NewError(common.KindValidation, "withdrawable balance %s does not exceed the ledger transfer fee %s", liquid, fee)
	}

	if err := s.balances.DebitLiquid(caller, token, liquid); err != nil {
		return common.ZeroAmount(), common.WrapError(common.KindInsufficientLiquidity, err)
	}

	payout := liquid.Sub(fee)
	sub := ledger.SubaccountFor(token, caller)
	if err := s.client.Transfer(ctx, token, sub, payout, fee); err != nil {
		s.balances.CreditLiquid(caller, token, liquid) // undo the debit; no partial withdraw is ever observable
		return common.ZeroAmount(), common.WrapError(common.KindLedgerError, fmt.Errorf("transfer: %w", err))
	}

	s.custodied[token], _ = common.SubAmount(s.Custodied(token), liquid)
	return payout, nil
}
