// Package invariants implements Invariants (spec §4.H): the post-mutation
// checks every externally-initiated operation must pass before its effects
// are allowed to stick. A failure here means the caller rolls back to a
// pre-mutation snapshot — this package only reports, it never mutates.
package invariants

import (
	cosmoserrors "cosmossdk.io/errors"

	"beacon/internal/balances"
	"beacon/internal/book"
	"beacon/internal/common"
)

// Violation is the codespace used to wrap every invariant failure, grounded
// in the teacher's use of a distinct error type per failure class.
var violation = cosmoserrors.Register("beacon", 1, "invariant violation")

func fail(format string, args ...any) error {
	return cosmoserrors.Wrapf(violation, format, args...)
}

// Verify checks every invariant that concerns a single token's book and
// balances: conservation for every token touched by the mutation (at
// minimum the book's own token and the payment token), per-side lock
// sufficiency for every resting order, and absence of negative fields.
// custodied maps each checked token to the matcher's own running total of
// in-contract balance for it (spec §4.H's "custodied(t)").
func Verify(bk *book.Book, bal *balances.Ledger, token, paymentToken common.TokenID, base common.Amount, custodied map[common.TokenID]common.Amount) error {
	for t, amount := range custodied {
		if err := checkConservation(bal, t, amount); err != nil {
			return err
		}
	}
	if err := checkSellLocks(bk, bal, token); err != nil {
		return err
	}
	if err := checkBuyLocks(bk, bal, paymentToken, base); err != nil {
		return err
	}
	if err := checkNoNegatives(bk); err != nil {
		return err
	}
	return nil
}

// checkConservation asserts sum_u(liquid+locked) == custodied(t). The fee
// account is an ordinary balances row, so its liquid balance is already
// folded into TotalOf and needs no separate term.
func checkConservation(bal *balances.Ledger, token common.TokenID, custodied common.Amount) error {
	total := bal.TotalOf(token)
	if !total.Equal(custodied) {
		return fail("token %s: balances total %s != custodied %s", token, total, custodied)
	}
	return nil
}

// checkSellLocks asserts every resting Sell order is backed by at least as
// much locked token as it still has remaining.
func checkSellLocks(bk *book.Book, bal *balances.Ledger, token common.TokenID) error {
	for _, o := range bk.Orders(common.Sell) {
		_, locked := bal.Read(o.Owner, token)
		if locked.LT(o.AmountRemaining) {
			return fail("sell order %s: locked %s < remaining %s", o.ID, locked, o.AmountRemaining)
		}
	}
	return nil
}

// checkBuyLocks asserts every resting Buy order is backed by enough locked
// payment token to cover its remaining amount at its own price.
func checkBuyLocks(bk *book.Book, bal *balances.Ledger, paymentToken common.TokenID, base common.Amount) error {
	for _, o := range bk.Orders(common.Buy) {
		required := common.CeilDiv(o.AmountRemaining.Mul(o.Price), base)
		_, locked := bal.Read(o.Owner, paymentToken)
		if locked.LT(required) {
			return fail("buy order %s: locked %s < required %s", o.ID, locked, required)
		}
	}
	return nil
}

// checkNoNegatives asserts no resting order carries a non-positive price or
// a negative remaining amount. Amount itself cannot go negative without a
// bug upstream (every subtraction goes through common.SubAmount), so this
// is a defensive backstop, not the primary enforcement mechanism.
func checkNoNegatives(bk *book.Book) error {
	for _, side := range []common.Side{common.Buy, common.Sell} {
		for _, o := range bk.Orders(side) {
			if o.AmountRemaining.IsNegative() {
				return fail("order %s: negative remaining %s", o.ID, o.AmountRemaining)
			}
			if !o.Price.IsPositive() {
				return fail("order %s: resting order has non-positive price %s", o.ID, o.Price)
			}
		}
	}
	return nil
}
