package engine

import (
	"context"

	"beacon/internal/balances"
	"beacon/internal/book"
	"beacon/internal/common"
	"beacon/internal/invariants"
	"beacon/internal/matcher"
	"beacon/internal/tokens"
)

// custodiedSnapshot builds the per-token conservation baseline Invariants
// needs (spec §4.H): the traded token and the payment token, at minimum.
func (e *Engine) custodiedSnapshot(extra ...common.TokenID) map[common.TokenID]common.Amount {
	out := map[common.TokenID]common.Amount{
		e.paymentToken: e.custody.Custodied(e.paymentToken),
	}
	for _, t := range extra {
		out[t] = e.custody.Custodied(t)
	}
	return out
}

// appendArchive appends fresh fills to a token's archive, trimming the
// front once it exceeds LogRingSize (spec §6 "LOG_RING: max in-memory log
// entries") so a heavily-traded token's fill history cannot grow without
// bound between Janitor sweeps.
func (e *Engine) appendArchive(existing []common.Trade, fresh []common.Trade) []common.Trade {
	out := append(existing, fresh...)
	if limit := e.cfg.LogRingSize; limit > 0 && len(out) > limit {
		out = append([]common.Trade(nil), out[len(out)-limit:]...)
	}
	return out
}

// ListToken implements list_token (spec §6/§4.F).
func (e *Engine) ListToken(ctx context.Context, caller string, token common.TokenID) error {
	if !e.paymentTokenSet {
		return common.NewError(common.KindValidation, "payment token is not configured")
	}
	var outerErr error
	e.exec(func() {
		_, err := e.registry.ListToken(ctx, e.client, e.balances, caller, token, e.paymentToken, e.cfg.ListingPricePayment, e.clock())
		if err != nil {
			outerErr = err
			return
		}
		e.books[token] = book.New(token)
	})
	return outerErr
}

// DepositLiquidity implements deposit_liquidity (spec §6/§4.E).
func (e *Engine) DepositLiquidity(ctx context.Context, caller string, token common.TokenID) error {
	if !e.registry.IsListed(token) && token != e.paymentToken {
		return common.WrapError(common.KindNotListed, common.ErrUnknownToken)
	}
	fee := e.transferFee(token)

	var outerErr error
	e.exec(func() {
		_, err := e.custody.DepositLiquidity(ctx, caller, token, fee)
		if err != nil {
			outerErr = err
			return
		}
		e.registry.Touch(token, e.clock())
		if err := e.verifyToken(token); err != nil {
			// The credit stands (no crash, no rollback); the violation is returned
			// to the caller. Nothing records the token for later reconciliation.
			outerErr = common.WrapError(common.KindInvariantViolation, err)
		}
	})
	return outerErr
}

// Withdraw implements withdraw (spec §6/§4.E).
func (e *Engine) Withdraw(ctx context.Context, caller string, token common.TokenID) (common.Amount, error) {
	fee := e.transferFee(token)

	var amount common.Amount
	var outerErr error
	e.exec(func() {
		paid, err := e.custody.Withdraw(ctx, caller, token, fee)
		if err != nil {
			outerErr = err
			return
		}
		if err := e.verifyToken(token); err != nil {
			outerErr = common.WrapError(common.KindInvariantViolation, err)
			return
		}
		amount = paid
	})
	return amount, outerErr
}

func (e *Engine) transferFee(token common.TokenID) common.Amount {
	if rec, ok := e.registry.Get(token); ok {
		return rec.TransferFee
	}
	return common.ZeroAmount()
}

// Trade implements trade (spec §6/§4.D).
func (e *Engine) Trade(caller string, token common.TokenID, amount, price common.Amount, side common.Side) (matcher.Outcome, error) {
	if !e.paymentTokenSet {
		return matcher.Outcome{}, common.NewError(common.KindValidation, "payment token is not configured")
	}

	var outcome matcher.Outcome
	var outerErr error
	e.exec(func() {
		rec, ok := e.registry.Get(token)
		if !ok {
			outerErr = common.WrapError(common.KindNotListed, common.ErrUnknownToken)
			return
		}
		bk, _ := e.bookFor(token)

		orderType := common.LimitOrder
		if price.IsZero() {
			orderType = common.MarketOrder
		}

		out, trades, err := matcher.Trade(matcher.Request{
			Now:          e.clock(),
			Caller:       caller,
			Book:         bk,
			Balances:     e.balances,
			Token:        token,
			PaymentToken: e.paymentToken,
			Base:         rec.Base(),
			FeeBps:       e.cfg.FeeBps,
			Custodied:    e.custodiedSnapshot(token),
			Side:         side,
			OrderType:    orderType,
			Price:        price,
			Amount:       amount,
		})
		if err != nil {
			outerErr = err
			return
		}

		e.registry.Touch(token, e.clock())
		e.archive[token] = e.appendArchive(e.archive[token], trades)
		for _, tr := range trades {
			e.recordTrade(token, tr.TimestampNs, tr.Amount)
		}
		if len(trades) > 0 {
			e.lastTrade[token] = trades[len(trades)-1]
		}
		outcome = out
	})
	return outcome, outerErr
}

// CloseOrder implements close_order (spec §6): idempotent cancellation of
// one resting order, unlocking exactly what that order had reserved.
func (e *Engine) CloseOrder(caller string, token common.TokenID, side common.Side, amount, price common.Amount, timestampNs uint64) error {
	var outerErr error
	e.exec(func() {
		bk, ok := e.bookFor(token)
		if !ok {
			// No book ever existed for this token, so no order could have:
			// distinct from cancelling an order that once existed and was
			// already closed, which idempotence (spec §5) requires be silent.
			outerErr = common.WrapError(common.KindNotListed, common.ErrOrderNotFound)
			return
		}
		rec, _ := e.registry.Get(token)

		key := common.Key{Side: side, Price: price, TimestampNs: timestampNs, Owner: caller}
		order, found := bk.Cancel(key)
		if !found {
			return // already cancelled (or never posted with this exact key): a silent no-op
		}

		if err := e.unlockOrder(order, rec); err != nil {
			outerErr = common.WrapError(common.KindLedgerError, err)
			return
		}
		if err := e.verifyBook(bk, token, rec); err != nil {
			outerErr = common.WrapError(common.KindInvariantViolation, err)
		}
	})
	return outerErr
}

// CloseAllOrders implements close_all_orders (spec §6): cancel every
// resting order the caller owns, across every listed token.
func (e *Engine) CloseAllOrders(caller string) error {
	var outerErr error
	e.exec(func() {
		for token, bk := range e.books {
			rec, _ := e.registry.Get(token)
			for _, side := range []common.Side{common.Buy, common.Sell} {
				for _, o := range bk.Orders(side) {
					if o.Owner != caller {
						continue
					}
					key := common.Key{Side: side, Price: o.Price, TimestampNs: o.TimestampNs, Owner: caller}
					order, found := bk.Cancel(key)
					if !found {
						continue
					}
					if err := e.unlockOrder(order, rec); err != nil {
						outerErr = common.WrapError(common.KindLedgerError, err)
						return
					}
				}
			}
			if err := e.verifyBook(bk, token, rec); err != nil {
				outerErr = common.WrapError(common.KindInvariantViolation, err)
				return
			}
		}
	})
	return outerErr
}

func (e *Engine) unlockOrder(order *common.Order, rec *tokens.Record) error {
	if order.Side == common.Sell {
		return e.balances.Unlock(order.Owner, order.Token, order.AmountRemaining)
	}
	base := common.Base(0)
	if rec != nil {
		base = rec.Base()
	}
	required := common.CeilDiv(order.AmountRemaining.Mul(order.Price), base)
	return e.balances.Unlock(order.Owner, e.paymentToken, required)
}

func (e *Engine) verifyToken(token common.TokenID) error {
	bk, ok := e.bookFor(token)
	if !ok {
		bk = book.New(token)
	}
	rec, _ := e.registry.Get(token)
	return e.verifyBook(bk, token, rec)
}

func (e *Engine) verifyBook(bk *book.Book, token common.TokenID, rec *tokens.Record) error {
	base := common.Base(0)
	if rec != nil {
		base = rec.Base()
	}
	return invariants.Verify(bk, e.balances, token, e.paymentToken, base, e.custodiedSnapshot(token))
}

// Orders implements orders (spec §6): a read-only snapshot of one side of
// one token's book.
func (e *Engine) Orders(token common.TokenID, side common.Side) []common.Order {
	var out []common.Order
	e.exec(func() {
		bk, ok := e.bookFor(token)
		if !ok {
			return
		}
		for _, o := range bk.Orders(side) {
			out = append(out, *o)
		}
	})
	return out
}

// ExecutedOrders implements executed_orders (spec §6): the archived fill
// history for one token, most recent first.
func (e *Engine) ExecutedOrders(token common.TokenID) []common.Trade {
	var out []common.Trade
	e.exec(func() {
		trades := e.archive[token]
		out = make([]common.Trade, len(trades))
		for i, t := range trades {
			out[len(trades)-1-i] = t
		}
	})
	return out
}

// Prices implements prices (spec §6): every listed token's last trade.
func (e *Engine) Prices() map[common.TokenID]common.Trade {
	out := make(map[common.TokenID]common.Trade)
	e.exec(func() {
		for token, trade := range e.lastTrade {
			out[token] = trade
		}
	})
	return out
}

// Tokens implements tokens (spec §6): metadata for every listed token.
func (e *Engine) Tokens() map[common.TokenID]tokens.Record {
	out := make(map[common.TokenID]tokens.Record)
	e.exec(func() {
		for _, rec := range e.registry.All() {
			out[rec.ID] = *rec
		}
	})
	return out
}

// TokenBalances implements token_balances (spec §6): the caller's
// (liquid, locked) pair for every listed token, including the payment
// token.
func (e *Engine) TokenBalances(caller string) map[common.TokenID]balances.Balance {
	out := make(map[common.TokenID]balances.Balance)
	e.exec(func() {
		tokensSeen := make(map[common.TokenID]struct{})
		for _, rec := range e.registry.All() {
			tokensSeen[rec.ID] = struct{}{}
		}
		if e.paymentTokenSet {
			tokensSeen[e.paymentToken] = struct{}{}
		}
		for token := range tokensSeen {
			liquid, locked := e.balances.Read(caller, token)
			out[token] = balances.Balance{Liquid: liquid, Locked: locked}
		}
	})
	return out
}

// SetPaymentToken implements the admin set_payment_token one-shot (spec
// §6).
func (e *Engine) SetPaymentToken(token common.TokenID) error {
	var outerErr error
	e.exec(func() {
		if e.paymentTokenSet {
			outerErr = common.NewError(common.KindValidation, "payment token is already configured")
			return
		}
		e.paymentToken = token
		e.paymentTokenSet = true
	})
	return outerErr
}

// SetRevenueAccount implements the admin set_revenue_account one-shot
// (spec §6).
func (e *Engine) SetRevenueAccount(account string) error {
	var outerErr error
	e.exec(func() {
		if e.revenueAccount != "" {
			outerErr = common.NewError(common.KindValidation, "revenue account is already configured")
			return
		}
		e.revenueAccount = account
	})
	return outerErr
}
