// Package matcher implements the Matcher (spec §4.D): the single atomic
// trade() state transition that walks the opposite side of one token's
// book, settles fills through VirtualBalances, and either posts a residual
// resting order or unlocks surplus. Every mutation below happens between
// entering Trade and returning it — nothing here ever suspends, matching
// the single-threaded cooperative model of spec §5.
package matcher

import (
	"fmt"

	"github.com/google/uuid"

	"beacon/internal/balances"
	"beacon/internal/book"
	"beacon/internal/common"
	"beacon/internal/invariants"
)

// Outcome is the spec §4.D TradeOutcome: either the taker was fully/
// partially filled and is done, or a residual limit order now rests in
// the book.
type Outcome struct {
	Filled       common.Amount
	OrderCreated bool
}

// Request bundles one trade() call's arguments together with the
// per-token context the Matcher needs but does not own (the book, the
// balances ledger, and the token's own BASE and fee rate).
type Request struct {
	Now          uint64
	Caller       string
	Book         *book.Book
	Balances     *balances.Ledger
	Token        common.TokenID
	PaymentToken common.TokenID
	Base         common.Amount
	FeeBps       uint32
	// Custodied maps every token whose conservation must hold after this
	// trade (at minimum the traded token and the payment token) to the
	// matcher's running ledger of in-contract balance for it.
	Custodied map[common.TokenID]common.Amount
	Side      common.Side
	OrderType    common.OrderType
	Price        common.Amount // 0 for a market order
	Amount       common.Amount
}

// Trade runs the full algorithm in spec.md §4.D and returns the fills it
// produced (for archiving by the caller) alongside the outcome. On any
// failure — validation, insufficient liquidity, or a post-trade invariant
// violation — the book and balances are left exactly as they were found.
func Trade(req Request) (Outcome, []common.Trade, error) {
	if !req.Amount.IsPositive() {
		return Outcome{}, nil, common.WrapError(common.KindValidation, common.ErrZeroAmount)
	}
	if req.OrderType == common.LimitOrder && !req.Price.IsPositive() {
		return Outcome{}, nil, common.NewError(common.KindValidation, "limit order price must be positive")
	}

	bookSnap := req.Book.Snapshot()
	balSnap := req.Balances.Snapshot()
	rollback := func() {
		req.Book.Restore(bookSnap)
		req.Balances.Restore(balSnap)
	}

	lockAmount, lockToken, err := computeRequiredLock(req)
	if err != nil {
		return Outcome{}, nil, err
	}
	if err := req.Balances.Lock(req.Caller, lockToken, lockAmount); err != nil {
		return Outcome{}, nil, common.WrapError(common.KindInsufficientLiquidity, err)
	}

	remaining := req.Amount
	debited := common.ZeroAmount()
	var trades []common.Trade

	opposite := req.Side.Opposite()
	crosses := func(levelPrice common.Amount) bool {
		if req.OrderType == common.MarketOrder {
			return true
		}
		if req.Side == common.Buy {
			return levelPrice.LTE(req.Price)
		}
		return levelPrice.GTE(req.Price)
	}

	w := req.Book.NewWalker(opposite, req.Caller, crosses)
	for remaining.IsPositive() {
		maker, ok := w.Next()
		if !ok {
			break
		}

		fill := remaining
		if maker.AmountRemaining.LT(fill) {
			fill = maker.AmountRemaining
		}

		gross := common.GrossPayment(fill, maker.Price, req.Base)
		if gross.IsZero() {
			w.Close()
			rollback()
			return Outcome{}, nil, common.NewError(common.KindValidation, "%v: fill of %s at price %s yields zero payment", common.ErrZeroPaymentFill, fill, maker.Price)
		}
		takerFee := common.FeeOnGross(gross, req.FeeBps)
		makerFee := common.FeeOnGross(gross, req.FeeBps)

		if err := settleFill(req, maker.Owner, fill, gross, takerFee, makerFee); err != nil {
			w.Close()
			rollback()
			return Outcome{}, nil, common.WrapError(common.KindLedgerError, err)
		}

		if req.Side == common.Buy {
			debited = common.AddAmount(debited, common.AddAmount(gross, takerFee))
		}

		maker.AmountRemaining = maker.AmountRemaining.Sub(fill)
		remaining = remaining.Sub(fill)

		if req.Side == common.Sell {
			// The Buy maker's lock was sized with ceil, the fill took the floored
			// gross: release the rounding dust so the lock stays exact.
			before := common.CeilDiv(common.AddAmount(maker.AmountRemaining, fill).Mul(maker.Price), req.Base)
			after := common.CeilDiv(maker.AmountRemaining.Mul(maker.Price), req.Base)
			if dust := before.Sub(gross).Sub(after); dust.IsPositive() {
				if err := req.Balances.Unlock(maker.Owner, req.PaymentToken, dust); err != nil {
					w.Close()
					rollback()
					return Outcome{}, nil, common.WrapError(common.KindLedgerError, err)
				}
			}
		}

		trades = append(trades, common.Trade{
			ID:          uuid.New(),
			Token:       req.Token,
			Maker:       maker.Owner,
			Taker:       req.Caller,
			TakerSide:   req.Side,
			Amount:      fill,
			Price:       maker.Price,
			TimestampNs: req.Now,
			TakerFee:    takerFee,
			MakerFee:    makerFee,
		})
	}
	w.Close()

	outcome := Outcome{Filled: req.Amount.Sub(remaining)}
	if req.OrderType == common.LimitOrder && remaining.IsPositive() {
		req.Book.Insert(&common.Order{
			ID:              uuid.New(),
			Owner:           req.Caller,
			Token:           req.Token,
			Side:            req.Side,
			OrderType:       common.LimitOrder,
			Price:           req.Price,
			AmountRemaining: remaining,
			TotalAmount:     req.Amount,
			TimestampNs:     req.Now,
			FeeBpsSnapshot:  req.FeeBps,
		})
		outcome.OrderCreated = true

		// Shave the residual lock down to exactly what the resting order
		// needs (spec §4.H's lock-sufficiency invariant, at equality rather
		// than with slack): a Buy's fee-reserve padding no longer has a
		// fill left to cover, so release it now rather than leaving it
		// stranded until the order is later cancelled.
		if req.Side == common.Buy {
			exact := common.CeilDiv(remaining.Mul(req.Price), req.Base)
			if surplus := lockAmount.Sub(debited).Sub(exact); surplus.IsPositive() {
				if err := req.Balances.Unlock(req.Caller, lockToken, surplus); err != nil {
					rollback()
					return Outcome{}, nil, common.WrapError(common.KindLedgerError, err)
				}
			}
		}
	} else {
		if err := unlockSurplus(req, lockAmount, lockToken, debited, remaining); err != nil {
			rollback()
			return Outcome{}, nil, common.WrapError(common.KindLedgerError, err)
		}
	}

	if err := invariants.Verify(req.Book, req.Balances, req.Token, req.PaymentToken, req.Base, req.Custodied); err != nil {
		rollback()
		return Outcome{}, nil, common.WrapError(common.KindInvariantViolation, err)
	}

	return outcome, trades, nil
}

// computeRequiredLock implements step 1 of spec §4.D. Buy orders lock
// payment token (plus a fee reserve sized to cover the taker's own fee on
// every fill, since that fee is paid out of the taker's locked payment
// balance rather than out of token received); Sell orders lock exactly
// amount of the traded token, since a seller's fee is deducted from the
// payment they receive and never needs a pre-lock.
func computeRequiredLock(req Request) (common.Amount, common.TokenID, error) {
	if req.Side == common.Sell {
		return req.Amount, req.Token, nil
	}

	if req.OrderType == common.MarketOrder {
		liquid, _ := req.Balances.Read(req.Caller, req.PaymentToken)
		if !liquid.IsPositive() {
			return common.ZeroAmount(), req.PaymentToken, common.WrapError(common.KindInsufficientLiquidity, common.ErrInsufficientLiquidity)
		}
		return liquid, req.PaymentToken, nil
	}

	requiredPayment := common.CeilDiv(req.Amount.Mul(req.Price), req.Base)
	feeReserve := common.FeeOnGross(requiredPayment, req.FeeBps)
	return common.AddAmount(requiredPayment, feeReserve), req.PaymentToken, nil
}

// settleFill applies one fill's balance movements (spec §4.D step 2). The
// side holding locked payment — the buyer, whichever of maker/taker that
// is — funds both fees out of that lock; the counterparty simply receives
// token for payment or payment for token.
func settleFill(req Request, maker string, fill, gross, takerFee, makerFee common.Amount) error {
	totalFee := common.AddAmount(takerFee, makerFee)

	if req.Side == common.Buy {
		net := gross.Sub(makerFee)
		if err := req.Balances.Settle(req.Caller, maker, req.PaymentToken, net); err != nil {
			return fmt.Errorf("settle payment to maker: %w", err)
		}
		if err := req.Balances.Settle(req.Caller, common.FeeAccount, req.PaymentToken, totalFee); err != nil {
			return fmt.Errorf("settle fee: %w", err)
		}
		if err := req.Balances.Settle(maker, req.Caller, req.Token, fill); err != nil {
			return fmt.Errorf("settle token to taker: %w", err)
		}
		return nil
	}

	net := gross.Sub(totalFee)
	if err := req.Balances.Settle(maker, req.Caller, req.PaymentToken, net); err != nil {
		return fmt.Errorf("settle payment to taker: %w", err)
	}
	if err := req.Balances.Settle(maker, common.FeeAccount, req.PaymentToken, totalFee); err != nil {
		return fmt.Errorf("settle fee: %w", err)
	}
	if err := req.Balances.Settle(req.Caller, maker, req.Token, fill); err != nil {
		return fmt.Errorf("settle token to maker: %w", err)
	}
	return nil
}

// unlockSurplus returns whatever of the initial lock the trade did not
// consume (spec §4.D step 3's "unlock any surplus"). For a Buy, that is
// whatever of the payment+fee-reserve lock was never debited; for a Sell,
// it is simply the unfilled remainder of the token amount that was locked
// up front.
func unlockSurplus(req Request, lockAmount common.Amount, lockToken common.TokenID, debited, remaining common.Amount) error {
	var leftover common.Amount
	if req.Side == common.Buy {
		leftover = lockAmount.Sub(debited)
	} else {
		leftover = remaining
	}
	if !leftover.IsPositive() {
		return nil
	}
	return req.Balances.Unlock(req.Caller, lockToken, leftover)
}
