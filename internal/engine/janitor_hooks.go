package engine

import (
	"github.com/rs/zerolog/log"

	"beacon/internal/book"
	"beacon/internal/common"
	"beacon/internal/tokens"
)

// SweepExpiredOrders implements janitor.Sweeper (spec §4.G): cancel every
// resting order older than cutoffNs, across every book, up to limit total,
// unlocking each one's reserve exactly as close_order would. Every touched
// book is re-verified the same way close_order verifies its own mutation
// (spec §"Janitor sweep" is one of the listed invariant-check triggers) —
// a violation is logged for reconciliation rather than rolled back, since
// the orders it swept are already gone and there is nothing left to undo.
func (e *Engine) SweepExpiredOrders(cutoffNs uint64, limit int) int {
	swept := 0
	e.exec(func() {
		for token, bk := range e.books {
			if swept >= limit {
				return
			}
			rec, _ := e.registry.Get(token)
			if !e.sweepBookOrders(bk, rec, cutoffNs, limit, &swept) {
				continue
			}
			if err := e.verifyBook(bk, token, rec); err != nil {
				log.Error().Err(err).Str("token", token.String()).Msg("invariant violation after janitor order sweep")
			}
		}
	})
	return swept
}

// sweepBookOrders cancels one book's orders older than cutoffNs, stopping
// once swept reaches limit, and reports whether it touched anything.
func (e *Engine) sweepBookOrders(bk *book.Book, rec *tokens.Record, cutoffNs uint64, limit int, swept *int) bool {
	touched := false
	for _, side := range []common.Side{common.Buy, common.Sell} {
		for _, o := range bk.Orders(side) {
			if *swept >= limit {
				return touched
			}
			if o.TimestampNs >= cutoffNs {
				continue
			}
			key := common.Key{Side: side, Price: o.Price, TimestampNs: o.TimestampNs, Owner: o.Owner}
			order, found := bk.Cancel(key)
			if !found {
				continue
			}
			if err := e.unlockOrder(order, rec); err != nil {
				continue
			}
			*swept++
			touched = true
		}
	}
	return touched
}

// SweepExpiredTrades implements janitor.Sweeper: drop archived trades older
// than cutoffNs, up to limit total, freeing the in-memory fill history
// executed_orders() no longer needs to serve (spec §4.G). Pruning history
// never changes a book or a balance, but every mutator still re-verifies
// (spec §"Janitor sweep") so a regression here is caught the same way.
func (e *Engine) SweepExpiredTrades(cutoffNs uint64, limit int) int {
	dropped := 0
	e.exec(func() {
		for token, trades := range e.archive {
			if dropped >= limit {
				return
			}
			kept := trades[:0]
			touched := false
			for _, t := range trades {
				if t.TimestampNs < cutoffNs && dropped < limit {
					dropped++
					touched = true
					continue
				}
				kept = append(kept, t)
			}
			e.archive[token] = kept
			if touched {
				if err := e.verifyToken(token); err != nil {
					log.Error().Err(err).Str("token", token.String()).Msg("invariant violation after janitor trade sweep")
				}
			}
		}
	})
	return dropped
}

// SweepDelistableTokens implements janitor.Sweeper: delist any token whose
// book is empty and that has seen no activity since cutoffNs, up to limit
// total (spec §4.F/§4.G). Balances are left untouched, so a future
// list_token call can re-list the same token without losing custody.
func (e *Engine) SweepDelistableTokens(cutoffNs uint64, limit int) int {
	delisted := 0
	e.exec(func() {
		for _, rec := range e.registry.All() {
			if delisted >= limit {
				return
			}
			id := rec.ID
			if rec.LastActivityNs >= cutoffNs {
				continue
			}
			bk, ok := e.bookFor(id)
			if !ok || !bk.IsEmpty() {
				continue
			}
			if _, ok := e.registry.Delist(id); ok {
				if err := e.verifyBook(bk, id, rec); err != nil {
					log.Error().Err(err).Str("token", id.String()).Msg("invariant violation after janitor token delist")
				}
				delete(e.books, id)
				delisted++
			}
		}
	})
	return delisted
}
