// Package tokens implements Tokens (spec §4.F): the registry of listed
// TokenRecords. Listing and delisting here only touch the registry itself
// — the corresponding Book lifecycle (spec §4.C) is the caller's (internal
// /engine's) responsibility, since a Book depends on nothing in this
// package and this package depends on nothing in book.
package tokens

import (
	"context"

	"beacon/internal/balances"
	"beacon/internal/common"
	"beacon/internal/ledger"
)

// maxDecimals is the TokenRecord invariant: a token's smallest unit can
// never be divided past what a uint32 exponent of 10 can represent
// without losing precision in the amount arithmetic that depends on it.
const maxDecimals = 24

// Record is the TokenRecord of spec §3.
type Record struct {
	ID             common.TokenID
	Symbol         string
	Decimals       uint32
	TransferFee    common.Amount
	Logo           string
	ListedAtNs     uint64
	LastActivityNs uint64
}

// Base returns 10^Decimals, the divisor every price in this token is
// denominated against (spec §9 "per-BASE" decision).
func (r Record) Base() common.Amount {
	return common.Base(r.Decimals)
}

// Registry holds every currently listed token.
type Registry struct {
	records map[common.TokenID]*Record
}

func New() *Registry {
	return &Registry{records: make(map[common.TokenID]*Record)}
}

func (r *Registry) Get(token common.TokenID) (*Record, bool) {
	rec, ok := r.records[token]
	return rec, ok
}

func (r *Registry) IsListed(token common.TokenID) bool {
	_, ok := r.records[token]
	return ok
}

// All returns every listed record, in no particular order.
func (r *Registry) All() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Touch updates last_activity_ns, called by the engine after every
// trade() and every deposit.
func (r *Registry) Touch(token common.TokenID, now uint64) {
	if rec, ok := r.records[token]; ok {
		rec.LastActivityNs = now
	}
}

// ListToken implements spec §4.F's list_token: fetch metadata from the
// token's own ledger, charge the listing fee, and insert the record — all
// or nothing, exactly as the Failures paragraph requires.
func (r *Registry) ListToken(ctx context.Context, client ledger.Client, bal *balances.Ledger, caller string, id, paymentToken common.TokenID, listingPrice common.Amount, now uint64) (*Record, error) {
	if r.IsListed(id) {
		return nil, common.WrapError(common.KindAlreadyListed, common.ErrAlreadyListed)
	}

	meta, err := client.Metadata(ctx, id)
	if err != nil {
		return nil, common.WrapError(common.KindLedgerError, err)
	}
	if meta.Decimals > maxDecimals {
		return nil, common.NewError(common.KindValidation, "token decimals exceeds maximum of 24")
	}

	if err := bal.DebitLiquid(caller, paymentToken, listingPrice); err != nil {
		return nil, common.WrapError(common.KindInsufficientLiquidity, err)
	}
	bal.CreditLiquid(common.FeeAccount, paymentToken, listingPrice)

	rec := &Record{
		ID:             id,
		Symbol:         meta.Symbol,
		Decimals:       meta.Decimals,
		TransferFee:    meta.TransferFee,
		Logo:           meta.Logo,
		ListedAtNs:     now,
		LastActivityNs: now,
	}
	r.records[id] = rec
	return rec, nil
}

// Delist implements the Janitor-driven half of spec §4.F/§4.G: the record
// is removed, but balances are untouched, so the token can be relisted
// later (re-charging the fee) without losing anyone's custody.
func (r *Registry) Delist(token common.TokenID) (*Record, bool) {
	rec, ok := r.records[token]
	if !ok {
		return nil, false
	}
	delete(r.records, token)
	return rec, true
}
