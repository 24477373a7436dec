// Package ledger defines the narrow boundary BEACON uses to talk to an
// external fungible-token ledger (spec §4.A / §1's "external collaborators,
// consumed only through narrow interfaces"). Nothing in this package owns
// engine state; it is a thin request/response client.
package ledger

import (
	"context"
	"errors"

	"beacon/internal/common"
)

// Errors a Client call may surface. The engine's Custody component (§4.E)
// treats ErrTransport and the ledger-level errors identically: any failure
// here rolls back the local half of a deposit/withdraw.
var (
	ErrTransport         = errors.New("ledger: transport error")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBadRecipient      = errors.New("ledger: bad recipient")
	ErrRateLimited       = errors.New("ledger: rate limited")
	ErrDuplicate         = errors.New("ledger: duplicate transfer")
	ErrUnknownToken      = errors.New("ledger: unknown token")
)

// SubAccount is the per-caller subaccount BEACON reserves on each external
// ledger (spec §4.E step 1).
type SubAccount [32]byte

// Main is the zero-value SubAccount conventionally passed as TransferFrom's
// destination to mean "the contract's own pooled account" — a reference
// ledger may track that as a single per-token balance and ignore the value
// entirely, as MemoryLedger does.
var Main SubAccount

// Metadata is what list_token (spec §4.F) fetches about a newly listed
// token.
type Metadata struct {
	Symbol      string
	Decimals    uint32
	TransferFee common.Amount
	Logo        string
}

// Client is the full surface BEACON needs from one external ledger. Each
// method may block (it crosses the system boundary — spec §5's only
// suspension point) and may fail with either a transport error or a
// ledger-level business error.
type Client interface {
	BalanceOf(ctx context.Context, token common.TokenID, sub SubAccount) (common.Amount, error)
	Transfer(ctx context.Context, token common.TokenID, to SubAccount, amount, fee common.Amount) error
	TransferFrom(ctx context.Context, token common.TokenID, from, to SubAccount, amount common.Amount) error
	Metadata(ctx context.Context, token common.TokenID) (Metadata, error)
}

// SubaccountFor derives the deterministic per-caller subaccount spec §4.E
// calls subaccount_for. It is a BEACON-internal convention (the real
// ledger's own subaccount scheme is out of scope per §1), so it only has
// to be total and collision-free across (token, owner) pairs.
func SubaccountFor(token common.TokenID, owner string) SubAccount {
	return subaccountFor(token, owner)
}
