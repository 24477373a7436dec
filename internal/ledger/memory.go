package ledger

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"beacon/internal/common"
)

// MemoryLedger is the reference Client implementation used by tests and
// the beacond demo binary. It stands in for the real, out-of-scope token
// ledger (spec §1): balances live in a plain map, guarded by a mutex since
// — unlike the engine itself — nothing guarantees single-threaded access
// to a ledger from the outside.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.TokenID]map[SubAccount]common.Amount
	meta     map[common.TokenID]Metadata
	main     map[common.TokenID]common.Amount // the contract's own main account, credited by Transfer
	outbox   map[common.TokenID]map[SubAccount]common.Amount
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[common.TokenID]map[SubAccount]common.Amount),
		meta:     make(map[common.TokenID]Metadata),
		main:     make(map[common.TokenID]common.Amount),
		outbox:   make(map[common.TokenID]map[SubAccount]common.Amount),
	}
}

// RegisterToken seeds metadata for a token id, as if it already existed on
// the external ledger — list_token (§4.F) reads this via Metadata.
func (m *MemoryLedger) RegisterToken(token common.TokenID, meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[token] = meta
	if _, ok := m.balances[token]; !ok {
		m.balances[token] = make(map[SubAccount]common.Amount)
	}
}

// Mint credits a subaccount directly, used by tests to simulate a user
// having already sent tokens to their deposit subaccount.
func (m *MemoryLedger) Mint(token common.TokenID, sub SubAccount, amount common.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balances[token]
	if bal == nil {
		bal = make(map[SubAccount]common.Amount)
		m.balances[token] = bal
	}
	bal[sub] = common.AddAmount(bal[sub], amount)
}

func (m *MemoryLedger) BalanceOf(_ context.Context, token common.TokenID, sub SubAccount) (common.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[token]
	if !ok {
		return common.ZeroAmount(), ErrUnknownToken
	}
	amt, ok := bal[sub]
	if !ok {
		return common.ZeroAmount(), nil
	}
	return amt, nil
}

// Transfer moves amount (plus fee, burned) out of the contract's main
// account to an external destination subaccount. In this reference ledger
// "external" and "main" are both tracked locally so round trips are
// observable in tests.
func (m *MemoryLedger) Transfer(_ context.Context, token common.TokenID, to SubAccount, amount, fee common.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	main := m.main[token]
	total := common.AddAmount(amount, fee)
	if main.LT(total) {
		log.Error().Str("token", token.String()).Str("amount", amount.String()).Msg("ledger: transfer rejected, insufficient main balance")
		return ErrInsufficientFunds
	}
	m.main[token] = main.Sub(total)

	out := m.outbox[token]
	if out == nil {
		out = make(map[SubAccount]common.Amount)
		m.outbox[token] = out
	}
	out[to] = common.AddAmount(out[to], amount)
	return nil
}

// TransferFrom moves amount from a caller's reserved subaccount into the
// contract's main account — the half of deposit_liquidity (§4.E step 4)
// that actually crosses the ledger boundary.
func (m *MemoryLedger) TransferFrom(_ context.Context, token common.TokenID, from, to SubAccount, amount common.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balances[token]
	if bal == nil {
		return ErrUnknownToken
	}
	have := bal[from]
	if have.LT(amount) {
		return ErrInsufficientFunds
	}
	bal[from] = have.Sub(amount)
	m.main[token] = common.AddAmount(m.main[token], amount)
	_ = to // the contract's main account is a single pooled balance per token
	return nil
}

func (m *MemoryLedger) Metadata(_ context.Context, token common.TokenID) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[token]
	if !ok {
		return Metadata{}, ErrUnknownToken
	}
	return meta, nil
}

// Outbound reports what has been sent to sub via Transfer, used by tests
// asserting a withdraw actually reached the caller.
func (m *MemoryLedger) Outbound(token common.TokenID, sub SubAccount) common.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outbox[token][sub]
}
