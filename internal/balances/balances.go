// Package balances implements VirtualBalances (spec §4.B): the per-(user,
// token) liquid/locked ledger the matcher mutates. The engine's
// single-writer command loop (internal/engine) is what makes this safe
// without per-row locking — the same reasoning the teacher gives for the
// matcher needing no locking primitives.
package balances

import (
	"fmt"

	"beacon/internal/common"
)

// Balance is the {liquid, locked} record spec §3 describes.
type Balance struct {
	Liquid common.Amount
	Locked common.Amount
}

// Key identifies one (owner, token) row.
type Key struct {
	Owner string
	Token common.TokenID
}

// Ledger is the full VirtualBalances store. It carries no lock of its own:
// every access — mutating or read-only — is routed through the engine's
// single command-loop goroutine (internal/engine), the same single-writer
// discipline the teacher gets from its sessionHandler draining one
// channel, so no row or map-shape access here ever races another.
type Ledger struct {
	rows map[Key]*Balance
}

func New() *Ledger {
	return &Ledger{rows: make(map[Key]*Balance)}
}

func (l *Ledger) getOrCreate(owner string, token common.TokenID) *Balance {
	k := Key{Owner: owner, Token: token}
	b, ok := l.rows[k]
	if !ok {
		b = &Balance{Liquid: common.ZeroAmount(), Locked: common.ZeroAmount()}
		l.rows[k] = b
	}
	return b
}

// Read returns (liquid, locked) for (owner, token); a never-deposited row
// reads as (0, 0).
func (l *Ledger) Read(owner string, token common.TokenID) (common.Amount, common.Amount) {
	k := Key{Owner: owner, Token: token}
	b, ok := l.rows[k]
	if !ok {
		return common.ZeroAmount(), common.ZeroAmount()
	}
	return b.Liquid, b.Locked
}

// CreditLiquid increases a user's free balance. Used by deposits and
// fill settlement; it cannot fail.
func (l *Ledger) CreditLiquid(owner string, token common.TokenID, amount common.Amount) {
	b := l.getOrCreate(owner, token)
	b.Liquid = common.AddAmount(b.Liquid, amount)
}

// DebitLiquid decreases a user's free balance, failing if insufficient.
func (l *Ledger) DebitLiquid(owner string, token common.TokenID, amount common.Amount) error {
	b := l.getOrCreate(owner, token)
	rest, err := common.SubAmount(b.Liquid, amount)
	if err != nil {
		return fmt.Errorf("debit %s/%s: %w", owner, token, err)
	}
	b.Liquid = rest
	return nil
}

// Lock moves amount from liquid into locked atomically, failing if the
// liquid balance is insufficient.
func (l *Ledger) Lock(owner string, token common.TokenID, amount common.Amount) error {
	b := l.getOrCreate(owner, token)
	rest, err := common.SubAmount(b.Liquid, amount)
	if err != nil {
		return fmt.Errorf("lock %s/%s: %w", owner, token, err)
	}
	b.Liquid = rest
	b.Locked = common.AddAmount(b.Locked, amount)
	return nil
}

// Unlock reverses Lock.
func (l *Ledger) Unlock(owner string, token common.TokenID, amount common.Amount) error {
	b := l.getOrCreate(owner, token)
	rest, err := common.SubAmount(b.Locked, amount)
	if err != nil {
		return fmt.Errorf("unlock %s/%s: %w", owner, token, err)
	}
	b.Locked = rest
	b.Liquid = common.AddAmount(b.Liquid, amount)
	return nil
}

// Settle moves amount out of fromOwner's locked balance into toOwner's
// liquid balance, used on every fill (spec §4.B).
func (l *Ledger) Settle(fromOwner, toOwner string, token common.TokenID, amount common.Amount) error {
	from := l.getOrCreate(fromOwner, token)
	rest, err := common.SubAmount(from.Locked, amount)
	if err != nil {
		return fmt.Errorf("settle %s->%s/%s: %w", fromOwner, toOwner, token, err)
	}
	from.Locked = rest
	to := l.getOrCreate(toOwner, token)
	to.Liquid = common.AddAmount(to.Liquid, amount)
	return nil
}

// TotalOf sums liquid+locked across every user for one token, the custody
// side of Invariant 1 (spec §4.H / §8).
func (l *Ledger) TotalOf(token common.TokenID) common.Amount {
	total := common.ZeroAmount()
	for k, b := range l.rows {
		if k.Token == token {
			total = common.AddAmount(total, common.AddAmount(b.Liquid, b.Locked))
		}
	}
	return total
}

// Owners returns every distinct owner with a row for token, used by
// invariant checks and queries that must enumerate balances.
func (l *Ledger) Owners(token common.TokenID) []string {
	var owners []string
	for k := range l.rows {
		if k.Token == token {
			owners = append(owners, k.Owner)
		}
	}
	return owners
}

// LockedTotal sums only the locked half of every row for token, used by
// the data() query's payment_token_locked figure.
func (l *Ledger) LockedTotal(token common.TokenID) common.Amount {
	total := common.ZeroAmount()
	for k, b := range l.rows {
		if k.Token == token {
			total = common.AddAmount(total, b.Locked)
		}
	}
	return total
}

// ActiveOwners returns every distinct owner, across every token, holding
// a nonzero liquid or locked balance. Used by the data() query's
// active_traders figure; excludeOwner lets the caller drop the
// distinguished fee account from the count.
func (l *Ledger) ActiveOwners(excludeOwner string) []string {
	seen := make(map[string]struct{})
	for k, b := range l.rows {
		if k.Owner == excludeOwner {
			continue
		}
		if b.Liquid.IsPositive() || b.Locked.IsPositive() {
			seen[k.Owner] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	return out
}

// Snapshot returns a full value-copy of the ledger, used by the matcher
// to roll back a trade whose post-condition invariants fail (spec §4.D
// step 4, §9 "rollback without transactions"). A reference engine of this
// size can afford to snapshot the whole ledger rather than only the rows
// a given trade will touch.
func (l *Ledger) Snapshot() map[Key]Balance {
	snap := make(map[Key]Balance, len(l.rows))
	for k, b := range l.rows {
		snap[k] = *b
	}
	return snap
}

// Restore replaces the ledger's contents with a prior Snapshot, including
// dropping any row created after the snapshot was taken.
func (l *Ledger) Restore(snap map[Key]Balance) {
	for k := range l.rows {
		if _, ok := snap[k]; !ok {
			delete(l.rows, k)
		}
	}
	for k, b := range snap {
		row, ok := l.rows[k]
		if !ok {
			cp := b
			l.rows[k] = &cp
			continue
		}
		*row = b
	}
}
