// Package common holds the identifier, amount and error types shared by
// every other package in the engine. Nothing here owns mutable state: it is
// pure data plus the helpers needed to manipulate it safely.
package common

import (
	"encoding/hex"
	"fmt"

	"cosmossdk.io/math"
)

// TokenID is an opaque identifier of an external ledger, modelled as a
// 32-byte principal-like value.
type TokenID [32]byte

func (t TokenID) String() string {
	return hex.EncodeToString(t[:])
}

func (t TokenID) IsZero() bool {
	return t == TokenID{}
}

// MarshalText/UnmarshalText let TokenID serialize as its hex string rather
// than a raw byte array — required for it to be usable as a JSON object
// key (encoding/json map keys must be strings, integers, or implement
// encoding.TextMarshaler), which the wire protocol's Prices/Tokens/
// TokenBalances/AggregateStats responses all rely on.
func (t TokenID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TokenID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid token id %q: %w", text, err)
	}
	*t = TokenIDFromBytes(b)
	return nil
}

// TokenIDFromBytes pads or truncates b into a TokenID.
func TokenIDFromBytes(b []byte) TokenID {
	var id TokenID
	copy(id[:], b)
	return id
}

// Side is the side of an order or a book.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes resting limit orders from immediate-or-cancel
// market orders. A market order never rests in the book (see §4.D).
type OrderType int

const (
	LimitOrder OrderType = iota
	MarketOrder
)

func (t OrderType) String() string {
	if t == LimitOrder {
		return "limit"
	}
	return "market"
}

// Amount is an exact, unsigned quantity expressed in a token's smallest
// unit. It is backed by cosmossdk.io/math.Int rather than a native Go
// integer so trades at arbitrary-precision scale (and their intermediate
// products, e.g. amount*price before the BASE division) never overflow.
// Non-negativity is an engine-level invariant enforced by the helpers
// below, not a property of the underlying type: every subtraction of one
// balance from another goes through SubAmount, which rejects the operation
// instead of producing (or panicking on) a negative value.
type Amount = math.Int

// ZeroAmount returns the additive identity.
func ZeroAmount() Amount { return math.ZeroInt() }

// AmountFromUint64 builds an Amount from a native unsigned integer.
func AmountFromUint64(v uint64) Amount { return math.NewIntFromUint64(v) }

// AmountFromString parses a base-10 amount, as used on the wire and in CLI
// flags where an arbitrary-precision integer cannot safely round-trip
// through a native Go integer type.
func AmountFromString(s string) (Amount, error) {
	a, ok := math.NewIntFromString(s)
	if !ok {
		return ZeroAmount(), fmt.Errorf("invalid amount %q", s)
	}
	if a.IsNegative() {
		return ZeroAmount(), fmt.Errorf("amount %q is negative", s)
	}
	return a, nil
}

// Base returns 10^decimals, the "one whole unit" divisor for a token.
func Base(decimals uint32) Amount {
	base := math.NewInt(1)
	ten := math.NewInt(10)
	for i := uint32(0); i < decimals; i++ {
		base = base.Mul(ten)
	}
	return base
}

// AddAmount returns a+b. Addition of two non-negative amounts is always
// non-negative, so this never fails.
func AddAmount(a, b Amount) Amount { return a.Add(b) }

// SubAmount returns a-b, failing instead of going negative.
func SubAmount(a, b Amount) (Amount, error) {
	if a.LT(b) {
		return ZeroAmount(), fmt.Errorf("%w: %s < %s", ErrInsufficientLiquidity, a.String(), b.String())
	}
	return a.Sub(b), nil
}

// GrossPayment computes floor(amount*price/base), the payment-token cost
// of filling amount units of a token priced per BASE(t) (spec §3/§9 — the
// "per-BASE, not per-unit" denomination this engine commits to).
func GrossPayment(amount, price, base Amount) Amount {
	return amount.Mul(price).Quo(base)
}

// CeilDiv computes ceil(numerator/denominator) for non-negative operands,
// used to size a Buy order's required payment-token lock (spec §4.D).
func CeilDiv(numerator, denominator Amount) Amount {
	q := numerator.Quo(denominator)
	r := numerator.Sub(q.Mul(denominator))
	if r.IsZero() {
		return q
	}
	return q.AddRaw(1)
}

var tenThousand = math.NewInt(10_000)
var two = math.NewInt(2)

// FeeOnGross applies a basis-point rate to a gross payment, rounding to
// the nearest unit with ties broken towards zero ("round half down"),
// matching spec §4.D's rounding policy.
func FeeOnGross(gross Amount, bps uint32) Amount {
	num := gross.MulRaw(int64(bps))
	q := num.Quo(tenThousand)
	r := num.Sub(q.Mul(tenThousand))
	if r.Mul(two).GT(tenThousand) {
		q = q.AddRaw(1)
	}
	return q
}
