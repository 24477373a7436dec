package common

import (
	"fmt"

	"github.com/google/uuid"
)

// Order is the immutable-by-convention tuple described in spec §3. Only
// AmountRemaining is ever mutated in place, and only by the matcher/book
// while the engine's single command-loop goroutine owns it (see
// internal/engine).
type Order struct {
	ID              uuid.UUID
	Owner           string
	Token           TokenID
	Side            Side
	OrderType       OrderType
	Price           Amount // 0 denotes a market order
	AmountRemaining Amount
	TotalAmount     Amount
	TimestampNs     uint64
	FeeBpsSnapshot  uint32
}

func (o Order) IsMarket() bool {
	return o.Price.IsZero()
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s owner=%s token=%s side=%s type=%s price=%s remaining=%s/%s ts=%d}",
		o.ID, o.Owner, o.Token, o.Side, o.OrderType, o.Price, o.AmountRemaining, o.TotalAmount, o.TimestampNs,
	)
}

// Key is the composite key spec §3 sorts a book on: (side-adjusted price,
// timestamp, owner). Book and close_order both use it to locate an order.
type Key struct {
	Side        Side
	Price       Amount
	TimestampNs uint64
	Owner       string
}
