package common

import (
	"fmt"

	"github.com/google/uuid"
)

// Trade is an archived fill record (spec §3). It is produced once per
// maker/taker pairing inside a single trade() call and never mutated
// afterwards.
type Trade struct {
	ID          uuid.UUID
	Token       TokenID
	Maker       string
	Taker       string
	TakerSide   Side
	Amount      Amount
	Price       Amount // the maker's resting price, per spec §4.D's rounding policy
	TimestampNs uint64
	TakerFee    Amount
	MakerFee    Amount
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s token=%s maker=%s taker=%s side=%s amount=%s price=%s ts=%d takerFee=%s makerFee=%s}",
		t.ID, t.Token, t.Maker, t.Taker, t.TakerSide, t.Amount, t.Price, t.TimestampNs, t.TakerFee, t.MakerFee,
	)
}

// TotalFee returns the combined fee collected by the fee account for this
// fill, used by Testable Property 7.
func (t Trade) TotalFee() Amount {
	return AddAmount(t.TakerFee, t.MakerFee)
}
