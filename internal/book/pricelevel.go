package book

import "beacon/internal/common"

// PriceLevel holds every resting order at one price, ordered by
// (timestamp, owner) — the same shape the teacher's engine.PriceLevel
// uses, just keyed on an exact Amount instead of a float64.
type PriceLevel struct {
	Price  common.Amount
	Orders []*common.Order
}
