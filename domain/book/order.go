package book

import "github.com/shopspring/decimal"

// order is a single resting order record. Records are never physically
// reused: a settled or canceled order keeps its slot with owner 0 so
// later lookups can distinguish "deleted" from "never existed".
type order struct {
	owner   uint64
	amount  decimal.Decimal // remaining claimable face amount
	claimed decimal.Decimal // already settled to the owner
	offset  decimal.Decimal // level totalPlaced at insertion, corrected on earlier cancels
	prev    uint32          // previous non-deleted order at the level, 0 = none
	next    uint32          // next non-deleted order at the level, 0 = none
}

func (o *order) deleted() bool {
	return o.owner == 0
}

// filledAt derives the filled amount from the level's cumulative
// filled counter: clamp(totalFilled - offset, 0, amount).
func (o *order) filledAt(totalFilled decimal.Decimal) decimal.Decimal {
	f := totalFilled.Sub(o.offset)
	if f.Sign() <= 0 {
		return decimal.Zero
	}
	if f.Cmp(o.amount) >= 0 {
		return o.amount
	}
	return f
}

// OrderView is the read-only projection returned by queries, with the
// derived fields materialized.
type OrderView struct {
	Owner     uint64
	Amount    decimal.Decimal
	Claimed   decimal.Decimal
	Offset    decimal.Decimal
	Filled    decimal.Decimal
	Available decimal.Decimal
	Unclaimed decimal.Decimal
	Prev      uint32
	Next      uint32
}
