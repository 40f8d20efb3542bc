package book

import "github.com/shopspring/decimal"

// Read-only queries. These materialize the derived fields; nothing
// here mutates state.

// Order returns the projection of a single order.
func (b *Book) Order(side Side, price int64, id uint32) (OrderView, error) {
	lvl, o, err := b.lookup(side, price, id)
	if err != nil {
		return OrderView{}, err
	}
	filled := o.filledAt(lvl.totalFilled)
	return OrderView{
		Owner:     o.owner,
		Amount:    o.amount,
		Claimed:   o.claimed,
		Offset:    o.offset,
		Filled:    filled,
		Available: o.amount.Sub(filled),
		Unclaimed: filled.Sub(o.claimed),
		Prev:      o.prev,
		Next:      o.next,
	}, nil
}

// PricePoint returns the aggregate counters at (side, price). A price
// no order was ever placed at reports zeroes.
func (b *Book) PricePoint(side Side, price int64) (LevelView, error) {
	if !side.Valid() {
		return LevelView{}, ErrInvalidArgument
	}
	if err := b.checkPrice(price); err != nil {
		return LevelView{}, err
	}
	lvl := b.levels[levelKey{side, price}]
	if lvl == nil {
		return LevelView{}, nil
	}
	return LevelView{
		LastOrderID:  lvl.lastOrderID,
		LastActiveID: lvl.lastActiveID,
		TotalPlaced:  lvl.totalPlaced,
		TotalFilled:  lvl.totalFilled,
		Available:    lvl.available(),
	}, nil
}

// AskPrice returns the best active sell price, 0 if none.
func (b *Book) AskPrice() int64 {
	return b.bestPrice(Sell)
}

// BidPrice returns the best active buy price, 0 if none.
func (b *Book) BidPrice() int64 {
	return b.bestPrice(Buy)
}

// NextSellPrice returns the first active sell price above price, 0 if none.
func (b *Book) NextSellPrice(price int64) int64 {
	return b.nextWorse(Sell, price)
}

// NextBuyPrice returns the first active buy price below price, 0 if none.
func (b *Book) NextBuyPrice(price int64) int64 {
	return b.nextWorse(Buy, price)
}

// DepthLevel is one active price with its takeable amount.
type DepthLevel struct {
	Price     int64
	Available decimal.Decimal
}

// Depth returns both sides of the ladder from best to worst, at most
// limit levels per side. limit <= 0 means unbounded.
func (b *Book) Depth(limit int) (asks, bids []DepthLevel) {
	walk := func(side Side) []DepthLevel {
		var out []DepthLevel
		for p := b.best[side]; p != 0; {
			lvl := b.levels[levelKey{side, p}]
			out = append(out, DepthLevel{Price: p, Available: lvl.available()})
			if limit > 0 && len(out) == limit {
				break
			}
			p = lvl.nextPrice
		}
		return out
	}
	return walk(Sell), walk(Buy)
}

// AccountID returns the book's own ledger account.
func (b *Book) AccountID() uint64 {
	return b.cfg.Account
}

// TreasuryID returns the account allowed to collect fees.
func (b *Book) TreasuryID() uint64 {
	return b.cfg.Treasury
}

// CollectedFees returns the uncollected fee balances per asset.
func (b *Book) CollectedFees() (traded, base decimal.Decimal) {
	return b.fees.traded, b.fees.base
}
