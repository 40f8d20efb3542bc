package book

import "github.com/shopspring/decimal"

// Config fixes the market parameters of a book.
type Config struct {
	// PriceTick is the price quantum; every order price must be a
	// positive multiple of it.
	PriceTick int64
	// ContractSize converts a face amount into traded-asset units.
	ContractSize decimal.Decimal
	// FeeRate is applied to the leg that receives the counter-asset
	// (fill proceeds and claim payouts).
	FeeRate decimal.Decimal
	// Account is the book's own ledger account holding all escrow.
	Account uint64
	// Treasury is the only account allowed to claim accrued fees.
	Treasury uint64
}

// Book is the order book settlement engine. It exclusively owns all
// order and price level state; asset balances live with the ledger
// collaborators. Operations are strictly sequential: the caller
// (service layer) serializes access.
type Book struct {
	cfg    Config
	traded Ledger
	base   Ledger
	reg    Registry

	levels map[levelKey]*priceLevel
	best   [2]int64 // best active price per side, 0 = empty

	fees feeVault
}

// New wires a book against its collaborators.
func New(cfg Config, traded, base Ledger, reg Registry) *Book {
	if cfg.PriceTick <= 0 {
		cfg.PriceTick = 1
	}
	if cfg.ContractSize.Sign() <= 0 {
		cfg.ContractSize = decimal.NewFromInt(1)
	}
	return &Book{
		cfg:    cfg,
		traded: traded,
		base:   base,
		reg:    reg,
		levels: make(map[levelKey]*priceLevel),
	}
}

// ------------------------------------------------------------------
// Place
// ------------------------------------------------------------------

// PlaceOrder rests a new limit order and returns its sequence number
// at the (side, price) level. The escrow for the full amount is drawn
// from the owner before any book state changes.
func (b *Book) PlaceOrder(owner uint64, side Side, price int64, amount decimal.Decimal) (uint32, error) {
	if !side.Valid() {
		return 0, ErrInvalidArgument
	}
	if amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := b.checkPrice(price); err != nil {
		return 0, err
	}
	// A crossing order must use Fill, never rest: a sell may not sit at
	// or below the best bid, a buy not at or above the best ask.
	if opp := b.best[side.Opposite()]; opp != 0 && !side.better(opp, price) {
		return 0, ErrCannotPlaceOrder
	}

	// Draw the exact escrow first: placement must not mutate the book
	// when the owner cannot fund it.
	if side == Sell {
		if err := b.traded.TransferFrom(b.cfg.Account, owner, b.cfg.Account, b.tradedUnits(amount)); err != nil {
			return 0, err
		}
	} else {
		if err := b.base.TransferFrom(b.cfg.Account, owner, b.cfg.Account, b.baseUnits(amount, price)); err != nil {
			return 0, err
		}
	}

	lvl := b.level(side, price)
	id := lvl.appendOrder(&order{
		owner:  owner,
		amount: amount,
		offset: lvl.totalPlaced, // totalPlaced before this placement
	})
	if !lvl.inLadder {
		b.ladderInsert(lvl)
	}
	return id, nil
}

// ------------------------------------------------------------------
// Fill
// ------------------------------------------------------------------

// FillResult reports what a market sweep actually did.
type FillResult struct {
	Filled decimal.Decimal // face amount taken
	Cost   decimal.Decimal // gross base amount paid (Buy) or received (Sell)
	Fee    decimal.Decimal // withheld from the taker's proceeds
}

type fillLeg struct {
	lvl  *priceLevel
	take decimal.Decimal
}

// Fill sweeps the side opposite the taker in price-time priority,
// bounded by a maximum amount, a worst acceptable price and a hard cap
// on the number of price levels touched. Each touched level costs one
// aggregate mutation regardless of how many orders rest there.
func (b *Book) Fill(taker uint64, side Side, maxAmount decimal.Decimal, maxPrice int64, maxPricePoints uint32) (FillResult, error) {
	var res FillResult
	if !side.Valid() {
		return res, ErrInvalidArgument
	}
	if maxPricePoints == 0 {
		return res, ErrInvalidArgument
	}
	if maxAmount.Sign() <= 0 {
		return res, ErrInvalidAmount
	}

	// Plan the sweep read-only so settlement failures abort cleanly.
	rest := side.Opposite()
	var (
		legs        []fillLeg
		remaining   = maxAmount
		planned     = decimal.Zero
		plannedCost = decimal.Zero
		visited     uint32
	)
	for p := b.best[rest]; p != 0 && visited < maxPricePoints && remaining.IsPositive(); {
		if side == Buy && p > maxPrice {
			break
		}
		if side == Sell && p < maxPrice {
			break
		}
		lvl := b.levels[levelKey{rest, p}]
		take := decimal.Min(remaining, lvl.available())
		legs = append(legs, fillLeg{lvl: lvl, take: take})
		planned = planned.Add(take)
		plannedCost = plannedCost.Add(take.Mul(decimal.NewFromInt(p)))
		remaining = remaining.Sub(take)
		visited++
		p = lvl.nextPrice
	}
	if !planned.IsPositive() {
		return res, ErrInvalidAmount
	}

	// Draw the taker's pay-in against the plan.
	payIn := b.base
	drawn := plannedCost
	if side == Sell {
		payIn = b.traded
		drawn = b.tradedUnits(planned)
	}
	if err := payIn.TransferFrom(b.cfg.Account, taker, b.cfg.Account, drawn); err != nil {
		return res, err
	}

	// Commit: one aggregate bump per level, emptied levels leave the
	// ladder, no resting order is touched. The pay-in call can reenter
	// the book and shrink what the plan saw, so each take is clamped
	// again against the level's current availability.
	var applied []fillLeg
	filled, cost := decimal.Zero, decimal.Zero
	for _, leg := range legs {
		take := decimal.Min(leg.take, leg.lvl.available())
		if !take.IsPositive() {
			continue
		}
		leg.lvl.totalFilled = leg.lvl.totalFilled.Add(take)
		if !leg.lvl.available().IsPositive() {
			b.ladderRemove(leg.lvl)
		}
		applied = append(applied, fillLeg{lvl: leg.lvl, take: take})
		filled = filled.Add(take)
		cost = cost.Add(take.Mul(decimal.NewFromInt(leg.lvl.price)))
	}

	// abort unwinds the committed legs and returns whatever pay-in the
	// taker still has escrowed, so a failed fill leaves no trace.
	abort := func(cause error) (FillResult, error) {
		for _, a := range applied {
			a.lvl.totalFilled = a.lvl.totalFilled.Sub(a.take)
			if a.lvl.available().IsPositive() && !a.lvl.inLadder {
				b.ladderInsert(a.lvl)
			}
		}
		if drawn.IsPositive() {
			if err := payIn.Transfer(b.cfg.Account, taker, drawn); err != nil {
				return FillResult{}, err
			}
		}
		return FillResult{}, cause
	}

	if !filled.IsPositive() {
		// Reentrant activity during the pay-in consumed the whole plan.
		return abort(ErrInvalidAmount)
	}

	// Return the over-drawn part of the pay-in.
	var excess decimal.Decimal
	if side == Buy {
		excess = plannedCost.Sub(cost)
	} else {
		excess = b.tradedUnits(planned.Sub(filled))
	}
	if excess.IsPositive() {
		if err := payIn.Transfer(b.cfg.Account, taker, excess); err != nil {
			return abort(err)
		}
		drawn = drawn.Sub(excess)
	}

	// Pay the taker net of fee; the fee stays in the vault.
	payOut, gross := b.traded, b.tradedUnits(filled)
	if side == Sell {
		payOut, gross = b.base, cost
	}
	fee := gross.Mul(b.cfg.FeeRate)
	net := gross.Sub(fee)
	if net.IsPositive() {
		if err := payOut.Transfer(b.cfg.Account, taker, net); err != nil {
			return abort(err)
		}
	}
	if side == Buy {
		b.fees.creditTraded(fee)
	} else {
		b.fees.creditBase(fee)
	}

	res.Filled = filled
	res.Cost = cost
	res.Fee = fee
	return res, nil
}

// ------------------------------------------------------------------
// Claim
// ------------------------------------------------------------------

// ClaimOrder settles up to maxAmount of the order's filled-but-
// unclaimed portion to its owner, net of fee. A claim that brings the
// claimed total to the order's amount deletes the order.
func (b *Book) ClaimOrder(caller uint64, side Side, price int64, id uint32, maxAmount decimal.Decimal) (decimal.Decimal, error) {
	lvl, o, err := b.lookup(side, price, id)
	if err != nil {
		return decimal.Zero, err
	}
	if o.owner != caller {
		return decimal.Zero, ErrUnauthorized
	}
	if maxAmount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	unclaimed := o.filledAt(lvl.totalFilled).Sub(o.claimed)
	amt := decimal.Min(unclaimed, maxAmount)
	if !amt.IsPositive() {
		// Never a silent no-op on an existing order.
		return decimal.Zero, ErrInvalidAmount
	}

	owner := o.owner
	payOut, gross := b.traded, b.tradedUnits(amt)
	if side == Sell {
		payOut, gross = b.base, b.baseUnits(amt, price)
	}
	fee := gross.Mul(b.cfg.FeeRate)
	net := gross.Sub(fee)

	// Mark the portion claimed before paying out, so a reentrant claim
	// from inside the transfer finds nothing left. If the payout fails
	// the mark is rolled back and the entitlement survives.
	o.claimed = o.claimed.Add(amt)
	if net.IsPositive() {
		if err := payOut.Transfer(b.cfg.Account, owner, net); err != nil {
			o.claimed = o.claimed.Sub(amt)
			return decimal.Zero, err
		}
	}
	if side == Sell {
		b.fees.creditBase(fee)
	} else {
		b.fees.creditTraded(fee)
	}
	if !o.deleted() && o.claimed.Cmp(o.amount) == 0 {
		lvl.unlink(id, o)
	}
	return amt, nil
}

// ------------------------------------------------------------------
// Cancel
// ------------------------------------------------------------------

// CancelOrder withdraws the order's unfilled remainder and refunds its
// escrow, fee free. maxLastOrderID guards against cancellations signed
// before newer orders were queued at the level. Canceling invalidates
// the prefix sums of everything placed after the order, so the level
// chain is walked forward once, correcting each survivor's offset.
func (b *Book) CancelOrder(caller uint64, side Side, price int64, id uint32, maxLastOrderID uint32) (decimal.Decimal, error) {
	lvl, o, err := b.lookup(side, price, id)
	if err != nil {
		return decimal.Zero, err
	}
	if o.owner != caller {
		return decimal.Zero, ErrUnauthorized
	}
	if lvl.lastOrderID > maxLastOrderID {
		return decimal.Zero, ErrOverMaxLastOrderID
	}
	filled := o.filledAt(lvl.totalFilled)
	remainder := o.amount.Sub(filled)
	if !remainder.IsPositive() {
		// Nothing left to cancel; the filled portion is claimable.
		return decimal.Zero, ErrAlreadyFilled
	}

	owner := o.owner
	origAmount := o.amount
	o.amount = filled
	lvl.totalPlaced = lvl.totalPlaced.Sub(remainder)
	for j := o.next; j != 0; {
		oj := lvl.orders[j]
		oj.offset = oj.offset.Sub(remainder)
		j = oj.next
	}
	removed := false
	if lvl.inLadder && !lvl.available().IsPositive() {
		b.ladderRemove(lvl)
		removed = true
	}

	refundLedger, refund := b.traded, b.tradedUnits(remainder)
	if side == Buy {
		refundLedger, refund = b.base, b.baseUnits(remainder, price)
	}
	if refund.IsPositive() {
		if err := refundLedger.Transfer(b.cfg.Account, owner, refund); err != nil {
			// Undo the withdrawal so the order stays cancelable.
			o.amount = origAmount
			lvl.totalPlaced = lvl.totalPlaced.Add(remainder)
			for j := o.next; j != 0; {
				oj := lvl.orders[j]
				oj.offset = oj.offset.Add(remainder)
				j = oj.next
			}
			if removed && lvl.available().IsPositive() && !lvl.inLadder {
				b.ladderInsert(lvl)
			}
			return decimal.Zero, err
		}
	}
	if !o.deleted() && o.claimed.Cmp(o.amount) == 0 {
		// Already fully claimed up to the collapsed amount.
		lvl.unlink(id, o)
	}
	return remainder, nil
}

// ------------------------------------------------------------------
// Transfer
// ------------------------------------------------------------------

// TransferOrder reassigns ownership. No settlement occurs; the new
// owner must be resolvable in the identity registry.
func (b *Book) TransferOrder(caller uint64, side Side, price int64, id uint32, newOwner uint64) error {
	_, o, err := b.lookup(side, price, id)
	if err != nil {
		return err
	}
	if o.owner != caller {
		return ErrUnauthorized
	}
	if _, err := b.reg.AddressOf(newOwner); err != nil {
		return err
	}
	o.owner = newOwner
	return nil
}

// ------------------------------------------------------------------
// Fees
// ------------------------------------------------------------------

// ClaimFees drains the fee vault to the treasury. Restricted to the
// configured treasury account.
func (b *Book) ClaimFees(caller uint64) (traded, base decimal.Decimal, err error) {
	if caller != b.cfg.Treasury {
		return decimal.Zero, decimal.Zero, ErrUnauthorized
	}
	traded, base = b.fees.drain()
	if traded.IsPositive() {
		if err := b.traded.Transfer(b.cfg.Account, caller, traded); err != nil {
			b.fees.creditTraded(traded)
			b.fees.creditBase(base)
			return decimal.Zero, decimal.Zero, err
		}
	}
	if base.IsPositive() {
		if err := b.base.Transfer(b.cfg.Account, caller, base); err != nil {
			// The traded leg already settled; only the unpaid base
			// portion goes back into the vault.
			b.fees.creditBase(base)
			return decimal.Zero, decimal.Zero, err
		}
	}
	return traded, base, nil
}

// ------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------

func (b *Book) checkPrice(price int64) error {
	if price <= 0 || price%b.cfg.PriceTick != 0 {
		return ErrInvalidPrice
	}
	return nil
}

// level returns the aggregate record for (side, price), creating it on
// first use.
func (b *Book) level(side Side, price int64) *priceLevel {
	k := levelKey{side, price}
	lvl := b.levels[k]
	if lvl == nil {
		lvl = newPriceLevel(side, price)
		b.levels[k] = lvl
	}
	return lvl
}

// lookup resolves an order reference, distinguishing malformed ids
// from deleted records.
func (b *Book) lookup(side Side, price int64, id uint32) (*priceLevel, *order, error) {
	if !side.Valid() {
		return nil, nil, ErrInvalidArgument
	}
	if err := b.checkPrice(price); err != nil {
		return nil, nil, err
	}
	lvl := b.levels[levelKey{side, price}]
	if lvl == nil || id == 0 || id > lvl.lastOrderID {
		return nil, nil, ErrInvalidOrderID
	}
	o := lvl.orders[id]
	if o == nil || o.deleted() {
		return nil, nil, ErrOrderDeleted
	}
	return lvl, o, nil
}

func (b *Book) tradedUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(b.cfg.ContractSize)
}

func (b *Book) baseUnits(amount decimal.Decimal, price int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(price))
}
