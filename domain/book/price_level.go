package book

import "github.com/shopspring/decimal"

type levelKey struct {
	side  Side
	price int64
}

// priceLevel is the aggregate of all orders ever placed at one
// (side, price) pair. The record outlives its ladder membership:
// a level leaves the ladder when it has nothing left to fill, but its
// counters and order records stay so claims keep working and sequence
// numbers are never recycled.
type priceLevel struct {
	side  Side
	price int64

	lastOrderID  uint32 // last sequence number ever assigned here
	lastActiveID uint32 // most recently placed not-yet-deleted order; chain tail

	totalPlaced decimal.Decimal // sum of original amounts ever placed, less canceled remainders
	totalFilled decimal.Decimal // cumulative amount matched; monotone, <= totalPlaced

	orders map[uint32]*order

	nextPrice int64 // ladder link to the next worse active price, 0 = none
	inLadder  bool
}

func newPriceLevel(side Side, price int64) *priceLevel {
	return &priceLevel{
		side:   side,
		price:  price,
		orders: make(map[uint32]*order),
	}
}

// available is the amount a fill can still take from this level.
func (l *priceLevel) available() decimal.Decimal {
	return l.totalPlaced.Sub(l.totalFilled)
}

// appendOrder assigns the next sequence number and links the order
// after the current chain tail.
func (l *priceLevel) appendOrder(o *order) uint32 {
	id := l.lastOrderID + 1
	o.prev = l.lastActiveID
	o.next = 0
	if l.lastActiveID != 0 {
		l.orders[l.lastActiveID].next = id
	}
	l.orders[id] = o
	l.lastOrderID = id
	l.lastActiveID = id
	l.totalPlaced = l.totalPlaced.Add(o.amount)
	return id
}

// unlink splices the order out of the level chain and marks the record
// deleted. The record itself stays in the map.
func (l *priceLevel) unlink(id uint32, o *order) {
	if o.prev != 0 {
		l.orders[o.prev].next = o.next
	}
	if o.next != 0 {
		l.orders[o.next].prev = o.prev
	}
	if l.lastActiveID == id {
		l.lastActiveID = o.prev
	}
	o.owner = 0
	o.prev = 0
	o.next = 0
}

// LevelView is the read-only aggregate projection returned by queries.
type LevelView struct {
	LastOrderID  uint32
	LastActiveID uint32
	TotalPlaced  decimal.Decimal
	TotalFilled  decimal.Decimal
	Available    decimal.Decimal
}
