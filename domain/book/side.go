package book

// Side selects one half of the book.
type Side uint8

const (
	// Sell orders rest on the ask ladder, prices ascending.
	Sell Side = iota
	// Buy orders rest on the bid ladder, prices descending.
	Buy
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == Sell || s == Buy
}

// better reports whether price a sorts before price b on this side:
// ascending for asks, descending for bids.
func (s Side) better(a, b int64) bool {
	if s == Sell {
		return a < b
	}
	return a > b
}
