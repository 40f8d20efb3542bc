package book

// The ladder is a sorted singly linked chain of active prices per
// side, threaded through the priceLevel records themselves. Levels are
// inserted when their availability turns positive and removed when it
// reaches zero. Insertion walks from the best price; levels are
// created rarely relative to fills, so the linear scan is acceptable,
// and it is what bounds a fill's traversal to exactly the levels it
// crosses.

// ladderInsert links lvl into its side's chain at the sorted position.
func (b *Book) ladderInsert(lvl *priceLevel) {
	s := lvl.side
	best := b.best[s]
	if best == 0 || s.better(lvl.price, best) {
		lvl.nextPrice = best
		b.best[s] = lvl.price
		lvl.inLadder = true
		return
	}
	cur := b.levels[levelKey{s, best}]
	for cur.nextPrice != 0 && s.better(cur.nextPrice, lvl.price) {
		cur = b.levels[levelKey{s, cur.nextPrice}]
	}
	lvl.nextPrice = cur.nextPrice
	cur.nextPrice = lvl.price
	lvl.inLadder = true
}

// ladderRemove splices lvl out of its side's chain. Removing a level
// that already left the ladder, possibly through a reentrant
// cancellation, is a no-op.
func (b *Book) ladderRemove(lvl *priceLevel) {
	if !lvl.inLadder {
		return
	}
	s := lvl.side
	if b.best[s] == lvl.price {
		b.best[s] = lvl.nextPrice
	} else {
		cur := b.levels[levelKey{s, b.best[s]}]
		for cur.nextPrice != lvl.price {
			cur = b.levels[levelKey{s, cur.nextPrice}]
		}
		cur.nextPrice = lvl.nextPrice
	}
	lvl.nextPrice = 0
	lvl.inLadder = false
}

// bestPrice returns the side's best active price, 0 if the side is empty.
func (b *Book) bestPrice(s Side) int64 {
	return b.best[s]
}

// nextWorse returns the first active price strictly worse than price
// on side s, 0 if none. price itself does not have to be active.
func (b *Book) nextWorse(s Side, price int64) int64 {
	p := b.best[s]
	for p != 0 && !s.better(price, p) {
		p = b.levels[levelKey{s, p}].nextPrice
	}
	return p
}
