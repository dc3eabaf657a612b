package engine

// Deck holds the undealt court cards. It owns the game's RNG so every
// shuffle and draw is reproducible from the original seed.
type Deck struct {
	cards []Card
	rng   uint64
}

// NewDeck builds a full deck (three of each kind), seeds the RNG, and
// shuffles. A zero seed is bumped to 1 because xorshift64 sticks at zero.
func NewDeck(seed uint64) Deck {
	if seed == 0 {
		seed = 1
	}
	d := Deck{
		cards: make([]Card, 0, len(AllCards)*CardsPerKind),
		rng:   seed,
	}
	for _, c := range AllCards {
		for i := 0; i < CardsPerKind; i++ {
			d.cards = append(d.cards, c)
		}
	}
	d.shuffle()
	return d
}

// xorshift64, inline.
func (d *Deck) nextRand() uint64 {
	x := d.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	d.rng = x
	return x
}

// randN returns a random number in [0, n).
func (d *Deck) randN(n uint64) uint64 {
	return d.nextRand() % n
}

// Fisher-Yates.
func (d *Deck) shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := int(d.randN(uint64(i + 1)))
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Len reports how many cards remain undealt.
func (d *Deck) Len() int { return len(d.cards) }

// Draw removes and returns the top card. Callers must check Len first;
// drawing from an empty deck returns NoCard.
func (d *Deck) Draw() Card {
	if len(d.cards) == 0 {
		return NoCard
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top
}

// Return puts cards back into the deck and reshuffles, so a returned card
// cannot be tracked to a deck position.
func (d *Deck) Return(cards ...Card) {
	d.cards = append(d.cards, cards...)
	d.shuffle()
}
