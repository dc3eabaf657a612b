package engine

// PlayerID is a 1-based seat number. Zero means "no player" and is used
// for untargeted actions.
type PlayerID uint8

// NoPlayer is the absent-player sentinel.
const NoPlayer PlayerID = 0

// Player is one seat at the table. A player is alive while Hand is
// non-empty; Revealed holds influence lost face-up.
type Player struct {
	ID       PlayerID
	Name     string
	Coins    int
	Hand     []Card
	Revealed []Card
}

// Alive reports whether the player still holds hidden influence.
func (p *Player) Alive() bool { return len(p.Hand) > 0 }

// HasCard reports whether the player's hidden hand contains c.
func (p *Player) HasCard(c Card) bool {
	for _, h := range p.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// removeCard takes one copy of c out of the hidden hand. It reports false
// when the player does not hold c.
func (p *Player) removeCard(c Card) bool {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// players tracks seats and whose turn it is. Seat order never changes;
// eliminated players keep their seat but are skipped in rotation.
type players struct {
	seats   []Player
	current int // index into seats, always an alive seat while the game runs
}

func newPlayers(names []string) players {
	seats := make([]Player, len(names))
	for i, name := range names {
		seats[i] = Player{
			ID:    PlayerID(i + 1),
			Name:  name,
			Coins: StartingCoins,
			Hand:  make([]Card, 0, 2),
		}
	}
	return players{seats: seats}
}

// get returns the seat for id, or nil for an unknown id.
func (ps *players) get(id PlayerID) *Player {
	i := int(id) - 1
	if i < 0 || i >= len(ps.seats) {
		return nil
	}
	return &ps.seats[i]
}

// currentID is the player whose turn it is.
func (ps *players) currentID() PlayerID {
	return ps.seats[ps.current].ID
}

// aliveCount counts seats still holding influence.
func (ps *players) aliveCount() int {
	n := 0
	for i := range ps.seats {
		if ps.seats[i].Alive() {
			n++
		}
	}
	return n
}

// alive lists living players in seat order.
func (ps *players) alive() []PlayerID {
	ids := make([]PlayerID, 0, len(ps.seats))
	for i := range ps.seats {
		if ps.seats[i].Alive() {
			ids = append(ids, ps.seats[i].ID)
		}
	}
	return ids
}

// othersAlive lists living players other than id, in seat order.
func (ps *players) othersAlive(id PlayerID) []PlayerID {
	ids := make([]PlayerID, 0, len(ps.seats))
	for i := range ps.seats {
		if ps.seats[i].Alive() && ps.seats[i].ID != id {
			ids = append(ids, ps.seats[i].ID)
		}
	}
	return ids
}

// advance moves the turn marker to the next alive seat. The caller
// guarantees at least one player is still alive.
func (ps *players) advance() {
	for {
		ps.current = (ps.current + 1) % len(ps.seats)
		if ps.seats[ps.current].Alive() {
			return
		}
	}
}
