package engine

// PlayerInfo is one seat's state in a snapshot. Hand contains hidden
// cards; callers building per-viewer messages must redact it for
// everyone but the seat's owner.
type PlayerInfo struct {
	ID       PlayerID
	Name     string
	Coins    int
	Hand     []Card
	Revealed []Card
}

// Info is a full snapshot of public game state plus hands.
type Info struct {
	Players       []PlayerInfo
	CurrentPlayer PlayerID
	TreasuryCoins int
	DeckSize      int
}

// Snapshot copies the current state. The returned slices are owned by
// the caller.
func (g *Game) Snapshot() Info {
	info := Info{
		Players:       make([]PlayerInfo, 0, len(g.players.seats)),
		CurrentPlayer: g.players.currentID(),
		TreasuryCoins: g.treasury.Remaining(),
		DeckSize:      g.deck.Len(),
	}
	for i := range g.players.seats {
		p := &g.players.seats[i]
		info.Players = append(info.Players, PlayerInfo{
			ID:       p.ID,
			Name:     p.Name,
			Coins:    p.Coins,
			Hand:     append([]Card(nil), p.Hand...),
			Revealed: append([]Card(nil), p.Revealed...),
		})
	}
	return info
}
