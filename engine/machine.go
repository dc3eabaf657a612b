// Package engine implements the rules of the bluffing game: the deck,
// treasury, turn rotation, and the resolution machine for actions,
// blocks, and challenges. The engine is pure and synchronous; timing,
// solicitation, and transport live in the service layer. All
// randomness flows from the seed handed to NewGame, so a whole game is
// reproducible.
package engine

import (
	"errors"
	"fmt"
)

const (
	// MinPlayers and MaxPlayers bound the table size.
	MinPlayers = 2
	MaxPlayers = 6

	// HandSize is the influence dealt to each player.
	HandSize = 2
)

var (
	ErrWrongPhase     = errors.New("engine: operation not valid in current phase")
	ErrNotYourTurn    = errors.New("engine: not this player's turn")
	ErrIllegalAction  = errors.New("engine: action is not legal")
	ErrIllegalBlock   = errors.New("engine: block is not available")
	ErrIllegalClaim   = errors.New("engine: no claim to challenge")
	ErrInvalidChoice  = errors.New("engine: chosen card not among choices")
	ErrUnknownPlayer  = errors.New("engine: unknown player")
	ErrGameNotOver    = errors.New("engine: game still running")
	ErrBadPlayerCount = errors.New("engine: player count out of range")
)

// Phase is the machine's externally visible state.
type Phase uint8

const (
	// PhaseWait: the current player must declare an action.
	PhaseWait Phase = iota

	// PhaseResolve: an action is staged and opposition (blocks,
	// challenges) may still be declared.
	PhaseResolve

	// PhaseChooseVictimCard: a player holding two cards must pick which
	// influence to give up.
	PhaseChooseVictimCard

	// PhaseChooseOneFromThree: an exchanging player with one influence
	// picks their new card from three.
	PhaseChooseOneFromThree

	// PhaseChooseTwoFromFour: an exchanging player with two influence
	// picks their new hand from four.
	PhaseChooseTwoFromFour

	// PhaseEnd: one player remains.
	PhaseEnd
)

// continuation records what happens once an in-flight influence-loss
// choice completes. A challenge can leave the contested action (or a
// standing block) still to be applied.
type continuation uint8

const (
	contEndTurn continuation = iota
	contApplyAction
	contBlockStands
)

// pendingChoice tracks an outstanding card selection.
type pendingChoice struct {
	chooser PlayerID
	cards   []Card
}

// Summary is the terminal report.
type Summary struct {
	Winner      PlayerID
	Eliminated  []PlayerID // in order of elimination
	TurnsPlayed int
}

// Game is the full authoritative state. It is not safe for concurrent
// use; the service layer serializes access.
type Game struct {
	players  players
	deck     Deck
	treasury Treasury
	phase    Phase

	staged Action // valid during PhaseResolve and card-choice phases
	block  *Block // active block on the staged action, if any
	choice pendingChoice
	next   continuation

	eliminated []PlayerID
	turns      int
}

// NewGame deals a table for the named players. Seats are assigned in
// order, IDs starting at 1, and the starting player is drawn from the
// seeded RNG.
func NewGame(seed uint64, names []string) (*Game, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d", ErrBadPlayerCount, len(names))
	}

	g := &Game{
		players:  newPlayers(names),
		deck:     NewDeck(seed),
		treasury: NewTreasury(len(names)),
	}
	for i := range g.players.seats {
		p := &g.players.seats[i]
		for c := 0; c < HandSize; c++ {
			p.Hand = append(p.Hand, g.deck.Draw())
		}
	}
	g.players.current = int(g.deck.randN(uint64(len(names))))
	return g, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Phase reports the machine's current phase.
func (g *Game) Phase() Phase { return g.phase }

// CurrentPlayer is whoever's turn it is.
func (g *Game) CurrentPlayer() PlayerID { return g.players.currentID() }

// Player returns the seat for id, or nil.
func (g *Game) Player(id PlayerID) *Player { return g.players.get(id) }

// Alive lists living players in seat order.
func (g *Game) Alive() []PlayerID { return g.players.alive() }

// TreasuryCoins is the bank's balance.
func (g *Game) TreasuryCoins() int { return g.treasury.Remaining() }

// DeckSize is the number of undealt cards.
func (g *Game) DeckSize() int { return g.deck.Len() }

// StagedAction returns the action being resolved, if any.
func (g *Game) StagedAction() (Action, bool) {
	if g.phase == PhaseWait || g.phase == PhaseEnd {
		return Action{}, false
	}
	return g.staged, true
}

// ActiveBlock returns the standing block on the staged action, if any.
func (g *Game) ActiveBlock() (Block, bool) {
	if g.block == nil {
		return Block{}, false
	}
	return *g.block, true
}

// Chooser is the player who owes the outstanding card choice.
func (g *Game) Chooser() PlayerID { return g.choice.chooser }

// Choices are the cards offered for the outstanding choice.
func (g *Game) Choices() []Card {
	out := make([]Card, len(g.choice.cards))
	copy(out, g.choice.cards)
	return out
}

// LegalActions enumerates the openers available to the current player.
// At ten or more coins only Coup is offered. Targeted kinds list one
// entry per eligible victim, in seat order.
func (g *Game) LegalActions() []Action {
	actor := g.players.currentID()
	p := g.players.get(actor)
	others := g.players.othersAlive(actor)

	var acts []Action
	if p.Coins >= CoupCost {
		for _, v := range others {
			acts = append(acts, Action{Actor: actor, Kind: Coup, Target: v})
		}
	}
	if p.Coins >= ForcedCoupAt {
		return acts
	}

	for _, k := range [4]ActKind{Income, ForeignAid, Tax, Exchange} {
		acts = append(acts, Action{Actor: actor, Kind: k})
	}
	for _, v := range others {
		if g.players.get(v).Coins >= StealAmount {
			acts = append(acts, Action{Actor: actor, Kind: Steal, Target: v})
		}
	}
	if p.Coins >= AssassinateCost {
		for _, v := range others {
			acts = append(acts, Action{Actor: actor, Kind: Assassinate, Target: v})
		}
	}
	return acts
}

// Challengers lists who may challenge the contested claim. An action's
// claim may be challenged by any other living player; a block's claim
// only by the original actor.
func (g *Game) Challengers() []PlayerID {
	if g.phase != PhaseResolve {
		return nil
	}
	if g.block != nil {
		if g.players.get(g.staged.Actor).Alive() {
			return []PlayerID{g.staged.Actor}
		}
		return nil
	}
	if g.staged.Kind.Claim() == NoCard {
		return nil
	}
	return g.players.othersAlive(g.staged.Actor)
}

// Blocks lists the blocks available against the staged action. Anyone
// may claim Duke against ForeignAid; only the victim may block Steal or
// Assassinate.
func (g *Game) Blocks() []Block {
	if g.phase != PhaseResolve || g.block != nil {
		return nil
	}
	switch g.staged.Kind {
	case ForeignAid:
		var blocks []Block
		for _, id := range g.players.othersAlive(g.staged.Actor) {
			blocks = append(blocks, Block{Blocker: id, Claim: Duke})
		}
		return blocks
	case Steal, Assassinate:
		victim := g.staged.Target
		if !g.players.get(victim).Alive() {
			return nil
		}
		var blocks []Block
		for _, c := range BlockClaims(g.staged.Kind) {
			blocks = append(blocks, Block{Blocker: victim, Claim: c})
		}
		return blocks
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// Stage validates and stages an action, moving to PhaseResolve. The
// caller inspects the returned class to decide whether opposition must
// be solicited before resolving.
func (g *Game) Stage(a Action) (ActionClass, error) {
	if g.phase != PhaseWait {
		return 0, ErrWrongPhase
	}
	if a.Actor != g.players.currentID() {
		return 0, fmt.Errorf("%w: player %d", ErrNotYourTurn, a.Actor)
	}
	for _, legal := range g.LegalActions() {
		if legal == a {
			g.staged = a
			g.block = nil
			g.phase = PhaseResolve
			return a.Kind.Class(), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrIllegalAction, a.Kind)
}

// StageBlock registers a block against the staged action. The block
// itself may then be challenged by the original actor.
func (g *Game) StageBlock(b Block) error {
	for _, legal := range g.Blocks() {
		if legal == b {
			g.block = &b
			return nil
		}
	}
	return fmt.Errorf("%w: player %d claiming %s", ErrIllegalBlock, b.Blocker, b.Claim)
}

// ResolveUnopposed applies the staged action's effect: nobody blocked
// and nobody challenged (or every challenge failed).
func (g *Game) ResolveUnopposed() ([]Outcome, error) {
	if g.phase != PhaseResolve {
		return nil, ErrWrongPhase
	}
	var out []Outcome
	g.applyAction(&out)
	return out, nil
}

// ResolveBlocked lets the standing block win: the action fizzles, and
// an assassin pays for the attempt anyway.
func (g *Game) ResolveBlocked() ([]Outcome, error) {
	if g.phase != PhaseResolve || g.block == nil {
		return nil, ErrWrongPhase
	}
	out := []Outcome{{
		Kind:   OutcomeActionBlocked,
		Actor:  g.staged.Actor,
		Target: g.block.Blocker,
		Card:   g.block.Claim,
		Amount: g.spendCost(),
	}}
	g.endTurn()
	return out, nil
}

// ResolveChallenge settles a challenge against the contested claim: the
// block's claim when a block stands, otherwise the staged action's. A
// truthful claimant returns the claimed card to the deck and draws a
// fresh replacement; the loser gives up one influence. A surviving true
// claim still takes effect.
func (g *Game) ResolveChallenge(challenger PlayerID) ([]Outcome, error) {
	if g.phase != PhaseResolve {
		return nil, ErrWrongPhase
	}
	eligible := false
	for _, id := range g.Challengers() {
		if id == challenger {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, fmt.Errorf("%w: challenger %d", ErrIllegalClaim, challenger)
	}

	var claimant PlayerID
	var claim Card
	if g.block != nil {
		claimant, claim = g.block.Blocker, g.block.Claim
	} else {
		claimant, claim = g.staged.Actor, g.staged.Kind.Claim()
	}

	truthful := g.players.get(claimant).HasCard(claim)
	out := []Outcome{{
		Kind:     OutcomeChallengeResolved,
		Actor:    claimant,
		Target:   challenger,
		Card:     claim,
		Truthful: truthful,
	}}

	var loser PlayerID
	if truthful {
		// The exposed card goes back into the deck and the claimant
		// draws a hidden replacement.
		p := g.players.get(claimant)
		p.removeCard(claim)
		g.deck.Return(claim)
		p.Hand = append(p.Hand, g.deck.Draw())

		loser = challenger
		if g.block != nil {
			g.next = contBlockStands
		} else {
			g.next = contApplyAction
		}
	} else {
		loser = claimant
		if g.block != nil {
			// The bluffed block collapses; the action goes through.
			g.block = nil
			g.next = contApplyAction
		} else {
			g.next = contEndTurn
		}
	}

	g.loseInfluence(loser, &out)
	return out, nil
}

// ChooseVictimCard settles an outstanding influence loss for a player
// who held two cards.
func (g *Game) ChooseVictimCard(c Card) ([]Outcome, error) {
	if g.phase != PhaseChooseVictimCard {
		return nil, ErrWrongPhase
	}
	victim := g.players.get(g.choice.chooser)
	if !victim.HasCard(c) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChoice, c)
	}

	victim.removeCard(c)
	victim.Revealed = append(victim.Revealed, c)
	out := []Outcome{{Kind: OutcomeInfluenceLost, Actor: victim.ID, Card: c}}

	g.runContinuation(&out)
	return out, nil
}

// ChooseOneFromThree settles an exchange for a player on their last
// influence: the chosen card becomes their hand, the rest reshuffle in.
func (g *Game) ChooseOneFromThree(c Card) ([]Outcome, error) {
	if g.phase != PhaseChooseOneFromThree {
		return nil, ErrWrongPhase
	}
	rest, ok := remainderAfter(g.choice.cards, []Card{c})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChoice, c)
	}

	actor := g.players.get(g.choice.chooser)
	actor.Hand = []Card{c}
	g.deck.Return(rest...)

	out := []Outcome{{Kind: OutcomeCardsExchanged, Actor: actor.ID}}
	g.endTurn()
	return out, nil
}

// ChooseTwoFromFour settles an exchange for a player holding two
// influence.
func (g *Game) ChooseTwoFromFour(chosen [2]Card) ([]Outcome, error) {
	if g.phase != PhaseChooseTwoFromFour {
		return nil, ErrWrongPhase
	}
	rest, ok := remainderAfter(g.choice.cards, chosen[:])
	if !ok {
		return nil, fmt.Errorf("%w: %s and %s", ErrInvalidChoice, chosen[0], chosen[1])
	}

	actor := g.players.get(g.choice.chooser)
	actor.Hand = []Card{chosen[0], chosen[1]}
	g.deck.Return(rest...)

	out := []Outcome{{Kind: OutcomeCardsExchanged, Actor: actor.ID}}
	g.endTurn()
	return out, nil
}

// Summary reports the finished game.
func (g *Game) Summary() (Summary, error) {
	if g.phase != PhaseEnd {
		return Summary{}, ErrGameNotOver
	}
	elim := make([]PlayerID, len(g.eliminated))
	copy(elim, g.eliminated)
	return Summary{
		Winner:      g.players.alive()[0],
		Eliminated:  elim,
		TurnsPlayed: g.turns,
	}, nil
}

// ---------------------------------------------------------------------------
// Effects
// ---------------------------------------------------------------------------

// applyAction performs the staged action's effect. Reaching here means
// the action survived all opposition. A targeted action whose victim
// died during challenge resolution fizzles without cost.
func (g *Game) applyAction(out *[]Outcome) {
	a := g.staged
	actor := g.players.get(a.Actor)

	if a.Kind.Targeted() && !g.players.get(a.Target).Alive() {
		g.endTurn()
		return
	}

	switch a.Kind {
	case Income:
		granted := g.treasury.Withdraw(IncomeAmount)
		actor.Coins += granted
		*out = append(*out, Outcome{Kind: OutcomeCoinsGained, Actor: a.Actor, Amount: granted})
		g.endTurn()

	case ForeignAid:
		granted := g.treasury.Withdraw(ForeignAidAmount)
		actor.Coins += granted
		*out = append(*out, Outcome{Kind: OutcomeCoinsGained, Actor: a.Actor, Amount: granted})
		g.endTurn()

	case Tax:
		granted := g.treasury.Withdraw(TaxAmount)
		actor.Coins += granted
		*out = append(*out, Outcome{Kind: OutcomeCoinsGained, Actor: a.Actor, Amount: granted})
		g.endTurn()

	case Steal:
		victim := g.players.get(a.Target)
		amount := StealAmount
		if victim.Coins < amount {
			amount = victim.Coins
		}
		victim.Coins -= amount
		actor.Coins += amount
		*out = append(*out, Outcome{Kind: OutcomeCoinsStolen, Actor: a.Actor, Target: a.Target, Amount: amount})
		g.endTurn()

	case Exchange:
		drawn := [2]Card{g.deck.Draw(), g.deck.Draw()}
		hand := actor.Hand
		if len(hand) == HandSize {
			g.choice = pendingChoice{
				chooser: a.Actor,
				cards:   []Card{drawn[0], drawn[1], hand[0], hand[1]},
			}
			g.phase = PhaseChooseTwoFromFour
		} else {
			g.choice = pendingChoice{
				chooser: a.Actor,
				cards:   []Card{drawn[0], drawn[1], hand[0]},
			}
			g.phase = PhaseChooseOneFromThree
		}

	case Assassinate:
		spent := g.spendCost()
		*out = append(*out, Outcome{Kind: OutcomeCoinsSpent, Actor: a.Actor, Amount: spent})
		g.next = contEndTurn
		g.loseInfluence(a.Target, out)

	case Coup:
		spent := g.spendCost()
		*out = append(*out, Outcome{Kind: OutcomeCoinsSpent, Actor: a.Actor, Amount: spent})
		g.next = contEndTurn
		g.loseInfluence(a.Target, out)
	}
}

// spendCost moves the staged action's cost back to the treasury and
// returns the amount.
func (g *Game) spendCost() int {
	cost := g.staged.Kind.Cost()
	actor := g.players.get(g.staged.Actor)
	actor.Coins -= cost
	g.treasury.Deposit(cost)
	return cost
}

// loseInfluence makes victim give up one influence. With two cards in
// hand the victim must choose and the machine parks in
// PhaseChooseVictimCard; on a last card the player is eliminated on the
// spot and the pending continuation runs immediately.
func (g *Game) loseInfluence(victim PlayerID, out *[]Outcome) {
	p := g.players.get(victim)
	if len(p.Hand) >= HandSize {
		g.choice = pendingChoice{
			chooser: victim,
			cards:   append([]Card(nil), p.Hand...),
		}
		g.phase = PhaseChooseVictimCard
		return
	}

	// Last card: reveal it, return coins to the bank, and the seat is out.
	last := p.Hand[0]
	p.Hand = nil
	p.Revealed = append(p.Revealed, last)
	g.treasury.Deposit(p.Coins)
	returned := p.Coins
	p.Coins = 0
	g.eliminated = append(g.eliminated, victim)

	*out = append(*out,
		Outcome{Kind: OutcomeInfluenceLost, Actor: victim, Card: last},
		Outcome{Kind: OutcomePlayerEliminated, Actor: victim, Amount: returned},
	)

	if g.players.aliveCount() == 1 {
		g.phase = PhaseEnd
		return
	}
	g.runContinuation(out)
}

// runContinuation resumes whatever the influence loss interrupted.
func (g *Game) runContinuation(out *[]Outcome) {
	next := g.next
	g.next = contEndTurn
	switch next {
	case contApplyAction:
		g.phase = PhaseResolve
		g.applyAction(out)
	case contBlockStands:
		// A dead actor's coins are already back in the bank; only a
		// living actor pays for the blocked attempt.
		spent := 0
		if g.players.get(g.staged.Actor).Alive() {
			spent = g.spendCost()
		}
		*out = append(*out, Outcome{
			Kind:   OutcomeActionBlocked,
			Actor:  g.staged.Actor,
			Target: g.block.Blocker,
			Card:   g.block.Claim,
			Amount: spent,
		})
		g.endTurn()
	default:
		g.endTurn()
	}
}

// endTurn clears the resolution state and hands the turn to the next
// living seat. Callers that already detected game over must not call
// this.
func (g *Game) endTurn() {
	g.staged = Action{}
	g.block = nil
	g.choice = pendingChoice{}
	g.next = contEndTurn
	g.turns++
	g.players.advance()
	g.phase = PhaseWait
}

// remainderAfter removes chosen (with multiplicity) from pool and
// returns what is left. It reports false if chosen is not a sub-bag of
// pool.
func remainderAfter(pool, chosen []Card) ([]Card, bool) {
	rest := append([]Card(nil), pool...)
	for _, c := range chosen {
		found := false
		for i, r := range rest {
			if r == c {
				rest = append(rest[:i], rest[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return rest, true
}
