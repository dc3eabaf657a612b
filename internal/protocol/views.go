package protocol

import (
	"fmt"

	"github.com/xa888s/overthrow/engine"
)

// CardName renders a card for the wire.
func CardName(c engine.Card) string { return c.String() }

// CardFromName parses a wire card name.
func CardFromName(s string) (engine.Card, error) {
	for _, c := range engine.AllCards {
		if c.String() == s {
			return c, nil
		}
	}
	return engine.NoCard, fmt.Errorf("%w: unknown card %q", ErrMalformed, s)
}

// ActKindFromName parses a wire action name.
func ActKindFromName(s string) (engine.ActKind, error) {
	kinds := [7]engine.ActKind{
		engine.Income, engine.ForeignAid, engine.Tax, engine.Exchange,
		engine.Steal, engine.Assassinate, engine.Coup,
	}
	for _, k := range kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrMalformed, s)
}

func cardNames(cards []engine.Card) []string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.String()
	}
	return names
}

// PlayerView is one seat as a given viewer sees it. Hand is only set in
// the owner's own view.
type PlayerView struct {
	ID       uint8    `json:"id"`
	Name     string   `json:"name"`
	Coins    int      `json:"coins"`
	HandSize int      `json:"handSize"`
	Hand     []string `json:"hand,omitempty"`
	Revealed []string `json:"revealed"`
}

// InfoView is the redacted table snapshot broadcast after every change.
type InfoView struct {
	Players       []PlayerView `json:"players"`
	CurrentPlayer uint8        `json:"currentPlayer"`
	TreasuryCoins int          `json:"treasuryCoins"`
	DeckSize      int          `json:"deckSize"`
}

// BuildInfo redacts a snapshot for viewer: everyone's coins and revealed
// cards are public, hidden hands are only counted except the viewer's
// own.
func BuildInfo(info engine.Info, viewer engine.PlayerID) InfoView {
	view := InfoView{
		Players:       make([]PlayerView, 0, len(info.Players)),
		CurrentPlayer: uint8(info.CurrentPlayer),
		TreasuryCoins: info.TreasuryCoins,
		DeckSize:      info.DeckSize,
	}
	for _, p := range info.Players {
		pv := PlayerView{
			ID:       uint8(p.ID),
			Name:     p.Name,
			Coins:    p.Coins,
			HandSize: len(p.Hand),
			Revealed: cardNames(p.Revealed),
		}
		if p.ID == viewer {
			pv.Hand = cardNames(p.Hand)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// ActionView is one selectable opener.
type ActionView struct {
	Kind   string `json:"kind"`
	Target uint8  `json:"target,omitempty"`
}

// ActionViews renders a legal-action list. The actor is implicit: the
// list is only ever sent to the player it belongs to.
func ActionViews(actions []engine.Action) []ActionView {
	views := make([]ActionView, len(actions))
	for i, a := range actions {
		views[i] = ActionView{Kind: a.Kind.String(), Target: uint8(a.Target)}
	}
	return views
}

// ActionFromRequest validates an ActRequest into an engine action for
// the given seat.
func ActionFromRequest(actor engine.PlayerID, req *ActRequest) (engine.Action, error) {
	if req == nil {
		return engine.Action{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	kind, err := ActKindFromName(req.Kind)
	if err != nil {
		return engine.Action{}, err
	}
	return engine.Action{
		Actor:  actor,
		Kind:   kind,
		Target: engine.PlayerID(req.Target),
	}, nil
}

// OutcomeView is a public state change announcement.
type OutcomeView struct {
	Kind     string `json:"kind"`
	Actor    uint8  `json:"actor,omitempty"`
	Target   uint8  `json:"target,omitempty"`
	Card     string `json:"card,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Truthful bool   `json:"truthful,omitempty"`
}

// OutcomeViewOf renders one engine outcome.
func OutcomeViewOf(o engine.Outcome) OutcomeView {
	view := OutcomeView{
		Kind:     o.Kind.String(),
		Actor:    uint8(o.Actor),
		Target:   uint8(o.Target),
		Amount:   o.Amount,
		Truthful: o.Truthful,
	}
	if o.Card != engine.NoCard {
		view.Card = o.Card.String()
	}
	return view
}

// ChallengeView solicits a challenge-or-pass decision against a claim.
type ChallengeView struct {
	Claimant       uint8  `json:"claimant"`
	Claim          string `json:"claim"`
	DeadlineMillis int64  `json:"deadlineMillis"`
}

// BlockOptionsView solicits a block-or-pass decision.
type BlockOptionsView struct {
	Actor          uint8    `json:"actor"`
	Kind           string   `json:"kind"`
	Claims         []string `json:"claims"`
	DeadlineMillis int64    `json:"deadlineMillis"`
}

// ReactionOptionsView solicits the victim of a reactable action, who
// may block or challenge in a single window.
type ReactionOptionsView struct {
	Actor          uint8    `json:"actor"`
	Kind           string   `json:"kind"`
	Claims         []string `json:"claims"`
	CanChallenge   bool     `json:"canChallenge"`
	DeadlineMillis int64    `json:"deadlineMillis"`
}

// BlockClaimNames lists the wire names of the cards that may block k.
func BlockClaimNames(k engine.ActKind) []string {
	return cardNames(engine.BlockClaims(k))
}

// GameOverView is the terminal summary.
type GameOverView struct {
	Winner      uint8   `json:"winner"`
	Eliminated  []uint8 `json:"eliminated"`
	TurnsPlayed int     `json:"turnsPlayed"`
}

// GameOverViewOf renders a summary.
func GameOverViewOf(s engine.Summary) GameOverView {
	out := GameOverView{
		Winner:      uint8(s.Winner),
		Eliminated:  make([]uint8, len(s.Eliminated)),
		TurnsPlayed: s.TurnsPlayed,
	}
	for i, id := range s.Eliminated {
		out.Eliminated[i] = uint8(id)
	}
	return out
}

// CancelledView explains a torn-down session.
type CancelledView struct {
	Reason string `json:"reason"`
}

// InvalidView echoes why an inbound message was ignored.
type InvalidView struct {
	Reason string `json:"reason"`
}

// CardChoices renders a card list for the choice solicitations.
func CardChoices(cards []engine.Card) []string { return cardNames(cards) }
