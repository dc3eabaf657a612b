package engine

// OutcomeKind tags a publicly announceable state change.
type OutcomeKind uint8

const (
	// OutcomeCoinsGained: Actor took Amount from the treasury.
	OutcomeCoinsGained OutcomeKind = iota

	// OutcomeCoinsSpent: Actor paid Amount to the treasury for an
	// Assassinate or Coup.
	OutcomeCoinsSpent

	// OutcomeCoinsStolen: Actor took Amount from Target.
	OutcomeCoinsStolen

	// OutcomeActionBlocked: Actor's action was stopped by Target
	// claiming Card; Amount is what the attempt cost anyway.
	OutcomeActionBlocked

	// OutcomeChallengeResolved: Target challenged Actor's claim of
	// Card. Truthful reports whether the claim held up; a truthful
	// claimant has reshuffled the claimed card and drawn a replacement.
	OutcomeChallengeResolved

	// OutcomeInfluenceLost: Actor revealed Card face-up.
	OutcomeInfluenceLost

	// OutcomePlayerEliminated: Actor is out; Amount coins returned to
	// the treasury.
	OutcomePlayerEliminated

	// OutcomeCardsExchanged: Actor cycled influence through the deck.
	// Which cards moved stays hidden.
	OutcomeCardsExchanged
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCoinsGained:
		return "CoinsGained"
	case OutcomeCoinsSpent:
		return "CoinsSpent"
	case OutcomeCoinsStolen:
		return "CoinsStolen"
	case OutcomeActionBlocked:
		return "ActionBlocked"
	case OutcomeChallengeResolved:
		return "ChallengeResolved"
	case OutcomeInfluenceLost:
		return "InfluenceLost"
	case OutcomePlayerEliminated:
		return "PlayerEliminated"
	case OutcomeCardsExchanged:
		return "CardsExchanged"
	default:
		return "Unknown"
	}
}

// Outcome is one public state change produced by a resolution step.
// Field meaning depends on Kind; unused fields are zero.
type Outcome struct {
	Kind     OutcomeKind
	Actor    PlayerID
	Target   PlayerID
	Card     Card
	Amount   int
	Truthful bool
}
