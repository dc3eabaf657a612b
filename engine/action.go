package engine

// ActKind enumerates the seven actions a player may open a turn with.
type ActKind uint8

const (
	Income ActKind = iota
	ForeignAid
	Tax
	Exchange
	Steal
	Assassinate
	Coup
)

func (k ActKind) String() string {
	switch k {
	case Income:
		return "Income"
	case ForeignAid:
		return "ForeignAid"
	case Tax:
		return "Tax"
	case Exchange:
		return "Exchange"
	case Steal:
		return "Steal"
	case Assassinate:
		return "Assassinate"
	case Coup:
		return "Coup"
	default:
		return "Unknown"
	}
}

// Coin amounts per action.
const (
	IncomeAmount     = 1
	ForeignAidAmount = 2
	TaxAmount        = 3
	StealAmount      = 2
	AssassinateCost  = 3
	CoupCost         = 7

	// ForcedCoupAt is the coin total at and above which Coup is the only
	// legal action.
	ForcedCoupAt = 10
)

// Cost is what the actor pays the treasury to attempt k. The cost is paid
// even when the action is later blocked.
func (k ActKind) Cost() int {
	switch k {
	case Assassinate:
		return AssassinateCost
	case Coup:
		return CoupCost
	default:
		return 0
	}
}

// Claim is the card k asserts the actor holds, or NoCard for actions that
// claim nothing.
func (k ActKind) Claim() Card {
	switch k {
	case Tax:
		return Duke
	case Exchange:
		return Ambassador
	case Steal:
		return Captain
	case Assassinate:
		return Assassin
	default:
		return NoCard
	}
}

// Targeted reports whether k names a victim.
func (k ActKind) Targeted() bool {
	switch k {
	case Steal, Assassinate, Coup:
		return true
	default:
		return false
	}
}

// BlockClaims lists the cards that may be claimed to block k, or nil when
// k cannot be blocked. ForeignAid may be blocked by anyone claiming Duke;
// the targeted kinds only by their victim.
func BlockClaims(k ActKind) []Card {
	switch k {
	case ForeignAid:
		return []Card{Duke}
	case Steal:
		return []Card{Captain, Ambassador}
	case Assassinate:
		return []Card{Contessa}
	default:
		return nil
	}
}

// ActionClass partitions actions by how the table may oppose them.
type ActionClass uint8

const (
	// ClassSafe actions resolve immediately: Income, Coup.
	ClassSafe ActionClass = iota

	// ClassOnlyBlockable actions claim nothing but can be blocked: ForeignAid.
	ClassOnlyBlockable

	// ClassOnlyChallengeable actions claim a card but cannot be blocked:
	// Tax, Exchange.
	ClassOnlyChallengeable

	// ClassReactable actions can be both blocked and challenged:
	// Steal, Assassinate.
	ClassReactable
)

// Class reports how k may be opposed.
func (k ActKind) Class() ActionClass {
	switch k {
	case Income, Coup:
		return ClassSafe
	case ForeignAid:
		return ClassOnlyBlockable
	case Tax, Exchange:
		return ClassOnlyChallengeable
	default:
		return ClassReactable
	}
}

// Action is a declared turn opener. Target is NoPlayer for untargeted
// kinds.
type Action struct {
	Actor  PlayerID
	Kind   ActKind
	Target PlayerID
}

// Block is a standing claim to stop the staged action.
type Block struct {
	Blocker PlayerID
	Claim   Card
}
