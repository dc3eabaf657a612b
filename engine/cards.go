package engine

// Card is one of the five influence kinds. Cards carry no identity beyond
// their kind; two Dukes are interchangeable.
type Card uint8

const (
	NoCard Card = iota
	Ambassador
	Assassin
	Captain
	Contessa
	Duke
)

// CardsPerKind is how many copies of each kind the deck starts with.
const CardsPerKind = 3

// AllCards lists every card kind once, in a fixed order.
var AllCards = [5]Card{Ambassador, Assassin, Captain, Contessa, Duke}

func (c Card) String() string {
	switch c {
	case Ambassador:
		return "Ambassador"
	case Assassin:
		return "Assassin"
	case Captain:
		return "Captain"
	case Contessa:
		return "Contessa"
	case Duke:
		return "Duke"
	default:
		return "NoCard"
	}
}

// Valid reports whether c is one of the five playable kinds.
func (c Card) Valid() bool {
	return c >= Ambassador && c <= Duke
}
