package engine

const (
	// TreasuryCoins is the bank's total before dealing starting coins.
	TreasuryCoins = 50

	// StartingCoins is each player's opening stash, taken from the treasury.
	StartingCoins = 2
)

// Treasury is the shared bank. Player coins plus the treasury is constant
// for the whole game; coins only move, they are never created.
type Treasury struct {
	coins int
}

// NewTreasury funds the bank for n players: 50 minus the starting coins
// already dealt out.
func NewTreasury(n int) Treasury {
	return Treasury{coins: TreasuryCoins - n*StartingCoins}
}

// Remaining reports the bank's balance.
func (t *Treasury) Remaining() int { return t.coins }

// Withdraw takes up to n coins and returns how many were actually granted.
// A near-empty bank grants the remainder rather than failing the action.
func (t *Treasury) Withdraw(n int) int {
	if n > t.coins {
		n = t.coins
	}
	t.coins -= n
	return n
}

// Deposit returns n coins to the bank.
func (t *Treasury) Deposit(n int) {
	t.coins += n
}
