package game

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xa888s/overthrow/engine"
	"github.com/xa888s/overthrow/internal/protocol"
)

// mockSink captures outbound messages for assertions.
type mockSink struct {
	mu         sync.Mutex
	broadcasts []protocol.ServerMessage
	perPlayer  map[engine.PlayerID][]protocol.ServerMessage
}

func newMockSink() *mockSink {
	return &mockSink{perPlayer: make(map[engine.PlayerID][]protocol.ServerMessage)}
}

func (m *mockSink) broadcastFn(msg protocol.ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, msg)
}

func (m *mockSink) sendFn(id engine.PlayerID, msg protocol.ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perPlayer[id] = append(m.perPlayer[id], msg)
}

// lastTo returns the newest message of the given kind sent to a seat.
func (m *mockSink) lastTo(id engine.PlayerID, kind protocol.ServerKind) *protocol.ServerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.perPlayer[id]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == kind {
			return &msgs[i]
		}
	}
	return nil
}

// lastBroadcast returns the newest broadcast of the given kind.
func (m *mockSink) lastBroadcast(kind protocol.ServerKind) *protocol.ServerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.broadcasts) - 1; i >= 0; i-- {
		if m.broadcasts[i].Kind == kind {
			return &m.broadcasts[i]
		}
	}
	return nil
}

func (m *mockSink) countBroadcasts(kind protocol.ServerKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.broadcasts {
		if b.Kind == kind {
			n++
		}
	}
	return n
}

// setupSession builds a started two-player table with a short reaction
// deadline so timeout paths run quickly in tests.
func setupSession(t *testing.T, seed uint64, names ...string) (*Session, *mockSink) {
	t.Helper()
	sink := newMockSink()
	s, err := New(Config{
		ID:              uuid.New(),
		Names:           names,
		Seed:            seed,
		ReactionTimeout: 80 * time.Millisecond,
		Broadcast:       sink.broadcastFn,
		Send:            sink.sendFn,
	})
	require.NoError(t, err)
	return s, sink
}

// sendJSON delivers a raw client frame to the session.
func sendJSON(s *Session, seat engine.PlayerID, format string, args ...any) {
	s.HandleMessage(seat, []byte(fmt.Sprintf(format, args...)))
}

func currentPlayer(s *Session) engine.PlayerID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.eng.CurrentPlayer()
}

func otherPlayer(s *Session, id engine.PlayerID) engine.PlayerID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for _, p := range s.eng.Alive() {
		if p != id {
			return p
		}
	}
	return engine.NoPlayer
}

// forceHand rewrites a seat's hidden hand before play starts.
func forceHand(s *Session, id engine.PlayerID, cards ...engine.Card) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.eng.Player(id).Hand = append([]engine.Card(nil), cards...)
}

func forceCoins(s *Session, id engine.PlayerID, coins int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.eng.Player(id).Coins = coins
}

func TestStartAnnouncesSeatsAndSolicitsOpener(t *testing.T) {
	s, sink := setupSession(t, 21, "ana", "bo")
	s.Start()

	assert.NotNil(t, sink.lastBroadcast(protocol.KindGameID))
	for _, id := range []engine.PlayerID{1, 2} {
		require.NotNil(t, sink.lastTo(id, protocol.KindPlayerID), "seat %d missing PlayerId", id)
		info := sink.lastTo(id, protocol.KindInfo)
		require.NotNil(t, info, "seat %d missing Info", id)

		view := info.Data.(protocol.InfoView)
		for _, pv := range view.Players {
			if pv.ID == uint8(id) {
				assert.Len(t, pv.Hand, 2, "own hand must be visible")
			} else {
				assert.Empty(t, pv.Hand, "foreign hand must be redacted")
			}
		}
	}

	cur := currentPlayer(s)
	choices := sink.lastTo(cur, protocol.KindActionChoices)
	require.NotNil(t, choices)
	assert.NotEmpty(t, choices.Data.([]protocol.ActionView))
	assert.Nil(t, sink.lastTo(otherPlayer(s, cur), protocol.KindActionChoices))
}

func TestIncomeResolvesImmediatelyAndPassesTurn(t *testing.T) {
	s, sink := setupSession(t, 22, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)
	next := otherPlayer(s, cur)

	sendJSON(s, cur, `{"Act": {"kind": "Income"}}`)

	out := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, out)
	view := out.Data.(protocol.OutcomeView)
	assert.Equal(t, "CoinsGained", view.Kind)
	assert.Equal(t, 1, view.Amount)

	assert.Equal(t, next, currentPlayer(s))
	assert.NotNil(t, sink.lastTo(next, protocol.KindActionChoices))
}

func TestOutOfTurnAndMalformedMessagesAreIgnored(t *testing.T) {
	s, sink := setupSession(t, 23, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)
	other := otherPlayer(s, cur)

	sendJSON(s, other, `{"Act": {"kind": "Income"}}`)
	require.NotNil(t, sink.lastTo(other, protocol.KindInvalidResponse))
	assert.Nil(t, sink.lastBroadcast(protocol.KindOutcome))

	sendJSON(s, cur, `{{{not json`)
	require.NotNil(t, sink.lastTo(cur, protocol.KindInvalidResponse))

	// The window is untouched: the current player can still act.
	sendJSON(s, cur, `{"Act": {"kind": "Income"}}`)
	assert.NotNil(t, sink.lastBroadcast(protocol.KindOutcome))
}

func TestLateReactionAfterWindowCloseIsDiscarded(t *testing.T) {
	s, sink := setupSession(t, 33, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)
	other := otherPlayer(s, cur)

	sendJSON(s, cur, `{"Act": {"kind": "Tax"}}`)
	sendJSON(s, other, `"Pass"`)
	require.NotNil(t, sink.lastBroadcast(protocol.KindOutcome))

	// The race loser's challenge lands after the window settled: no
	// rejection, no effect on the resolved turn.
	sendJSON(s, other, `"Challenge"`)

	assert.Nil(t, sink.lastTo(other, protocol.KindInvalidResponse))
	view := sink.lastBroadcast(protocol.KindOutcome).Data.(protocol.OutcomeView)
	assert.Equal(t, "CoinsGained", view.Kind)
	assert.Equal(t, 3, view.Amount)
}

func TestReactionWindowTimesOutToImplicitPass(t *testing.T) {
	s, sink := setupSession(t, 24, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)

	sendJSON(s, cur, `{"Act": {"kind": "Tax"}}`)

	// A challenge window is open for the opponent; nothing resolved yet.
	require.NotNil(t, sink.lastTo(otherPlayer(s, cur), protocol.KindChallengeChoice))
	assert.Nil(t, sink.lastBroadcast(protocol.KindOutcome))

	require.Eventually(t, func() bool {
		return sink.lastBroadcast(protocol.KindOutcome) != nil
	}, time.Second, 10*time.Millisecond, "tax should resolve after the deadline")

	view := sink.lastBroadcast(protocol.KindOutcome).Data.(protocol.OutcomeView)
	assert.Equal(t, "CoinsGained", view.Kind)
	assert.Equal(t, 3, view.Amount)
}

func TestExplicitPassClosesWindowEarly(t *testing.T) {
	s, sink := setupSession(t, 25, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)

	sendJSON(s, cur, `{"Act": {"kind": "Tax"}}`)
	sendJSON(s, otherPlayer(s, cur), `"Pass"`)

	// No waiting on the deadline.
	out := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, out)
	assert.Equal(t, "CoinsGained", out.Data.(protocol.OutcomeView).Kind)
}

func TestTruthfulChallengeStillPaysTheClaim(t *testing.T) {
	s, sink := setupSession(t, 26, "ana", "bo")
	cur := currentPlayer(s)
	challenger := otherPlayer(s, cur)
	forceHand(s, cur, engine.Duke, engine.Assassin)
	forceHand(s, challenger, engine.Captain, engine.Contessa)
	s.Start()

	sendJSON(s, cur, `{"Act": {"kind": "Tax"}}`)
	sendJSON(s, challenger, `"Challenge"`)

	resolved := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, resolved)

	// Challenger must now pick which influence to give up.
	victims := sink.lastTo(challenger, protocol.KindVictimChoices)
	require.NotNil(t, victims)
	assert.Len(t, victims.Data.([]string), 2)

	sendJSON(s, challenger, `{"ChooseVictim": "Captain"}`)

	gained := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, gained)
	view := gained.Data.(protocol.OutcomeView)
	assert.Equal(t, "CoinsGained", view.Kind)
	assert.Equal(t, uint8(cur), view.Actor)
	assert.Equal(t, 3, view.Amount)
}

func TestBlockAndCounterChallengeFlow(t *testing.T) {
	s, sink := setupSession(t, 27, "ana", "bo")
	cur := currentPlayer(s)
	victim := otherPlayer(s, cur)
	forceHand(s, victim, engine.Duke, engine.Assassin) // will bluff Captain
	s.Start()

	sendJSON(s, cur, `{"Act": {"kind": "Steal", "target": %d}}`, victim)

	// Victim is offered block-or-challenge options.
	opts := sink.lastTo(victim, protocol.KindReactionChoices)
	require.NotNil(t, opts)
	assert.ElementsMatch(t, []string{"Captain", "Ambassador"}, opts.Data.(protocol.ReactionOptionsView).Claims)

	sendJSON(s, victim, `{"Block": {"claim": "Captain"}}`)

	// Only the original actor may counter-challenge.
	counter := sink.lastTo(cur, protocol.KindChallengeChoice)
	require.NotNil(t, counter)
	assert.Equal(t, uint8(victim), counter.Data.(protocol.ChallengeView).Claimant)

	sendJSON(s, cur, `"Challenge"`)

	// Bluff exposed: victim picks a card to lose, then the steal lands.
	require.NotNil(t, sink.lastTo(victim, protocol.KindVictimChoices))
	sendJSON(s, victim, `{"ChooseVictim": "Duke"}`)

	stolen := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, stolen)
	view := stolen.Data.(protocol.OutcomeView)
	assert.Equal(t, "CoinsStolen", view.Kind)
	assert.Equal(t, 2, view.Amount)
}

func TestBlockStandsWhenActorPasses(t *testing.T) {
	s, sink := setupSession(t, 28, "ana", "bo")
	cur := currentPlayer(s)
	victim := otherPlayer(s, cur)
	s.Start()

	sendJSON(s, cur, `{"Act": {"kind": "ForeignAid"}}`)
	require.NotNil(t, sink.lastTo(victim, protocol.KindBlockChoices))

	sendJSON(s, victim, `{"Block": {"claim": "Duke"}}`)
	sendJSON(s, cur, `"Pass"`)

	blocked := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, blocked)
	assert.Equal(t, "ActionBlocked", blocked.Data.(protocol.OutcomeView).Kind)
}

func TestExchangeRoundTrip(t *testing.T) {
	s, sink := setupSession(t, 29, "ana", "bo")
	cur := currentPlayer(s)
	other := otherPlayer(s, cur)
	s.Start()

	sendJSON(s, cur, `{"Act": {"kind": "Exchange"}}`)
	sendJSON(s, other, `"Pass"`)

	offer := sink.lastTo(cur, protocol.KindTwoFromFour)
	require.NotNil(t, offer)
	cards := offer.Data.([]string)
	require.Len(t, cards, 4)

	pick, _ := json.Marshal([2]string{cards[0], cards[1]})
	sendJSON(s, cur, `{"ExchangeTwo": %s}`, pick)

	out := sink.lastBroadcast(protocol.KindOutcome)
	require.NotNil(t, out)
	assert.Equal(t, "CardsExchanged", out.Data.(protocol.OutcomeView).Kind)
	assert.Equal(t, other, currentPlayer(s))
}

func TestCoupEndsGameWithSummary(t *testing.T) {
	s, sink := setupSession(t, 30, "ana", "bo")
	cur := currentPlayer(s)
	victim := otherPlayer(s, cur)
	forceCoins(s, cur, 7)
	forceHand(s, victim, engine.Contessa)

	ended := make(chan uuid.UUID, 1)
	s.OnEnd = func(id uuid.UUID) { ended <- id }
	s.Start()

	sendJSON(s, cur, `{"Act": {"kind": "Coup", "target": %d}}`, victim)

	over := sink.lastBroadcast(protocol.KindGameOver)
	require.NotNil(t, over)
	view := over.Data.(protocol.GameOverView)
	assert.Equal(t, uint8(cur), view.Winner)
	assert.Equal(t, []uint8{uint8(victim)}, view.Eliminated)

	select {
	case id := <-ended:
		assert.Equal(t, s.ID, id)
	case <-time.After(time.Second):
		t.Fatal("OnEnd was not called")
	}

	// A finished table ignores further play.
	before := sink.countBroadcasts(protocol.KindOutcome)
	sendJSON(s, cur, `{"Act": {"kind": "Income"}}`)
	assert.Equal(t, before, sink.countBroadcasts(protocol.KindOutcome))
}

func TestDisconnectCancelsForEveryone(t *testing.T) {
	s, sink := setupSession(t, 31, "ana", "bo")
	s.Start()
	cur := currentPlayer(s)

	ended := make(chan uuid.UUID, 1)
	s.Mu.Lock()
	s.OnEnd = func(id uuid.UUID) { ended <- id }
	s.Mu.Unlock()

	s.HandleDisconnect(otherPlayer(s, cur))

	cancelled := sink.lastBroadcast(protocol.KindGameCancelled)
	require.NotNil(t, cancelled)
	assert.Contains(t, cancelled.Data.(protocol.CancelledView).Reason, "disconnected")

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnd was not called on cancel")
	}

	before := sink.countBroadcasts(protocol.KindOutcome)
	sendJSON(s, cur, `{"Act": {"kind": "Income"}}`)
	assert.Equal(t, before, sink.countBroadcasts(protocol.KindOutcome))
}

func TestMessagesBeforeStartGetNotReady(t *testing.T) {
	s, sink := setupSession(t, 32, "ana", "bo")
	sendJSON(s, 1, `{"Act": {"kind": "Income"}}`)
	assert.NotNil(t, sink.lastTo(1, protocol.KindNotReady))
}
