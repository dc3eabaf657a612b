package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xa888s/overthrow/engine"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func lobbyClient(name string) *client {
	return &client{
		id:   uuid.New(),
		name: name,
		send: make(chan []byte, sendBuffer),
	}
}

// frameKind extracts the message kind from an outbound frame: a bare
// string, or the single key of the envelope object.
func frameKind(t *testing.T, b []byte) string {
	t.Helper()
	var unit string
	if err := json.Unmarshal(b, &unit); err == nil {
		return unit
	}
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &obj))
	require.Len(t, obj, 1)
	for k := range obj {
		return k
	}
	return ""
}

func drainKinds(t *testing.T, c *client) []string {
	t.Helper()
	var kinds []string
	for {
		select {
		case b := <-c.send:
			kinds = append(kinds, frameKind(t, b))
		default:
			return kinds
		}
	}
}

func TestLobbyWaitsBelowTableSize(t *testing.T) {
	s := NewServer(Options{TableSize: 3}, nil, quietLogger())

	a, b := lobbyClient("alice"), lobbyClient("bob")
	s.enqueue(a)
	s.enqueue(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.waiting, 2)
	assert.Empty(t, s.tables)
	assert.Equal(t, engine.NoPlayer, a.seat)
	assert.Empty(t, a.send)
}

func TestLobbyDealsTableAtCapacity(t *testing.T) {
	s := NewServer(Options{TableSize: 2}, nil, quietLogger())

	a, b := lobbyClient("alice"), lobbyClient("bob")
	s.enqueue(a)
	s.enqueue(b)

	s.mu.Lock()
	assert.Empty(t, s.waiting)
	require.Len(t, s.tables, 1)
	s.mu.Unlock()

	require.Equal(t, engine.PlayerID(1), a.seat)
	require.Equal(t, engine.PlayerID(2), b.seat)
	require.Equal(t, a.table, b.table)
	require.NotNil(t, s.sessionFor(a))

	aKinds := drainKinds(t, a)
	bKinds := drainKinds(t, b)
	for _, kinds := range [][]string{aKinds, bKinds} {
		assert.Contains(t, kinds, "GameId")
		assert.Contains(t, kinds, "PlayerId")
		assert.Contains(t, kinds, "Info")
	}

	// Exactly one seat opens the game.
	openers := 0
	for _, kinds := range [][]string{aKinds, bKinds} {
		for _, k := range kinds {
			if k == "ActionChoices" {
				openers++
			}
		}
	}
	assert.Equal(t, 1, openers)
}

func TestMidGameDisconnectCancelsForSurvivors(t *testing.T) {
	s := NewServer(Options{TableSize: 2}, nil, quietLogger())

	a, b := lobbyClient("alice"), lobbyClient("bob")
	s.enqueue(a)
	s.enqueue(b)
	drainKinds(t, a)
	drainKinds(t, b)

	s.dropClient(a)

	assert.Contains(t, drainKinds(t, b), "GameCancelled")

	// The dropped client's queue drains and closes; nothing may send on
	// it afterwards.
	for range a.send {
	}
	assert.False(t, a.trySend([]byte("x")))
}

func TestDropFromLobbyRemovesWaitingClient(t *testing.T) {
	s := NewServer(Options{TableSize: 3}, nil, quietLogger())

	a := lobbyClient("alice")
	s.enqueue(a)
	s.dropClient(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.waiting)

	// The send channel is closed so the write pump exits.
	_, open := <-a.send
	assert.False(t, open)
}
