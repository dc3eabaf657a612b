// Package protocol defines the websocket wire format. Every message is
// a JSON object with exactly one key naming the message kind, or a bare
// string for kinds that carry no data.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("protocol: malformed message")

// ServerKind names a server-to-client message.
type ServerKind string

const (
	KindGameID          ServerKind = "GameId"
	KindPlayerID        ServerKind = "PlayerId"
	KindInfo            ServerKind = "Info"
	KindOutcome         ServerKind = "Outcome"
	KindActionChoices   ServerKind = "ActionChoices"
	KindReactionChoices ServerKind = "ReactionChoices"
	KindChallengeChoice ServerKind = "ChallengeChoice"
	KindBlockChoices    ServerKind = "BlockChoices"
	KindVictimChoices   ServerKind = "VictimChoices"
	KindOneFromThree    ServerKind = "OneFromThreeChoices"
	KindTwoFromFour     ServerKind = "TwoFromFourChoices"
	KindGameOver        ServerKind = "GameOver"
	KindGameCancelled   ServerKind = "GameCancelled"
	KindNotReady        ServerKind = "NotReady"
	KindInvalidResponse ServerKind = "InvalidResponse"
)

// ServerMessage is the outbound envelope. Data is nil for unit kinds,
// which marshal as a bare JSON string.
type ServerMessage struct {
	Kind ServerKind
	Data any
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	if m.Data == nil {
		return json.Marshal(string(m.Kind))
	}
	return json.Marshal(map[string]any{string(m.Kind): m.Data})
}

// Encode renders the message for the wire.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ClientKind names a client-to-server message.
type ClientKind string

const (
	KindAct          ClientKind = "Act"
	KindBlock        ClientKind = "Block"
	KindChallenge    ClientKind = "Challenge"
	KindPass         ClientKind = "Pass"
	KindChooseVictim ClientKind = "ChooseVictim"
	KindExchangeOne  ClientKind = "ExchangeOne"
	KindExchangeTwo  ClientKind = "ExchangeTwo"
)

// ClientMessage is the inbound envelope. Only the field matching Kind
// is populated.
type ClientMessage struct {
	Kind ClientKind

	Act          *ActRequest
	Block        *BlockRequest
	ChooseVictim string
	ExchangeOne  string
	ExchangeTwo  []string
}

// ActRequest declares an opening action.
type ActRequest struct {
	Kind   string `json:"kind"`
	Target uint8  `json:"target,omitempty"`
}

// BlockRequest declares a block and the card claimed for it.
type BlockRequest struct {
	Claim string `json:"claim"`
}

// UnmarshalJSON accepts both envelope forms: a bare string for unit
// kinds ("Pass", "Challenge") and a single-key object otherwise. A
// {"Challenge": false} object is an explicit pass.
func (m *ClientMessage) UnmarshalJSON(b []byte) error {
	var unit string
	if err := json.Unmarshal(b, &unit); err == nil {
		switch ClientKind(unit) {
		case KindPass, KindChallenge:
			m.Kind = ClientKind(unit)
			return nil
		default:
			return fmt.Errorf("%w: unknown unit kind %q", ErrMalformed, unit)
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(b, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(envelope) != 1 {
		return fmt.Errorf("%w: want exactly one key, got %d", ErrMalformed, len(envelope))
	}

	for key, raw := range envelope {
		m.Kind = ClientKind(key)
		switch m.Kind {
		case KindAct:
			m.Act = &ActRequest{}
			return unmarshalField(raw, m.Act)
		case KindBlock:
			m.Block = &BlockRequest{}
			return unmarshalField(raw, m.Block)
		case KindChallenge:
			var want bool
			if err := unmarshalField(raw, &want); err != nil {
				return err
			}
			if !want {
				m.Kind = KindPass
			}
			return nil
		case KindPass:
			return nil
		case KindChooseVictim:
			return unmarshalField(raw, &m.ChooseVictim)
		case KindExchangeOne:
			return unmarshalField(raw, &m.ExchangeOne)
		case KindExchangeTwo:
			if err := unmarshalField(raw, &m.ExchangeTwo); err != nil {
				return err
			}
			if len(m.ExchangeTwo) != 2 {
				return fmt.Errorf("%w: ExchangeTwo wants 2 cards, got %d", ErrMalformed, len(m.ExchangeTwo))
			}
			return nil
		default:
			return fmt.Errorf("%w: unknown kind %q", ErrMalformed, key)
		}
	}
	return fmt.Errorf("%w: empty envelope", ErrMalformed)
}

func unmarshalField(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Decode parses an inbound frame.
func Decode(b []byte) (ClientMessage, error) {
	var m ClientMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
