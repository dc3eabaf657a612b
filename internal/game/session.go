// Package game runs one table end to end: it owns the authoritative
// engine state, solicits decisions over the wire, enforces reaction
// deadlines, and tears the table down when a player drops.
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xa888s/overthrow/engine"
	"github.com/xa888s/overthrow/internal/history"
	"github.com/xa888s/overthrow/internal/protocol"
)

// DefaultReactionTimeout bounds every block/challenge window. Card
// choices and the turn opener are not timed: the game cannot proceed
// meaningfully without them, and there is no neutral default to pick.
const DefaultReactionTimeout = 10 * time.Second

// awaitKind says whose input the session is parked on.
type awaitKind uint8

const (
	awaitNone awaitKind = iota

	// awaitAction: the current player owes an opener.
	awaitAction

	// awaitReactions: opponents may block or challenge the staged
	// action, first response wins, deadline applies.
	awaitReactions

	// awaitCounter: the original actor may challenge the block.
	awaitCounter

	// awaitCard: somebody owes a card choice (victim or exchange).
	awaitCard
)

// Session is one running game. All mutation happens under Mu: inbound
// websocket frames, timer callbacks, and Start all serialize through
// it, so engine access is single-writer.
type Session struct {
	ID uuid.UUID

	Mu  sync.Mutex
	eng *engine.Game

	ReactionTimeout time.Duration

	// BroadcastFn sends to every connected player; SendFn to one seat.
	BroadcastFn func(msg protocol.ServerMessage)
	SendFn      func(id engine.PlayerID, msg protocol.ServerMessage)

	// OnEnd runs after GameOver or GameCancelled has been sent, so the
	// lobby can reap the session.
	OnEnd func(id uuid.UUID)

	Historian *history.Historian

	log *logrus.Entry

	started   bool
	finished  bool
	awaiting  awaitKind
	awaitSeq  int                      // bumped per window; stale timers bail out
	pending   map[engine.PlayerID]bool // seats yet to answer this window
	timer     *time.Timer
	recordIdx int
}

// Config carries everything a table needs. Broadcast and Send must be
// non-blocking; the websocket layer buffers per client.
type Config struct {
	ID              uuid.UUID
	Names           []string
	Seed            uint64
	ReactionTimeout time.Duration
	Broadcast       func(msg protocol.ServerMessage)
	Send            func(id engine.PlayerID, msg protocol.ServerMessage)
	OnEnd           func(id uuid.UUID)
	Historian       *history.Historian
	Logger          *logrus.Logger
}

// New deals a table. The session is inert until Start.
func New(cfg Config) (*Session, error) {
	eng, err := engine.NewGame(cfg.Seed, cfg.Names)
	if err != nil {
		return nil, fmt.Errorf("game: %w", err)
	}
	if cfg.ReactionTimeout <= 0 {
		cfg.ReactionTimeout = DefaultReactionTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		ID:              cfg.ID,
		eng:             eng,
		ReactionTimeout: cfg.ReactionTimeout,
		BroadcastFn:     cfg.Broadcast,
		SendFn:          cfg.Send,
		OnEnd:           cfg.OnEnd,
		Historian:       cfg.Historian,
		log:             logger.WithField("game", cfg.ID),
	}, nil
}

// Start announces identities and opens the first turn.
func (s *Session) Start() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.started || s.finished {
		return
	}
	s.started = true
	s.log.WithField("players", len(s.eng.Alive())).Info("game started")
	s.record("game_start", 0, map[string]any{"players": len(s.eng.Alive())})

	s.broadcast(protocol.ServerMessage{Kind: protocol.KindGameID, Data: s.ID})
	for _, id := range s.eng.Alive() {
		s.send(id, protocol.ServerMessage{Kind: protocol.KindPlayerID, Data: uint8(id)})
	}
	s.sendInfo()
	s.solicitAction()
}

// HandleMessage routes one inbound frame from a seat. Malformed or
// out-of-turn messages are answered with InvalidResponse and change
// nothing; the current window and its deadline stay as they are.
func (s *Session) HandleMessage(seat engine.PlayerID, raw []byte) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if !s.started {
		s.send(seat, protocol.ServerMessage{Kind: protocol.KindNotReady})
		return
	}
	if s.finished {
		return
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		s.reject(seat, err.Error())
		return
	}

	switch msg.Kind {
	case protocol.KindAct:
		s.handleAct(seat, msg.Act)
	case protocol.KindBlock:
		s.handleBlock(seat, msg.Block)
	case protocol.KindChallenge:
		s.handleChallenge(seat)
	case protocol.KindPass:
		s.handlePass(seat)
	case protocol.KindChooseVictim:
		s.handleCardChoice(seat, protocol.KindChooseVictim, msg.ChooseVictim, nil)
	case protocol.KindExchangeOne:
		s.handleCardChoice(seat, protocol.KindExchangeOne, msg.ExchangeOne, nil)
	case protocol.KindExchangeTwo:
		s.handleCardChoice(seat, protocol.KindExchangeTwo, "", msg.ExchangeTwo)
	default:
		s.reject(seat, "unknown message kind")
	}
}

// HandleDisconnect cancels the table: the game state is unrecoverable
// without all seats, so everyone is told and the session ends.
func (s *Session) HandleDisconnect(seat engine.PlayerID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.finished {
		return
	}
	s.log.WithField("player", seat).Info("player disconnected, cancelling game")
	s.record("game_cancelled", uint8(seat), map[string]any{"reason": "disconnect"})

	s.stopTimer()
	s.broadcast(protocol.ServerMessage{
		Kind: protocol.KindGameCancelled,
		Data: protocol.CancelledView{Reason: fmt.Sprintf("player %d disconnected", seat)},
	})
	s.finish()
}

// ---------------------------------------------------------------------------
// Inbound handlers — all called with Mu held
// ---------------------------------------------------------------------------

func (s *Session) handleAct(seat engine.PlayerID, req *protocol.ActRequest) {
	if s.awaiting != awaitAction || seat != s.eng.CurrentPlayer() {
		s.reject(seat, "no action expected from you")
		return
	}
	action, err := protocol.ActionFromRequest(seat, req)
	if err != nil {
		s.reject(seat, err.Error())
		return
	}
	class, err := s.eng.Stage(action)
	if err != nil {
		s.reject(seat, err.Error())
		return
	}

	s.log.WithFields(logrus.Fields{
		"player": seat,
		"action": action.Kind.String(),
		"target": action.Target,
	}).Debug("action staged")
	s.record("action", uint8(seat), map[string]any{
		"kind":   action.Kind.String(),
		"target": uint8(action.Target),
	})

	switch class {
	case engine.ClassSafe:
		s.resolveUnopposed()
	case engine.ClassOnlyChallengeable:
		s.solicitChallenges()
	case engine.ClassOnlyBlockable:
		s.solicitBlocks()
	case engine.ClassReactable:
		s.solicitReactions()
	}
}

// Reactions that miss their window are dropped without a rejection: a
// reactor who lost the race to a faster response was not misbehaving,
// and the settled state already went out in the next Info.

func (s *Session) handleBlock(seat engine.PlayerID, req *protocol.BlockRequest) {
	if s.awaiting != awaitReactions || !s.pending[seat] {
		s.log.WithField("player", seat).Debug("late block discarded")
		return
	}
	if req == nil {
		s.reject(seat, "missing block claim")
		return
	}
	claim, err := protocol.CardFromName(req.Claim)
	if err != nil {
		s.reject(seat, err.Error())
		return
	}
	if err := s.eng.StageBlock(engine.Block{Blocker: seat, Claim: claim}); err != nil {
		s.reject(seat, err.Error())
		return
	}

	s.log.WithFields(logrus.Fields{"player": seat, "claim": claim.String()}).Debug("block staged")
	s.record("block", uint8(seat), map[string]any{"claim": claim.String()})
	s.solicitCounter()
}

func (s *Session) handleChallenge(seat engine.PlayerID) {
	if (s.awaiting != awaitReactions && s.awaiting != awaitCounter) || !s.pending[seat] {
		s.log.WithField("player", seat).Debug("late challenge discarded")
		return
	}
	out, err := s.eng.ResolveChallenge(seat)
	if err != nil {
		s.reject(seat, err.Error())
		return
	}

	s.log.WithField("player", seat).Debug("challenge declared")
	s.record("challenge", uint8(seat), nil)
	s.stopTimer()
	s.continueAfter(out)
}

func (s *Session) handlePass(seat engine.PlayerID) {
	if (s.awaiting != awaitReactions && s.awaiting != awaitCounter) || !s.pending[seat] {
		s.log.WithField("player", seat).Debug("late pass discarded")
		return
	}
	delete(s.pending, seat)
	if len(s.pending) > 0 {
		return
	}
	s.stopTimer()
	s.windowClosed()
}

func (s *Session) handleCardChoice(seat engine.PlayerID, kind protocol.ClientKind, card string, pair []string) {
	if s.awaiting != awaitCard || seat != s.eng.Chooser() {
		s.reject(seat, "no card choice expected from you")
		return
	}

	var out []engine.Outcome
	var err error
	switch {
	case kind == protocol.KindChooseVictim && s.eng.Phase() == engine.PhaseChooseVictimCard:
		var c engine.Card
		if c, err = protocol.CardFromName(card); err == nil {
			out, err = s.eng.ChooseVictimCard(c)
		}
	case kind == protocol.KindExchangeOne && s.eng.Phase() == engine.PhaseChooseOneFromThree:
		var c engine.Card
		if c, err = protocol.CardFromName(card); err == nil {
			out, err = s.eng.ChooseOneFromThree(c)
		}
	case kind == protocol.KindExchangeTwo && s.eng.Phase() == engine.PhaseChooseTwoFromFour:
		var c1, c2 engine.Card
		if c1, err = protocol.CardFromName(pair[0]); err == nil {
			if c2, err = protocol.CardFromName(pair[1]); err == nil {
				out, err = s.eng.ChooseTwoFromFour([2]engine.Card{c1, c2})
			}
		}
	default:
		err = fmt.Errorf("choice kind %s does not match the outstanding one", kind)
	}
	if err != nil {
		s.reject(seat, err.Error())
		return
	}

	s.record("card_choice", uint8(seat), map[string]any{"kind": string(kind)})
	s.continueAfter(out)
}

// ---------------------------------------------------------------------------
// Solicitation windows
// ---------------------------------------------------------------------------

// solicitAction opens the turn: only the current player is asked, and
// no deadline runs.
func (s *Session) solicitAction() {
	current := s.eng.CurrentPlayer()
	s.openWindow(awaitAction, []engine.PlayerID{current})
	s.send(current, protocol.ServerMessage{
		Kind: protocol.KindActionChoices,
		Data: protocol.ActionViews(s.eng.LegalActions()),
	})
}

func (s *Session) solicitChallenges() {
	action, _ := s.eng.StagedAction()
	challengers := s.eng.Challengers()
	deadline := s.openTimedWindow(awaitReactions, challengers)
	view := protocol.ChallengeView{
		Claimant:       uint8(action.Actor),
		Claim:          protocol.CardName(action.Kind.Claim()),
		DeadlineMillis: deadline,
	}
	for _, id := range challengers {
		s.send(id, protocol.ServerMessage{Kind: protocol.KindChallengeChoice, Data: view})
	}
}

func (s *Session) solicitBlocks() {
	action, _ := s.eng.StagedAction()
	blockers := make([]engine.PlayerID, 0)
	for _, b := range s.eng.Blocks() {
		blockers = append(blockers, b.Blocker)
	}
	deadline := s.openTimedWindow(awaitReactions, blockers)
	view := protocol.BlockOptionsView{
		Actor:          uint8(action.Actor),
		Kind:           action.Kind.String(),
		Claims:         protocol.BlockClaimNames(action.Kind),
		DeadlineMillis: deadline,
	}
	for _, id := range blockers {
		s.send(id, protocol.ServerMessage{Kind: protocol.KindBlockChoices, Data: view})
	}
}

// solicitReactions handles Steal and Assassinate: the victim may block
// or challenge, everyone else may only challenge, one shared window.
func (s *Session) solicitReactions() {
	action, _ := s.eng.StagedAction()
	responders := s.eng.Challengers()
	deadline := s.openTimedWindow(awaitReactions, responders)

	victimView := protocol.ReactionOptionsView{
		Actor:          uint8(action.Actor),
		Kind:           action.Kind.String(),
		Claims:         protocol.BlockClaimNames(action.Kind),
		CanChallenge:   true,
		DeadlineMillis: deadline,
	}
	challengeView := protocol.ChallengeView{
		Claimant:       uint8(action.Actor),
		Claim:          protocol.CardName(action.Kind.Claim()),
		DeadlineMillis: deadline,
	}
	for _, id := range responders {
		if id == action.Target {
			s.send(id, protocol.ServerMessage{Kind: protocol.KindReactionChoices, Data: victimView})
		} else {
			s.send(id, protocol.ServerMessage{Kind: protocol.KindChallengeChoice, Data: challengeView})
		}
	}
}

// solicitCounter asks the original actor whether they challenge the
// block. Nobody else gets a say.
func (s *Session) solicitCounter() {
	action, _ := s.eng.StagedAction()
	block, _ := s.eng.ActiveBlock()
	counters := s.eng.Challengers()
	if len(counters) == 0 {
		s.resolveBlocked()
		return
	}
	deadline := s.openTimedWindow(awaitCounter, counters)
	view := protocol.ChallengeView{
		Claimant:       uint8(block.Blocker),
		Claim:          protocol.CardName(block.Claim),
		DeadlineMillis: deadline,
	}
	s.send(action.Actor, protocol.ServerMessage{Kind: protocol.KindChallengeChoice, Data: view})
}

// openWindow resets solicitation state. Any timer from the previous
// window is dead: its sequence number no longer matches.
func (s *Session) openWindow(kind awaitKind, responders []engine.PlayerID) {
	s.stopTimer()
	s.awaiting = kind
	s.awaitSeq++
	s.pending = make(map[engine.PlayerID]bool, len(responders))
	for _, id := range responders {
		s.pending[id] = true
	}
}

// openTimedWindow also arms the reaction deadline and returns it as
// unix milliseconds for the wire.
func (s *Session) openTimedWindow(kind awaitKind, responders []engine.PlayerID) int64 {
	s.openWindow(kind, responders)
	seq := s.awaitSeq
	s.timer = time.AfterFunc(s.ReactionTimeout, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.finished || s.awaitSeq != seq {
			return
		}
		s.log.Debug("reaction window timed out, remaining responders pass")
		s.windowClosed()
	})
	return time.Now().Add(s.ReactionTimeout).UnixMilli()
}

// windowClosed fires when every solicited player has passed, explicitly
// or by deadline.
func (s *Session) windowClosed() {
	switch s.awaiting {
	case awaitCounter:
		s.resolveBlocked()
	case awaitReactions:
		s.resolveUnopposed()
	}
}

// ---------------------------------------------------------------------------
// Resolution plumbing
// ---------------------------------------------------------------------------

func (s *Session) resolveUnopposed() {
	out, err := s.eng.ResolveUnopposed()
	if err != nil {
		s.log.WithError(err).Error("unopposed resolution failed")
		return
	}
	s.continueAfter(out)
}

func (s *Session) resolveBlocked() {
	out, err := s.eng.ResolveBlocked()
	if err != nil {
		s.log.WithError(err).Error("blocked resolution failed")
		return
	}
	s.continueAfter(out)
}

// continueAfter publishes outcomes and opens whatever window the engine
// parked on.
func (s *Session) continueAfter(outcomes []engine.Outcome) {
	for _, o := range outcomes {
		s.broadcast(protocol.ServerMessage{
			Kind: protocol.KindOutcome,
			Data: protocol.OutcomeViewOf(o),
		})
		s.record("outcome", uint8(o.Actor), map[string]any{"kind": o.Kind.String()})
	}
	s.sendInfo()

	switch s.eng.Phase() {
	case engine.PhaseWait:
		s.solicitAction()

	case engine.PhaseChooseVictimCard:
		s.openWindow(awaitCard, []engine.PlayerID{s.eng.Chooser()})
		s.send(s.eng.Chooser(), protocol.ServerMessage{
			Kind: protocol.KindVictimChoices,
			Data: protocol.CardChoices(s.eng.Choices()),
		})

	case engine.PhaseChooseOneFromThree:
		s.openWindow(awaitCard, []engine.PlayerID{s.eng.Chooser()})
		s.send(s.eng.Chooser(), protocol.ServerMessage{
			Kind: protocol.KindOneFromThree,
			Data: protocol.CardChoices(s.eng.Choices()),
		})

	case engine.PhaseChooseTwoFromFour:
		s.openWindow(awaitCard, []engine.PlayerID{s.eng.Chooser()})
		s.send(s.eng.Chooser(), protocol.ServerMessage{
			Kind: protocol.KindTwoFromFour,
			Data: protocol.CardChoices(s.eng.Choices()),
		})

	case engine.PhaseEnd:
		s.endGame()
	}
}

func (s *Session) endGame() {
	summary, err := s.eng.Summary()
	if err != nil {
		s.log.WithError(err).Error("summary unavailable at game end")
		return
	}
	s.log.WithFields(logrus.Fields{
		"winner": summary.Winner,
		"turns":  summary.TurnsPlayed,
	}).Info("game over")
	s.record("game_over", uint8(summary.Winner), map[string]any{
		"turns": summary.TurnsPlayed,
	})

	s.stopTimer()
	s.broadcast(protocol.ServerMessage{
		Kind: protocol.KindGameOver,
		Data: protocol.GameOverViewOf(summary),
	})
	s.finish()
}

// finish marks the session dead and notifies the owner. Mu held.
func (s *Session) finish() {
	s.finished = true
	s.awaiting = awaitNone
	s.awaitSeq++
	if s.OnEnd != nil {
		// Outside the lock: the lobby will likely want to touch us.
		go s.OnEnd(s.ID)
	}
}

// ---------------------------------------------------------------------------
// Outbound helpers — Mu held
// ---------------------------------------------------------------------------

func (s *Session) broadcast(msg protocol.ServerMessage) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(msg)
	}
}

func (s *Session) send(id engine.PlayerID, msg protocol.ServerMessage) {
	if s.SendFn != nil {
		s.SendFn(id, msg)
	}
}

// sendInfo pushes each seat its own redacted snapshot.
func (s *Session) sendInfo() {
	info := s.eng.Snapshot()
	for _, p := range info.Players {
		s.send(p.ID, protocol.ServerMessage{
			Kind: protocol.KindInfo,
			Data: protocol.BuildInfo(info, p.ID),
		})
	}
}

func (s *Session) reject(seat engine.PlayerID, reason string) {
	s.send(seat, protocol.ServerMessage{
		Kind: protocol.KindInvalidResponse,
		Data: protocol.InvalidView{Reason: reason},
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// record queues an audit entry; a nil historian drops it.
func (s *Session) record(kind string, actor uint8, payload map[string]any) {
	s.recordIdx++
	s.Historian.PublishAsync(history.Record{
		GameID:    s.ID,
		Index:     s.recordIdx,
		Kind:      kind,
		Actor:     actor,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}
