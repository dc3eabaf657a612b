// Package ws accepts websocket connections, pools waiting players into
// tables, and shuttles frames between clients and their game session.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xa888s/overthrow/engine"
	"github.com/xa888s/overthrow/internal/game"
	"github.com/xa888s/overthrow/internal/history"
	"github.com/xa888s/overthrow/internal/protocol"
)

// Options tunes the matchmaker.
type Options struct {
	// TableSize is how many players a game waits for.
	TableSize int

	// ReactionTimeout is passed through to each session.
	ReactionTimeout time.Duration

	// AllowedOrigins restricts browser connections; empty allows all.
	AllowedOrigins []string
}

// table binds a running session to its connected seats.
type table struct {
	session *game.Session
	seats   map[engine.PlayerID]*client
}

// Server owns the lobby and all running tables.
type Server struct {
	opts      Options
	log       *logrus.Logger
	historian *history.Historian

	mu      sync.Mutex
	waiting []*client
	tables  map[uuid.UUID]*table
}

// NewServer builds a matchmaking server. historian may be nil.
func NewServer(opts Options, historian *history.Historian, logger *logrus.Logger) *Server {
	if opts.TableSize < engine.MinPlayers {
		opts.TableSize = engine.MinPlayers
	}
	if opts.TableSize > engine.MaxPlayers {
		opts.TableSize = engine.MaxPlayers
	}
	return &Server{
		opts:      opts,
		log:       logger,
		historian: historian,
		tables:    make(map[uuid.UUID]*table),
	}
}

// ServeHTTP upgrades the connection and runs the client until it drops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		s.log.WithError(err).Debug("websocket accept failed")
		return
	}

	name := r.URL.Query().Get("name")
	c := &client{
		id:   uuid.New(),
		name: name,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if c.name == "" {
		c.name = "player-" + c.id.String()[:8]
	}
	s.log.WithFields(logrus.Fields{"client": c.id, "name": c.name}).Info("client connected")

	go c.writePump(r.Context())
	s.enqueue(c)
	s.readLoop(c, r)
	s.dropClient(c)
}

// enqueue parks the client in the lobby and deals a table once enough
// players wait.
func (s *Server) enqueue(c *client) {
	s.mu.Lock()
	s.waiting = append(s.waiting, c)
	if len(s.waiting) < s.opts.TableSize {
		s.mu.Unlock()
		return
	}
	players := s.waiting[:s.opts.TableSize]
	s.waiting = append([]*client(nil), s.waiting[s.opts.TableSize:]...)
	s.mu.Unlock()

	s.startTable(players)
}

func (s *Server) startTable(players []*client) {
	id := uuid.New()
	names := make([]string, len(players))
	seats := make(map[engine.PlayerID]*client, len(players))

	// Seat assignment happens under the lock: the players' read loops
	// consult these fields through sessionFor.
	s.mu.Lock()
	for i, c := range players {
		names[i] = c.name
		c.seat = engine.PlayerID(i + 1)
		c.table = id
		seats[c.seat] = c
	}
	s.mu.Unlock()

	tbl := &table{seats: seats}
	session, err := game.New(game.Config{
		ID:              id,
		Names:           names,
		Seed:            uint64(time.Now().UnixNano()),
		ReactionTimeout: s.opts.ReactionTimeout,
		Broadcast:       func(msg protocol.ServerMessage) { s.deliverAll(tbl, msg) },
		Send:            func(seat engine.PlayerID, msg protocol.ServerMessage) { s.deliverTo(tbl, seat, msg) },
		OnEnd:           s.reapTable,
		Historian:       s.historian,
		Logger:          s.log,
	})
	if err != nil {
		s.log.WithError(err).Error("table setup failed")
		s.mu.Lock()
		for _, c := range players {
			c.seat, c.table = engine.NoPlayer, uuid.Nil
		}
		s.mu.Unlock()
		return
	}
	tbl.session = session

	s.mu.Lock()
	s.tables[id] = tbl
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"game": id, "players": len(players)}).Info("table dealt")
	session.Start()
}

// readLoop feeds inbound frames to the client's session. A client with
// no table yet is told to wait.
func (s *Server) readLoop(c *client, r *http.Request) {
	for {
		_, data, err := c.conn.Read(r.Context())
		if err != nil {
			return
		}
		session := s.sessionFor(c)
		if session == nil {
			if b, err := (protocol.ServerMessage{Kind: protocol.KindNotReady}).Encode(); err == nil {
				c.trySend(b)
			}
			continue
		}
		session.HandleMessage(c.seat, data)
	}
}

func (s *Server) sessionFor(c *client) *game.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tbl, ok := s.tables[c.table]; ok {
		return tbl.session
	}
	return nil
}

// dropClient handles a closed connection: leave the lobby, and cancel
// the table if one was running.
func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	for i, w := range s.waiting {
		if w == c {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			break
		}
	}
	tbl := s.tables[c.table]
	s.mu.Unlock()

	// Cancel the table first: the GameCancelled broadcast must reach the
	// surviving seats, and deliverAll walks every seat including this one.
	if tbl != nil {
		tbl.session.HandleDisconnect(c.seat)
	}
	c.closeSend()
	s.log.WithField("client", c.id).Info("client disconnected")
}

// reapTable runs when a session ends or cancels: the table is removed
// and its connections are closed.
func (s *Server) reapTable(id uuid.UUID) {
	s.mu.Lock()
	tbl, ok := s.tables[id]
	delete(s.tables, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, c := range tbl.seats {
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "game over")
		}
	}
	s.log.WithField("game", id).Info("table reaped")
}

// deliverAll fans a message out to every seat at the table.
func (s *Server) deliverAll(tbl *table, msg protocol.ServerMessage) {
	b, err := msg.Encode()
	if err != nil {
		s.log.WithError(err).Error("encoding broadcast failed")
		return
	}
	for seat, c := range tbl.seats {
		if !c.trySend(b) {
			s.log.WithField("seat", seat).Warn("client send buffer full, dropping frame")
		}
	}
}

// deliverTo sends to one seat.
func (s *Server) deliverTo(tbl *table, seat engine.PlayerID, msg protocol.ServerMessage) {
	c, ok := tbl.seats[seat]
	if !ok {
		return
	}
	b, err := msg.Encode()
	if err != nil {
		s.log.WithError(err).Error("encoding message failed")
		return
	}
	if !c.trySend(b) {
		s.log.WithField("seat", seat).Warn("client send buffer full, dropping frame")
	}
}
