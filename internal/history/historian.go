// Package history streams per-game audit records to Redis so finished
// rounds can be replayed or inspected out of process.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// recordKeyPrefix namespaces per-game lists in Redis.
const recordKeyPrefix = "overthrow:game:"

// Record is one audit entry. Index orders records within a game.
type Record struct {
	GameID    uuid.UUID      `json:"gameId"`
	Index     int            `json:"index"`
	Kind      string         `json:"kind"`
	Actor     uint8          `json:"actor,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Historian publishes records. A nil Historian drops everything, so
// callers never need to guard.
type Historian struct {
	rdb *redis.Client
	log *logrus.Entry
}

// New wraps a connected Redis client.
func New(rdb *redis.Client, logger *logrus.Logger) *Historian {
	return &Historian{
		rdb: rdb,
		log: logger.WithField("component", "historian"),
	}
}

// Publish appends rec to its game's list with a bounded deadline.
func (h *Historian) Publish(ctx context.Context, rec Record) error {
	if h == nil || h.rdb == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal record: %w", err)
	}
	key := recordKeyPrefix + rec.GameID.String()
	if err := h.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("history: push record: %w", err)
	}
	return nil
}

// PublishAsync fires Publish on its own goroutine with a short timeout.
// Game progress never waits on Redis.
func (h *Historian) PublishAsync(rec Record) {
	if h == nil || h.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Publish(ctx, rec); err != nil {
			h.log.WithError(err).WithField("game", rec.GameID).
				Warn("dropping audit record")
		}
	}()
}
