// internal/cache/historian.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// GameEventRecord is the minimal event shape pushed to the historian queue.
// A separate consumer drains the list and persists it; the game server only
// ever appends.
type GameEventRecord struct {
	RoomCode  string                 `json:"room_code"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Historian appends game events to a Redis list. A nil *Historian is valid
// and drops everything, so callers never need to branch on whether event
// logging is enabled.
type Historian struct {
	log   *logrus.Logger
	rdb   *redis.Client
	queue string
}

// NewHistorian connects the Redis client and verifies it with a ping.
func NewHistorian(log *logrus.Logger, addr string, db int, queue string) (*Historian, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Historian{log: log, rdb: rdb, queue: queue}, nil
}

// Record serialises the event and pushes it onto the queue. Failures are
// logged and swallowed; event logging must never block or fail game progress.
func (h *Historian) Record(roomCode, eventType string, payload map[string]interface{}) {
	if h == nil {
		return
	}
	record := GameEventRecord{
		RoomCode:  roomCode,
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		h.log.WithError(err).Warn("historian: marshal event failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
		h.log.WithError(err).WithField("queue", h.queue).Warn("historian: rpush failed")
	}
}

// Close releases the Redis connection.
func (h *Historian) Close() error {
	if h == nil {
		return nil
	}
	return h.rdb.Close()
}
