// internal/janitor/janitor.go
package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/falroman/partyquiz/internal/lobby"
	"github.com/falroman/partyquiz/internal/room"
)

// GameStopper is the slice of the orchestrator the janitor needs: discarding
// the live game of a room that is being torn down.
type GameStopper interface {
	StopGame(code string)
}

// Janitor periodically collects hostless rooms and evicts players whose
// disconnect outlasted the grace period.
type Janitor struct {
	log      *logrus.Logger
	registry *room.Registry
	lobby    *lobby.Manager
	games    GameStopper

	interval time.Duration
	hostTTL  time.Duration
	grace    time.Duration
}

// New wires a janitor with its cleanup tunables.
func New(log *logrus.Logger, registry *room.Registry, mgr *lobby.Manager, games GameStopper, interval, hostTTL, grace time.Duration) *Janitor {
	return &Janitor{
		log:      log,
		registry: registry,
		lobby:    mgr,
		games:    games,
		interval: interval,
		hostTTL:  hostTTL,
		grace:    grace,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.WithFields(logrus.Fields{
		"interval": j.interval,
		"hostTTL":  j.hostTTL,
		"grace":    j.grace,
	}).Info("janitor started")

	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep performs one cleanup pass: first tear down rooms without a host, then
// evict stale players from the survivors. Returns what was removed.
func (j *Janitor) Sweep() (roomsRemoved, playersRemoved int) {
	for _, code := range j.lobby.HostlessRoomsForCleanup(j.hostTTL) {
		if j.games != nil {
			j.games.StopGame(code)
		}
		j.lobby.RemoveRoom(code)
		roomsRemoved++
	}

	for _, r := range j.registry.All() {
		playersRemoved += j.lobby.RemoveDisconnectedPlayers(r.Code, j.grace)
	}

	if roomsRemoved > 0 || playersRemoved > 0 {
		j.log.WithFields(logrus.Fields{
			"rooms":   roomsRemoved,
			"players": playersRemoved,
		}).Info("janitor sweep removed stale state")
	}
	return roomsRemoved, playersRemoved
}
