// internal/autoplay/driver.go
//
// The autoplay driver animates bot players. It polls the orchestrator for
// moves bots still owe, assigns each one a humanised thinking delay, and
// plays it through the same command handlers human clients use.
package autoplay

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/falroman/partyquiz/internal/models"
	"github.com/falroman/partyquiz/internal/quiz"
	"github.com/falroman/partyquiz/internal/room"
)

// Driver runs the bot loop for every room with computer players.
type Driver struct {
	log      *logrus.Logger
	registry *room.Registry
	orch     *quiz.Orchestrator
	rng      *rand.Rand

	poll     time.Duration
	minDelay time.Duration
	maxDelay time.Duration

	// due maps a pending action key to the instant the bot will act. Keys
	// disappear when the action is no longer owed.
	due map[string]time.Time
}

// New wires a driver. The rng is owned exclusively by the driver's loop.
func New(log *logrus.Logger, registry *room.Registry, orch *quiz.Orchestrator, rng *rand.Rand, poll, minDelay, maxDelay time.Duration) *Driver {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Driver{
		log:      log,
		registry: registry,
		orch:     orch,
		rng:      rng,
		poll:     poll,
		minDelay: minDelay,
		maxDelay: maxDelay,
		due:      make(map[string]time.Time),
	}
}

// Run polls until the context is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	d.log.WithField("poll", d.poll).Info("autoplay driver started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("autoplay driver stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Tick(time.Now())
		}
	}
}

// Tick runs one poll pass. Exposed for tests.
func (d *Driver) Tick(now time.Time) {
	seen := make(map[string]bool)

	for _, r := range d.registry.All() {
		if r.Status != models.RoomStatusInGame {
			continue
		}
		for _, action := range d.orch.PendingBotActions(r.Code) {
			key := r.Code + "|" + action.PlayerID + "|" + string(action.Kind)
			seen[key] = true

			at, scheduled := d.due[key]
			if !scheduled {
				d.due[key] = now.Add(d.thinkingDelay())
				continue
			}
			if now.Before(at) {
				continue
			}
			delete(d.due, key)
			d.play(r.Code, action)
		}
	}

	// Forget delays for actions that resolved some other way (timeout, nope,
	// phase change).
	for key := range d.due {
		if !seen[key] {
			delete(d.due, key)
		}
	}
}

func (d *Driver) thinkingDelay() time.Duration {
	span := d.maxDelay - d.minDelay
	if span <= 0 {
		return d.minDelay
	}
	return d.minDelay + time.Duration(d.rng.Int63n(int64(span)))
}

// play executes one bot move. Validation errors are expected occasionally
// (the phase may flip between poll and play) and only logged at debug.
func (d *Driver) play(code string, action quiz.BotAction) {
	var gameErr *models.GameError
	switch action.Kind {
	case quiz.BotSelectCategory:
		pick := action.Choices[d.rng.Intn(len(action.Choices))]
		gameErr = d.orch.HandleSelectCategory(code, action.PlayerID, pick)
	case quiz.BotAnswer:
		gameErr = d.orch.HandleSubmitAnswer(code, action.PlayerID, d.pickAnswer(action))
	case quiz.BotVote:
		pick := action.Choices[d.rng.Intn(len(action.Choices))]
		gameErr = d.orch.HandleSubmitRankingVote(code, action.PlayerID, pick)
	default:
		return
	}
	if gameErr != nil {
		d.log.WithFields(logrus.Fields{
			"room": code, "bot": action.PlayerID, "kind": action.Kind, "error": gameErr,
		}).Debug("bot action rejected")
	}
}

// pickAnswer answers correctly with probability skill/100, otherwise picks a
// uniformly random wrong option.
func (d *Driver) pickAnswer(action quiz.BotAction) string {
	if action.Correct != "" && d.rng.Intn(100) < action.Skill {
		return action.Correct
	}
	var wrong []string
	for _, c := range action.Choices {
		if c != action.Correct {
			wrong = append(wrong, c)
		}
	}
	if len(wrong) == 0 {
		return action.Correct
	}
	return wrong[d.rng.Intn(len(wrong))]
}
