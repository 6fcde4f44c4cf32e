// internal/quiz/orchestrator.go
//
// The orchestrator is the single component that couples engine transitions to
// the passage of time and to broadcasts. Every state-mutating action, whether
// a client command or a firing timer, runs under the room's critical section:
// at most one mutation is in flight per room, while many rooms run in
// parallel.
package quiz

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/falroman/partyquiz/internal/clock"
	"github.com/falroman/partyquiz/internal/models"
	"github.com/falroman/partyquiz/internal/room"
)

// EventQuizStateUpdated is the outbound event type carrying a state snapshot.
const EventQuizStateUpdated = "QuizStateUpdated"

// Event is the outbound quiz message envelope.
type Event struct {
	Type  string    `json:"type"`
	State *Snapshot `json:"state,omitempty"`
}

// activeGame is the per-room live state plus its single pending timer. All
// fields are guarded by the room's registry lock; timerSeq invalidates stale
// timer callbacks the same way a turn id does in a turn-based game.
type activeGame struct {
	state    *GameState
	timer    *time.Timer
	timerSeq int
}

// Orchestrator owns the live GameState of every in-game room, schedules the
// timed phase transitions and fans state out to subscribers.
type Orchestrator struct {
	log      *logrus.Logger
	registry *room.Registry
	engine   *Engine
	clock    clock.Clock
	durs     Durations
	locale   string

	mu    sync.Mutex
	games map[string]*activeGame

	// BroadcastFn sends an event to every connection of a room's group.
	BroadcastFn func(roomCode string, ev Event)
	// SendFn sends an event to one connection. Used together with
	// ConnectionsFn for personalised views when private booster effects
	// exist; the host receives the baseline view.
	SendFn        func(connID uuid.UUID, ev Event)
	ConnectionsFn func(roomCode string) []room.Binding
	// RecordFn, when set, feeds the historian queue. Failures are its own
	// problem; it must never block game progress.
	RecordFn func(roomCode, eventType string, payload map[string]interface{})
}

// NewOrchestrator wires an orchestrator over the shared registry.
func NewOrchestrator(log *logrus.Logger, registry *room.Registry, engine *Engine, clk clock.Clock, durs Durations, locale string) *Orchestrator {
	return &Orchestrator{
		log:      log,
		registry: registry,
		engine:   engine,
		clock:    clk,
		durs:     durs,
		locale:   locale,
		games:    make(map[string]*activeGame),
	}
}

func (o *Orchestrator) game(code string) (*activeGame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ag, ok := o.games[code]
	return ag, ok
}

// StartGame initialises the game state for a room whose status was just
// flipped to in-game, deals boosters and starts the first planned round.
func (o *Orchestrator) StartGame(code string) error {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := o.registry.Get(code)
	if !ok {
		return models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if _, exists := o.game(code); exists {
		return models.NewGameError(models.ErrRoundAlreadyStarted, "a game is already running in this room")
	}

	players := make([]*models.Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].DisplayName < players[j].DisplayName })

	state := NewGameState(o.locale, players, DefaultPlannedRounds())
	AssignBoosters(state, o.engine.rng)

	ag := &activeGame{state: state}
	o.mu.Lock()
	o.games[code] = ag
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{"room": code, "players": len(players)}).Info("quiz started")
	o.startNextRoundLocked(code, ag)
	return nil
}

// StopGame cancels the room's timer and discards its state. Idempotent.
func (o *Orchestrator) StopGame(code string) {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return
	}
	if ag.timer != nil {
		ag.timer.Stop()
		ag.timer = nil
	}
	ag.timerSeq++
	o.mu.Lock()
	delete(o.games, code)
	o.mu.Unlock()
	o.log.WithField("room", code).Info("quiz stopped")
}

// InGame reports whether a live game exists for the room.
func (o *Orchestrator) InGame(code string) bool {
	_, ok := o.game(room.NormalizeCode(code))
	return ok
}

// SendStateTo pushes the current state to a single connection, e.g. right
// after a reconnect.
func (o *Orchestrator) SendStateTo(code string, connID uuid.UUID, playerID string) {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok || o.SendFn == nil {
		return
	}
	snap := BuildSnapshot(ag.state, playerID, o.clock.Now())
	o.SendFn(connID, Event{Type: EventQuizStateUpdated, State: &snap})
}

// HandleSelectCategory applies the round leader's category pick.
func (o *Orchestrator) HandleSelectCategory(code, playerID, category string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return models.NewGameError(models.ErrInvalidState, "no game in progress")
	}
	if gameErr := o.engine.SelectCategory(ag.state, playerID, category, o.clock.Now(), o.durs); gameErr != nil {
		return gameErr
	}
	o.afterTransitionLocked(code, ag)
	return nil
}

// HandleSubmitAnswer records an answer and advances early once every eligible
// player has acted.
func (o *Orchestrator) HandleSubmitAnswer(code, playerID, optionKey string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return models.NewGameError(models.ErrInvalidState, "no game in progress")
	}
	if gameErr := o.engine.SubmitAnswer(ag.state, playerID, optionKey, o.clock.Now()); gameErr != nil {
		return gameErr
	}
	if o.allEligibleAnsweredLocked(code, ag) {
		o.revealNowLocked(code, ag)
	} else {
		o.broadcastLocked(code, ag)
	}
	return nil
}

// HandleSubmitRankingVote records a ranking vote with the same early
// advancement rule.
func (o *Orchestrator) HandleSubmitRankingVote(code, voterID, votedForID string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return models.NewGameError(models.ErrInvalidState, "no game in progress")
	}
	if gameErr := o.engine.SubmitRankingVote(ag.state, voterID, votedForID, o.clock.Now()); gameErr != nil {
		return gameErr
	}
	if ag.state.Phase == PhaseRankingVoting && o.allEligibleAnsweredLocked(code, ag) {
		o.engine.RevealRanking(ag.state, o.clock.Now(), o.durs)
		o.afterTransitionLocked(code, ag)
	} else {
		o.broadcastLocked(code, ag)
	}
	return nil
}

// HandleNextQuestion lets the host cut the scoreboard short.
func (o *Orchestrator) HandleNextQuestion(code string, connID uuid.UUID) *models.GameError {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	r, ok := o.registry.Get(code)
	if !ok {
		return models.NewGameError(models.ErrRoomNotFound, "room does not exist")
	}
	if !r.IsHostConnection(connID) {
		return models.NewGameError(models.ErrNotHost, "only the host can advance the scoreboard")
	}
	ag, ok := o.game(code)
	if !ok {
		return models.NewGameError(models.ErrInvalidState, "no game in progress")
	}
	if ag.state.Phase != PhaseScoreboard {
		return models.NewGameError(models.ErrInvalidState, "no scoreboard on screen")
	}
	o.startNextRoundLocked(code, ag)
	return nil
}

// HandleUseBooster activates a player's booster.
func (o *Orchestrator) HandleUseBooster(code, playerID, targetID string) *models.GameError {
	code = room.NormalizeCode(code)
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return models.NewGameError(models.ErrInvalidState, "no game in progress")
	}
	gameErr := o.engine.UseBooster(ag.state, playerID, targetID, o.clock.Now(), o.durs)
	if gameErr != nil && gameErr.Code != models.ErrBoosterBlocked {
		return gameErr
	}
	// A shield block still consumed both boosters, so the state changed
	// either way.
	o.broadcastLocked(code, ag)
	return gameErr
}

// schedule registers the single pending transition for the room, replacing
// and invalidating any previous one.
func (o *Orchestrator) schedule(code string, ag *activeGame, d time.Duration, expect Phase) {
	ag.timerSeq++
	seq := ag.timerSeq
	if ag.timer != nil {
		ag.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	ag.timer = time.AfterFunc(d, func() {
		o.onTimer(code, seq, expect)
	})
}

// onTimer re-enters the room's critical section and re-reads state: the phase
// may already have been advanced by a command, in which case the callback is
// stale and ignored.
func (o *Orchestrator) onTimer(code string, seq int, expect Phase) {
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return
	}
	if ag.timerSeq != seq || ag.state.Phase != expect {
		o.log.WithFields(logrus.Fields{"room": code, "expect": expect, "phase": ag.state.Phase}).
			Debug("stale phase timer ignored")
		return
	}
	o.advanceLocked(code, ag)
}

// advanceLocked performs the timeout transition for the current phase.
func (o *Orchestrator) advanceLocked(code string, ag *activeGame) {
	now := o.clock.Now()
	s := ag.state

	switch s.Phase {
	case PhaseCategorySelection:
		if gameErr := o.engine.AutoSelectCategory(s, now, o.durs); gameErr != nil {
			o.log.WithFields(logrus.Fields{"room": code, "error": gameErr}).Warn("auto category selection failed")
			return
		}
		o.afterTransitionLocked(code, ag)

	case PhaseQuestion:
		o.engine.BeginAnswering(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseAnswering:
		// LateLock may have pushed someone's personal deadline past the
		// phase end; keep the window open until the last deadline.
		if max := s.MaxDeadline(); max.After(now) {
			o.schedule(code, ag, max.Sub(now), PhaseAnswering)
			return
		}
		o.engine.Reveal(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseDictionaryWord:
		o.engine.BeginDictionaryAnswering(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseDictionaryAnswering:
		if max := s.MaxDeadline(); max.After(now) {
			o.schedule(code, ag, max.Sub(now), PhaseDictionaryAnswering)
			return
		}
		o.engine.RevealDictionary(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseReveal:
		o.afterRevealLocked(code, ag)

	case PhaseRankingPrompt:
		o.engine.BeginRankingVoting(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseRankingVoting:
		o.engine.RevealRanking(s, now, o.durs)
		o.afterTransitionLocked(code, ag)

	case PhaseRankingReveal:
		if s.HasMoreRankingPrompts() {
			if err := o.engine.NextRankingPrompt(s, now, o.durs); err != nil {
				o.engine.ShowScoreboard(s, now, o.durs)
			}
		} else {
			o.engine.ShowScoreboard(s, now, o.durs)
		}
		o.afterTransitionLocked(code, ag)

	case PhaseScoreboard:
		o.startNextRoundLocked(code, ag)
	}
}

// afterRevealLocked decides what follows a reveal: the next question/word of
// the round, or the end-of-round scoreboard.
func (o *Orchestrator) afterRevealLocked(code string, ag *activeGame) {
	now := o.clock.Now()
	s := ag.state

	switch s.Round.Type {
	case RoundDictionaryGame:
		if s.HasMoreDictionaryWords() {
			if err := o.engine.NextDictionaryWord(s, now, o.durs); err != nil {
				o.engine.ShowScoreboard(s, now, o.durs)
			}
		} else {
			o.engine.ShowScoreboard(s, now, o.durs)
		}
	default:
		if s.HasMoreQuestionsInRound() {
			if err := o.engine.StartQuestion(s, now, o.durs); err != nil {
				o.engine.ShowScoreboard(s, now, o.durs)
			}
		} else {
			o.engine.ShowScoreboard(s, now, o.durs)
		}
	}
	o.afterTransitionLocked(code, ag)
}

// startNextRoundLocked enters the next planned round or finishes the game.
func (o *Orchestrator) startNextRoundLocked(code string, ag *activeGame) {
	now := o.clock.Now()
	roundType, more, err := o.engine.StartNextPlannedRound(ag.state, now, o.durs)
	if !more {
		o.finishGameLocked(code, ag)
		return
	}
	if err != nil {
		o.log.WithFields(logrus.Fields{"room": code, "round": roundType, "error": err}).
			Warn("could not start planned round, finishing game")
		o.finishGameLocked(code, ag)
		return
	}
	o.afterTransitionLocked(code, ag)
}

// finishGameLocked enters the terminal phase and flips the room status. The
// room itself stays: scoreboards remain visible until the janitor collects a
// hostless room.
func (o *Orchestrator) finishGameLocked(code string, ag *activeGame) {
	o.engine.FinishGame(ag.state)
	if ag.timer != nil {
		ag.timer.Stop()
		ag.timer = nil
	}
	ag.timerSeq++

	if r, ok := o.registry.Get(code); ok {
		r.Status = models.RoomStatusFinished
		o.registry.Update(r)
	}
	o.syncScoresLocked(code, ag)
	o.broadcastLocked(code, ag)
	o.log.WithField("room", code).Info("quiz finished")
}

// revealNowLocked is the early-advancement path out of an answering phase.
func (o *Orchestrator) revealNowLocked(code string, ag *activeGame) {
	now := o.clock.Now()
	switch ag.state.Phase {
	case PhaseAnswering:
		o.engine.Reveal(ag.state, now, o.durs)
	case PhaseDictionaryAnswering:
		o.engine.RevealDictionary(ag.state, now, o.durs)
	default:
		return
	}
	o.afterTransitionLocked(code, ag)
}

// allEligibleAnsweredLocked checks early advancement: every connected,
// non-noped player in the game has a non-nil answer.
func (o *Orchestrator) allEligibleAnsweredLocked(code string, ag *activeGame) bool {
	s := ag.state
	if s.Phase != PhaseAnswering && s.Phase != PhaseDictionaryAnswering && s.Phase != PhaseRankingVoting {
		return false
	}
	r, ok := o.registry.Get(code)
	if !ok {
		return false
	}
	eligible := EligiblePlayerIDs(s, r.ConnectedPlayerIDs())
	return AllEligibleAnswered(s, eligible)
}

// afterTransitionLocked schedules the timer for the phase just entered,
// mirrors the scores into the room record and broadcasts the new state.
func (o *Orchestrator) afterTransitionLocked(code string, ag *activeGame) {
	s := ag.state
	if s.Phase != PhaseFinished && !s.PhaseEndsAt.IsZero() {
		o.schedule(code, ag, s.PhaseEndsAt.Sub(o.clock.Now()), s.Phase)
	}
	o.syncScoresLocked(code, ag)
	o.broadcastLocked(code, ag)
}

// syncScoresLocked writes the cumulative scores back into the room's player
// records, so lobby snapshots and the HTTP room lookup reflect the game.
func (o *Orchestrator) syncScoresLocked(code string, ag *activeGame) {
	r, ok := o.registry.Get(code)
	if !ok {
		return
	}
	for _, entry := range ag.state.Scoreboard {
		if p := r.Players[entry.PlayerID]; p != nil {
			p.Score = entry.Score
		}
	}
	o.registry.Update(r)
}

// broadcastLocked emits QuizStateUpdated. When any viewer holds private
// booster effects the emission is per connection so each player sees only
// their own filtered view; the host binding (no player id) gets the baseline.
func (o *Orchestrator) broadcastLocked(code string, ag *activeGame) {
	now := o.clock.Now()
	s := ag.state

	if s.HasPrivateEffects() && o.ConnectionsFn != nil && o.SendFn != nil {
		for _, b := range o.ConnectionsFn(code) {
			snap := BuildSnapshot(s, b.PlayerID, now)
			o.SendFn(b.ConnID, Event{Type: EventQuizStateUpdated, State: &snap})
		}
	} else if o.BroadcastFn != nil {
		snap := BuildSnapshot(s, "", now)
		o.BroadcastFn(code, Event{Type: EventQuizStateUpdated, State: &snap})
	}

	if o.RecordFn != nil {
		o.RecordFn(code, string(s.Phase), map[string]interface{}{
			"round":           s.Round.Number,
			"roundType":       string(s.Round.Type),
			"questionInRound": s.Round.QuestionInRound,
		})
	}
}
