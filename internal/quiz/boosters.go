// internal/quiz/boosters.go
//
// Boosters are one-shot power-ups dealt to every player at game start. Each
// affects a single question or player interaction. Activation goes through a
// handler table keyed by booster type; Shield and Mirror are passive and fire
// when their holder is targeted.
package quiz

import (
	"math/rand"
	"time"

	"github.com/falroman/partyquiz/internal/models"
)

// BoosterType enumerates the available power-ups.
type BoosterType string

const (
	// BoosterFiftyFifty removes two wrong options from the holder's view of
	// the current question.
	BoosterFiftyFifty BoosterType = "FiftyFifty"
	// BoosterNope blocks the target from answering the current question. The
	// target also drops out of the early-advancement eligibility set.
	BoosterNope BoosterType = "Nope"
	// BoosterShield passively blocks the first targeted booster aimed at its
	// holder, consuming both.
	BoosterShield BoosterType = "Shield"
	// BoosterWildcard lets the holder change an already submitted answer.
	BoosterWildcard BoosterType = "Wildcard"
	// BoosterLateLock extends the holder's personal answering deadline.
	BoosterLateLock BoosterType = "LateLock"
	// BoosterMirror passively reflects the first targeted booster back at its
	// sender, consuming both.
	BoosterMirror BoosterType = "Mirror"
)

// boosterSpec describes when a booster may be activated and whether it needs a
// target.
type boosterSpec struct {
	validPhases    map[Phase]bool
	requiresTarget bool
	passive        bool
}

var answeringPhases = map[Phase]bool{
	PhaseQuestion:            true,
	PhaseAnswering:           true,
	PhaseDictionaryWord:      true,
	PhaseDictionaryAnswering: true,
}

var boosterTable = map[BoosterType]boosterSpec{
	BoosterFiftyFifty: {validPhases: map[Phase]bool{PhaseQuestion: true, PhaseAnswering: true}},
	BoosterNope:       {validPhases: answeringPhases, requiresTarget: true},
	BoosterWildcard:   {validPhases: map[Phase]bool{PhaseAnswering: true, PhaseDictionaryAnswering: true}},
	BoosterLateLock:   {validPhases: map[Phase]bool{PhaseAnswering: true, PhaseDictionaryAnswering: true}},
	BoosterShield:     {passive: true},
	BoosterMirror:     {passive: true},
}

var dealableBoosters = []BoosterType{
	BoosterFiftyFifty, BoosterNope, BoosterShield, BoosterWildcard, BoosterLateLock, BoosterMirror,
}

// ActiveEffect is a booster effect applying to the current question.
type ActiveEffect struct {
	Type     BoosterType
	PlayerID string // player the effect applies to
	SourceID string // player who activated the booster

	RemovedOptions []string  // FiftyFifty
	Deadline       time.Time // LateLock: personal answering deadline
}

// AssignBoosters deals one random booster to every player in the game.
func AssignBoosters(s *GameState, rng *rand.Rand) {
	for _, e := range s.Scoreboard {
		s.Boosters[e.PlayerID] = &BoosterAssignment{
			Type: dealableBoosters[rng.Intn(len(dealableBoosters))],
		}
	}
}

// IsNoped reports whether the player is blocked for the current question.
func (s *GameState) IsNoped(playerID string) bool {
	for _, ef := range s.Effects {
		if ef.Type == BoosterNope && ef.PlayerID == playerID {
			return true
		}
	}
	return false
}

// CanChangeAnswer reports whether a Wildcard permits the player to overwrite a
// submitted answer.
func (s *GameState) CanChangeAnswer(playerID string) bool {
	for _, ef := range s.Effects {
		if ef.Type == BoosterWildcard && ef.PlayerID == playerID {
			return true
		}
	}
	return false
}

// RemovedOptions returns the option keys hidden from the player's view.
func (s *GameState) RemovedOptions(playerID string) []string {
	for _, ef := range s.Effects {
		if ef.Type == BoosterFiftyFifty && ef.PlayerID == playerID {
			return ef.RemovedOptions
		}
	}
	return nil
}

// DeadlineFor returns the player's personal answering deadline: the phase end,
// or a LateLock extension if one is active.
func (s *GameState) DeadlineFor(playerID string) time.Time {
	deadline := s.PhaseEndsAt
	for _, ef := range s.Effects {
		if ef.Type == BoosterLateLock && ef.PlayerID == playerID && ef.Deadline.After(deadline) {
			deadline = ef.Deadline
		}
	}
	return deadline
}

// MaxDeadline returns the latest personal deadline across all active effects.
// The orchestrator keeps the answering timer alive until this instant.
func (s *GameState) MaxDeadline() time.Time {
	deadline := s.PhaseEndsAt
	for _, ef := range s.Effects {
		if ef.Type == BoosterLateLock && ef.Deadline.After(deadline) {
			deadline = ef.Deadline
		}
	}
	return deadline
}

// HasPrivateEffects reports whether any viewer currently needs a personalised
// snapshot (their own 50/50 filter or extended deadline).
func (s *GameState) HasPrivateEffects() bool {
	for _, ef := range s.Effects {
		if ef.Type == BoosterFiftyFifty || ef.Type == BoosterLateLock {
			return true
		}
	}
	return false
}

// clearEffects drops all per-question effects. Called when a new question,
// word or prompt starts.
func (s *GameState) clearEffects() {
	s.Effects = nil
}

// UseBooster activates the player's assigned booster. Shield and Mirror on the
// target intercept targeted boosters before they land.
func (e *Engine) UseBooster(s *GameState, playerID, targetID string, now time.Time, d Durations) *models.GameError {
	if !s.InGame(playerID) {
		return models.NewGameError(models.ErrInvalidState, "you are not part of this game")
	}
	assignment := s.Boosters[playerID]
	if assignment == nil || assignment.Used {
		return models.NewGameError(models.ErrInvalidState, "no unused booster available")
	}
	spec, ok := boosterTable[assignment.Type]
	if !ok || spec.passive {
		return models.NewGameError(models.ErrInvalidState, "this booster activates on its own")
	}
	if !spec.validPhases[s.Phase] {
		return models.NewGameError(models.ErrInvalidState, "booster cannot be used in this phase")
	}
	if spec.requiresTarget {
		if targetID == "" || targetID == playerID || s.Entry(targetID) == nil {
			return models.NewGameError(models.ErrInvalidState, "booster requires a valid target player")
		}
	}

	// Targeted boosters can be intercepted by the target's passive booster.
	if spec.requiresTarget {
		if blocked := s.interceptTargeted(assignment, playerID, &targetID); blocked != nil {
			return blocked
		}
	}

	assignment.Used = true
	switch assignment.Type {
	case BoosterFiftyFifty:
		if s.Question == nil {
			return models.NewGameError(models.ErrInvalidState, "no question on screen")
		}
		var wrong []string
		for _, opt := range s.Question.Options {
			if opt.Key != s.Question.CorrectOptionKey {
				wrong = append(wrong, opt.Key)
			}
		}
		e.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
		if len(wrong) > 2 {
			wrong = wrong[:2]
		}
		s.Effects = append(s.Effects, ActiveEffect{
			Type: BoosterFiftyFifty, PlayerID: playerID, SourceID: playerID, RemovedOptions: wrong,
		})
	case BoosterNope:
		s.Effects = append(s.Effects, ActiveEffect{Type: BoosterNope, PlayerID: targetID, SourceID: playerID})
	case BoosterWildcard:
		s.Effects = append(s.Effects, ActiveEffect{Type: BoosterWildcard, PlayerID: playerID, SourceID: playerID})
	case BoosterLateLock:
		s.Effects = append(s.Effects, ActiveEffect{
			Type: BoosterLateLock, PlayerID: playerID, SourceID: playerID,
			Deadline: s.PhaseEndsAt.Add(d.LateLockExtension),
		})
	}
	return nil
}

// interceptTargeted applies Shield/Mirror held by the target. Shield consumes
// both boosters and rejects the activation; Mirror consumes both and redirects
// the effect back at the sender.
func (s *GameState) interceptTargeted(assignment *BoosterAssignment, senderID string, targetID *string) *models.GameError {
	held := s.Boosters[*targetID]
	if held == nil || held.Used {
		return nil
	}
	switch held.Type {
	case BoosterShield:
		held.Used = true
		assignment.Used = true
		return models.NewGameError(models.ErrBoosterBlocked, "target was protected by a shield")
	case BoosterMirror:
		held.Used = true
		*targetID = senderID
	}
	return nil
}
