// internal/quiz/state.go
package quiz

import (
	"time"

	"github.com/falroman/partyquiz/internal/content"
	"github.com/falroman/partyquiz/internal/models"
)

// Phase is the fine-grained state inside a round.
type Phase string

const (
	PhaseCategorySelection   Phase = "CategorySelection"
	PhaseQuestion            Phase = "Question"
	PhaseAnswering           Phase = "Answering"
	PhaseReveal              Phase = "Reveal"
	PhaseScoreboard          Phase = "Scoreboard"
	PhaseDictionaryWord      Phase = "DictionaryWord"
	PhaseDictionaryAnswering Phase = "DictionaryAnswering"
	PhaseRankingPrompt       Phase = "RankingPrompt"
	PhaseRankingVoting       Phase = "RankingVoting"
	PhaseRankingReveal       Phase = "RankingReveal"
	PhaseFinished            Phase = "Finished"
)

// RoundType identifies one entry of the planned round sequence.
type RoundType string

const (
	RoundCategoryQuiz   RoundType = "CategoryQuiz"
	RoundRankingStars   RoundType = "RankingStars"
	RoundDictionaryGame RoundType = "DictionaryGame"
)

// QuestionsPerRound is the number of questions/words/prompts in every round.
const QuestionsPerRound = 3

// CategoryChoices is how many categories the round leader picks from.
const CategoryChoices = 3

// Durations holds every timed-phase length. Tests shrink these to
// milliseconds; production uses DefaultDurations.
type Durations struct {
	CategorySelection   time.Duration
	Question            time.Duration
	Answering           time.Duration
	Reveal              time.Duration
	Scoreboard          time.Duration
	DictionaryWord      time.Duration
	DictionaryAnswering time.Duration
	DictionaryReveal    time.Duration
	RankingPrompt       time.Duration
	RankingVoting       time.Duration
	RankingReveal       time.Duration
	LateLockExtension   time.Duration
}

// DefaultDurations returns the production phase timings.
func DefaultDurations() Durations {
	return Durations{
		CategorySelection:   15 * time.Second,
		Question:            3 * time.Second,
		Answering:           20 * time.Second,
		Reveal:              5 * time.Second,
		Scoreboard:          5 * time.Second,
		DictionaryWord:      3 * time.Second,
		DictionaryAnswering: 12 * time.Second,
		DictionaryReveal:    6 * time.Second,
		RankingPrompt:       2 * time.Second,
		RankingVoting:       15 * time.Second,
		RankingReveal:       6 * time.Second,
		LateLockExtension:   5 * time.Second,
	}
}

// Answer records one player's submission for the current question. A nil
// *Answer in the Answers map means the player is in the game and has not yet
// answered; a missing key means the player is not in the game at all.
type Answer struct {
	Option      string
	SubmittedAt time.Time
}

// CurrentQuestion is the question/word/prompt currently on screen. For the
// dictionary round the options are definitions keyed "0".."3"; for ranking
// rounds it carries the prompt text and no options.
type CurrentQuestion struct {
	ID               string
	Text             string
	Options          []content.Option
	CorrectOptionKey string
	Explanation      string
}

// ScoreEntry is one player's scoreboard line, including per-question fields
// that reset with every question.
type ScoreEntry struct {
	PlayerID    string
	DisplayName string
	Score       int
	Position    int

	AnsweredCorrectly    bool
	SelectedOption       string
	PointsThisQuestion   int
	SpeedBonus           bool
	RankingStar          bool
	RankingVotesReceived int
}

// RoundInfo describes the round in progress.
type RoundInfo struct {
	Number          int
	Type            RoundType
	LeaderPlayerID  string
	Category        string
	QuestionInRound int // 1-based index of the current question within the round
}

// BoosterAssignment is the one-shot power-up a player was dealt at game start.
type BoosterAssignment struct {
	Type BoosterType
	Used bool
}

// GameState is the full authoritative state of one running quiz. It is owned
// by the orchestrator, mutated only by engine functions, and always accessed
// under the room's critical section.
type GameState struct {
	Locale      string
	Phase       Phase
	PhaseEndsAt time.Time

	PlannedRounds     []RoundType
	PlannedRoundIndex int // index of the round currently running; -1 before the first

	Round    RoundInfo
	Question *CurrentQuestion

	// Answers is keyed by the player ids present at game start. It is never
	// grown afterwards: a player who joins mid-game receives broadcasts but
	// cannot submit.
	Answers map[string]*Answer

	Scoreboard []*ScoreEntry

	AvailableCategories []string
	UsedCategories      map[string]bool
	UsedQuestionIDs     map[string]bool
	UsedWords           map[string]bool
	UsedPrompts         map[string]bool
	WordIndex           int // words shown so far in the dictionary round
	PromptIndex         int // prompts shown so far in the ranking round

	LeaderHistory []string

	Boosters map[string]*BoosterAssignment
	Effects  []ActiveEffect

	// WinnerPlayerIDs holds the top-voted player(s) of the last ranking
	// reveal. Cleared when the next prompt starts.
	WinnerPlayerIDs []string
}

// DefaultPlannedRounds is the standard sequence: two category-quiz rounds, one
// ranking round, and the closing dictionary round.
func DefaultPlannedRounds() []RoundType {
	return []RoundType{RoundCategoryQuiz, RoundCategoryQuiz, RoundRankingStars, RoundDictionaryGame}
}

// NewGameState initialises state for the given players. The scoreboard is
// seeded at zero points and the answers map's key set is frozen here.
func NewGameState(locale string, players []*models.Player, planned []RoundType) *GameState {
	s := &GameState{
		Locale:            locale,
		Phase:             PhaseScoreboard, // no round started yet
		PlannedRounds:     planned,
		PlannedRoundIndex: -1,
		Answers:           make(map[string]*Answer, len(players)),
		UsedCategories:    map[string]bool{},
		UsedQuestionIDs:   map[string]bool{},
		UsedWords:         map[string]bool{},
		UsedPrompts:       map[string]bool{},
		Boosters:          map[string]*BoosterAssignment{},
	}
	for _, p := range players {
		s.Answers[p.ID] = nil
		s.Scoreboard = append(s.Scoreboard, &ScoreEntry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
		})
	}
	recomputePositions(s)
	return s
}

// Entry returns the scoreboard line for a player, or nil if the player is not
// part of this game.
func (s *GameState) Entry(playerID string) *ScoreEntry {
	for _, e := range s.Scoreboard {
		if e.PlayerID == playerID {
			return e
		}
	}
	return nil
}

// InGame reports whether the player was present at game start.
func (s *GameState) InGame(playerID string) bool {
	_, ok := s.Answers[playerID]
	return ok
}

// resetAnswers clears every submission, keeping the frozen key set.
func (s *GameState) resetAnswers() {
	for id := range s.Answers {
		s.Answers[id] = nil
	}
}

// resetQuestionFields clears the per-question scoreboard columns.
func (s *GameState) resetQuestionFields() {
	for _, e := range s.Scoreboard {
		e.AnsweredCorrectly = false
		e.SelectedOption = ""
		e.PointsThisQuestion = 0
		e.SpeedBonus = false
		e.RankingStar = false
		e.RankingVotesReceived = 0
	}
}

// HasMorePlannedRounds reports whether another round follows the current one.
func (s *GameState) HasMorePlannedRounds() bool {
	return s.PlannedRoundIndex+1 < len(s.PlannedRounds)
}

// HasMoreQuestionsInRound reports whether the category-quiz round has
// questions left.
func (s *GameState) HasMoreQuestionsInRound() bool {
	return s.Round.QuestionInRound < QuestionsPerRound
}

// HasMoreDictionaryWords reports whether the dictionary round has words left.
func (s *GameState) HasMoreDictionaryWords() bool {
	return s.WordIndex < QuestionsPerRound
}

// HasMoreRankingPrompts reports whether the ranking round has prompts left.
func (s *GameState) HasMoreRankingPrompts() bool {
	return s.PromptIndex < QuestionsPerRound
}
