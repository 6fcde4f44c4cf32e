// internal/quiz/snapshot.go
package quiz

import (
	"time"

	"github.com/falroman/partyquiz/internal/content"
)

// revealPhases are the phases in which the correct option key and per-player
// answer contents may leave the server.
var revealPhases = map[Phase]bool{
	PhaseReveal:        true,
	PhaseRankingReveal: true,
	PhaseScoreboard:    true,
	PhaseFinished:      true,
}

// questionPhases are the phases in which the current question text is on
// screen.
var questionPhases = map[Phase]bool{
	PhaseQuestion:            true,
	PhaseAnswering:           true,
	PhaseReveal:              true,
	PhaseDictionaryWord:      true,
	PhaseDictionaryAnswering: true,
	PhaseRankingPrompt:       true,
	PhaseRankingVoting:       true,
	PhaseRankingReveal:       true,
}

// QuestionSnapshot is the wire view of the current question.
type QuestionSnapshot struct {
	ID               string           `json:"id"`
	Text             string           `json:"text"`
	Options          []content.Option `json:"options,omitempty"`
	CorrectOptionKey string           `json:"correctOptionKey,omitempty"`
	Explanation      string           `json:"explanation,omitempty"`
}

// ScoreEntrySnapshot is the wire view of one scoreboard line. The per-question
// fields are populated only once the phase reveals them.
type ScoreEntrySnapshot struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Position    int    `json:"position"`
	HasAnswered bool   `json:"hasAnswered"`

	AnsweredCorrectly    bool   `json:"answeredCorrectly,omitempty"`
	SelectedOption       string `json:"selectedOption,omitempty"`
	PointsThisQuestion   int    `json:"pointsThisQuestion,omitempty"`
	SpeedBonus           bool   `json:"speedBonus,omitempty"`
	RankingStar          bool   `json:"rankingStar,omitempty"`
	RankingVotesReceived int    `json:"rankingVotesReceived,omitempty"`
}

// Snapshot is the broadcast view of a game state. It never contains more than
// the viewer is allowed to see in the current phase.
type Snapshot struct {
	Locale           string               `json:"locale"`
	Phase            Phase                `json:"phase"`
	RemainingSeconds float64              `json:"remainingSeconds"`
	RoundNumber      int                  `json:"roundNumber"`
	RoundType        RoundType            `json:"roundType,omitempty"`
	RoundTotal       int                  `json:"roundTotal"`
	LeaderPlayerID   string               `json:"leaderPlayerId,omitempty"`
	Category         string               `json:"category,omitempty"`
	QuestionInRound  int                  `json:"questionInRound,omitempty"`
	Categories       []string             `json:"categories,omitempty"`
	Question         *QuestionSnapshot    `json:"question,omitempty"`
	Scoreboard       []ScoreEntrySnapshot `json:"scoreboard"`
	WinnerPlayerIDs  []string             `json:"winnerPlayerIds,omitempty"`
	ViewerBooster    *BoosterView         `json:"booster,omitempty"`
}

// BoosterView tells a player which booster they hold and whether it is spent.
type BoosterView struct {
	Type BoosterType `json:"type"`
	Used bool        `json:"used"`
}

// BuildSnapshot renders the state for one viewer. viewerPlayerID is empty for
// the host, whose view is the baseline: no option filtering, no personal
// deadline, no booster card.
func BuildSnapshot(s *GameState, viewerPlayerID string, now time.Time) Snapshot {
	snap := Snapshot{
		Locale:          s.Locale,
		Phase:           s.Phase,
		RoundNumber:     s.Round.Number,
		RoundType:       s.Round.Type,
		RoundTotal:      len(s.PlannedRounds),
		LeaderPlayerID:  s.Round.LeaderPlayerID,
		Category:        s.Round.Category,
		QuestionInRound: s.Round.QuestionInRound,
	}

	// remainingSeconds is computed at emission time against the viewer's own
	// deadline, so a LateLock holder sees their extension.
	deadline := s.PhaseEndsAt
	if viewerPlayerID != "" {
		deadline = s.DeadlineFor(viewerPlayerID)
	}
	if !deadline.IsZero() {
		if remaining := deadline.Sub(now).Seconds(); remaining > 0 {
			snap.RemainingSeconds = remaining
		}
	}

	if s.Phase == PhaseCategorySelection {
		snap.Categories = s.AvailableCategories
	}

	if s.Question != nil && questionPhases[s.Phase] {
		q := &QuestionSnapshot{
			ID:      s.Question.ID,
			Text:    s.Question.Text,
			Options: filterOptions(s.Question.Options, s.RemovedOptions(viewerPlayerID)),
		}
		if revealPhases[s.Phase] {
			q.CorrectOptionKey = s.Question.CorrectOptionKey
			q.Explanation = s.Question.Explanation
		}
		snap.Question = q
	}

	reveal := revealPhases[s.Phase]
	if reveal {
		snap.WinnerPlayerIDs = s.WinnerPlayerIDs
	}
	for _, entry := range s.Scoreboard {
		line := ScoreEntrySnapshot{
			PlayerID:    entry.PlayerID,
			DisplayName: entry.DisplayName,
			Score:       entry.Score,
			Position:    entry.Position,
			HasAnswered: s.Answers[entry.PlayerID] != nil,
		}
		if reveal {
			line.AnsweredCorrectly = entry.AnsweredCorrectly
			line.SelectedOption = entry.SelectedOption
			line.PointsThisQuestion = entry.PointsThisQuestion
			line.SpeedBonus = entry.SpeedBonus
			line.RankingStar = entry.RankingStar
			line.RankingVotesReceived = entry.RankingVotesReceived
		}
		snap.Scoreboard = append(snap.Scoreboard, line)
	}

	if viewerPlayerID != "" {
		if assignment := s.Boosters[viewerPlayerID]; assignment != nil {
			snap.ViewerBooster = &BoosterView{Type: assignment.Type, Used: assignment.Used}
		}
	}

	return snap
}

func filterOptions(options []content.Option, removed []string) []content.Option {
	if len(removed) == 0 {
		return options
	}
	removedSet := map[string]bool{}
	for _, key := range removed {
		removedSet[key] = true
	}
	var out []content.Option
	for _, opt := range options {
		if !removedSet[opt.Key] {
			out = append(out, opt)
		}
	}
	return out
}
