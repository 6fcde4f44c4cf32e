// internal/quiz/scoring.go
package quiz

import (
	"sort"
	"strings"
	"time"
)

// Point values. Correct answers are ranked by submission speed; trailing
// correct answers share the flat tail value.
var speedRankPoints = []int{100, 90, 85}

const (
	trailingCorrectPoints = 80
	catchUpBonus          = 20

	dictionaryBasePoints  = 100
	dictionarySpeedBonus  = 25
	rankingStarPoints     = 100
	rankingCorrectVotePts = 50

	speedTieWindow = time.Millisecond
)

// medianPreRevealScore returns the room's median score computed the way the
// original does: ascending sort, middle index (n-1)/2. For even counts this
// is the lower-middle value; the bias is part of the observable behaviour and
// must not be corrected.
func medianPreRevealScore(entries []*ScoreEntry) int {
	if len(entries) == 0 {
		return 0
	}
	scores := make([]int, len(entries))
	for i, e := range entries {
		scores[i] = e.Score
	}
	sort.Ints(scores)
	return scores[(len(scores)-1)/2]
}

// recomputePositions orders the scoreboard by (score desc, displayName asc)
// and assigns 1-based positions without gaps.
func recomputePositions(s *GameState) {
	sort.SliceStable(s.Scoreboard, func(i, j int) bool {
		a, b := s.Scoreboard[i], s.Scoreboard[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.DisplayName < b.DisplayName
	})
	for i, e := range s.Scoreboard {
		e.Position = i + 1
	}
}

// scoreSpeedRankedReveal scores a category-quiz question: correct answers are
// ranked by submission instant (1st 100, 2nd 90, 3rd 85, others 80).
// Submissions within 1 ms of the group leader share the rank and its points;
// the following rank skips by the group size. Correct players at or below the
// pre-reveal median additionally receive the catch-up bonus on their
// cumulative score; the displayed per-question points stay the rank value.
func scoreSpeedRankedReveal(s *GameState) {
	median := medianPreRevealScore(s.Scoreboard)

	type correctAnswer struct {
		entry *ScoreEntry
		at    time.Time
	}
	var correct []correctAnswer

	for _, entry := range s.Scoreboard {
		answer := s.Answers[entry.PlayerID]
		if answer == nil {
			continue
		}
		entry.SelectedOption = answer.Option
		if strings.EqualFold(answer.Option, s.Question.CorrectOptionKey) {
			entry.AnsweredCorrectly = true
			correct = append(correct, correctAnswer{entry: entry, at: answer.SubmittedAt})
		}
	}

	sort.SliceStable(correct, func(i, j int) bool { return correct[i].at.Before(correct[j].at) })

	rank := 0
	for i := 0; i < len(correct); {
		groupEnd := i + 1
		for groupEnd < len(correct) && correct[groupEnd].at.Sub(correct[i].at) <= speedTieWindow {
			groupEnd++
		}
		points := trailingCorrectPoints
		if rank < len(speedRankPoints) {
			points = speedRankPoints[rank]
		}
		for _, ca := range correct[i:groupEnd] {
			ca.entry.PointsThisQuestion = points
			delta := points
			if ca.entry.Score <= median {
				delta += catchUpBonus
			}
			ca.entry.Score += delta
		}
		rank += groupEnd - i
		i = groupEnd
	}
}

// scoreDictionaryReveal scores a dictionary word: every correct answer earns
// the fixed base, the single fastest correct answer earns the speed bonus on
// top, and the catch-up tier applies on the same median rule.
func scoreDictionaryReveal(s *GameState) {
	median := medianPreRevealScore(s.Scoreboard)

	var fastest *ScoreEntry
	var fastestAt time.Time
	for _, entry := range s.Scoreboard {
		answer := s.Answers[entry.PlayerID]
		if answer == nil {
			continue
		}
		entry.SelectedOption = answer.Option
		if !strings.EqualFold(answer.Option, s.Question.CorrectOptionKey) {
			continue
		}
		entry.AnsweredCorrectly = true
		entry.PointsThisQuestion = dictionaryBasePoints
		if fastest == nil || answer.SubmittedAt.Before(fastestAt) {
			fastest = entry
			fastestAt = answer.SubmittedAt
		}
	}
	if fastest != nil {
		fastest.SpeedBonus = true
		fastest.PointsThisQuestion += dictionarySpeedBonus
	}
	for _, entry := range s.Scoreboard {
		if entry.PointsThisQuestion == 0 {
			continue
		}
		delta := entry.PointsThisQuestion
		if entry.Score <= median {
			delta += catchUpBonus
		}
		entry.Score += delta
	}
}

// scoreRankingReveal tallies votes for the current prompt. All top-voted
// players receive star points; voters who picked any top-voted player receive
// the correct-vote award. Both go through the catch-up tier. Returns the
// winner ids.
func scoreRankingReveal(s *GameState) []string {
	median := medianPreRevealScore(s.Scoreboard)

	votes := map[string]int{}
	for _, answer := range s.Answers {
		if answer != nil {
			votes[answer.Option]++
		}
	}

	maxVotes := 0
	for _, n := range votes {
		if n > maxVotes {
			maxVotes = n
		}
	}

	winnerSet := map[string]bool{}
	var winners []string
	for _, entry := range s.Scoreboard {
		entry.RankingVotesReceived = votes[entry.PlayerID]
		if maxVotes > 0 && votes[entry.PlayerID] == maxVotes {
			entry.RankingStar = true
			winnerSet[entry.PlayerID] = true
			winners = append(winners, entry.PlayerID)
		}
	}

	for _, entry := range s.Scoreboard {
		points := 0
		if winnerSet[entry.PlayerID] {
			points += rankingStarPoints
		}
		if answer := s.Answers[entry.PlayerID]; answer != nil {
			entry.SelectedOption = answer.Option
			if winnerSet[answer.Option] {
				entry.AnsweredCorrectly = true
				points += rankingCorrectVotePts
			}
		}
		entry.PointsThisQuestion = points
		delta := points
		if points > 0 && entry.Score <= median {
			delta += catchUpBonus
		}
		entry.Score += delta
	}
	return winners
}
