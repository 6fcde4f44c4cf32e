// internal/quiz/engine.go
//
// The engine is the pure half of the quiz: state-transition functions over
// GameState. It performs no I/O and starts no timers; the current instant and
// the phase durations are always passed in. Timer-driven and client-driven
// transitions are indistinguishable here.
package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/falroman/partyquiz/internal/content"
	"github.com/falroman/partyquiz/internal/models"
)

// Engine bundles the content store and the seedable rng the transitions draw
// from. It holds no game state of its own.
type Engine struct {
	content *content.Store
	rng     *rand.Rand
}

// NewEngine builds an engine over the given content store.
func NewEngine(store *content.Store, rng *rand.Rand) *Engine {
	return &Engine{content: store, rng: rng}
}

// StartNextPlannedRound advances to the next planned round and enters its
// opening phase. Returns false when the sequence is exhausted; the caller then
// finishes the game.
func (e *Engine) StartNextPlannedRound(s *GameState, now time.Time, d Durations) (RoundType, bool, error) {
	if !s.HasMorePlannedRounds() {
		return "", false, nil
	}
	s.PlannedRoundIndex++
	roundType := s.PlannedRounds[s.PlannedRoundIndex]
	s.Round = RoundInfo{
		Number: s.PlannedRoundIndex + 1,
		Type:   roundType,
	}
	s.WinnerPlayerIDs = nil

	switch roundType {
	case RoundCategoryQuiz:
		e.beginCategorySelection(s, now, d)
		return roundType, true, nil
	case RoundDictionaryGame:
		s.WordIndex = 0
		return roundType, true, e.NextDictionaryWord(s, now, d)
	case RoundRankingStars:
		s.PromptIndex = 0
		return roundType, true, e.NextRankingPrompt(s, now, d)
	default:
		return roundType, true, fmt.Errorf("unknown round type %q", roundType)
	}
}

// beginCategorySelection picks the round leader and the categories on offer.
func (e *Engine) beginCategorySelection(s *GameState, now time.Time, d Durations) {
	s.Round.LeaderPlayerID = e.selectRoundLeader(s)
	s.LeaderHistory = append(s.LeaderHistory, s.Round.LeaderPlayerID)
	s.AvailableCategories = e.content.Questions.Categories(s.Locale, CategoryChoices, s.UsedCategories)
	s.Phase = PhaseCategorySelection
	s.PhaseEndsAt = now.Add(d.CategorySelection)
}

// selectRoundLeader picks the player with the lowest score, ties broken by
// scoreboard order. The immediately previous leader is skipped unless that
// would exclude everyone.
func (e *Engine) selectRoundLeader(s *GameState) string {
	var prevLeader string
	if n := len(s.LeaderHistory); n > 0 {
		prevLeader = s.LeaderHistory[n-1]
	}

	pick := func(skip string) string {
		var best *ScoreEntry
		for _, entry := range s.Scoreboard {
			if entry.PlayerID == skip {
				continue
			}
			if best == nil || entry.Score < best.Score {
				best = entry
			}
		}
		if best == nil {
			return ""
		}
		return best.PlayerID
	}

	if leader := pick(prevLeader); leader != "" {
		return leader
	}
	return pick("")
}

// SelectCategory applies the round leader's pick and moves to the first
// question of the round.
func (e *Engine) SelectCategory(s *GameState, playerID, category string, now time.Time, d Durations) *models.GameError {
	if s.Phase != PhaseCategorySelection {
		return models.NewGameError(models.ErrInvalidState, "no category selection in progress")
	}
	if playerID != s.Round.LeaderPlayerID {
		return models.NewGameError(models.ErrNotRoundLeader, "only the round leader selects the category")
	}
	found := ""
	for _, c := range s.AvailableCategories {
		if strings.EqualFold(c, category) {
			found = c
			break
		}
	}
	if found == "" {
		return models.NewGameError(models.ErrInvalidCategory, "category is not on offer")
	}
	return e.startQuestionWithCategory(s, found, now, d)
}

// AutoSelectCategory is the timeout path: picks a random offered category.
func (e *Engine) AutoSelectCategory(s *GameState, now time.Time, d Durations) *models.GameError {
	if s.Phase != PhaseCategorySelection {
		return models.NewGameError(models.ErrInvalidState, "no category selection in progress")
	}
	if len(s.AvailableCategories) == 0 {
		// Nothing on offer: run the round without a category filter.
		return e.startQuestionWithCategory(s, "", now, d)
	}
	pick := s.AvailableCategories[e.rng.Intn(len(s.AvailableCategories))]
	return e.startQuestionWithCategory(s, pick, now, d)
}

func (e *Engine) startQuestionWithCategory(s *GameState, category string, now time.Time, d Durations) *models.GameError {
	s.Round.Category = category
	if category != "" {
		s.UsedCategories[strings.ToLower(category)] = true
	}
	s.AvailableCategories = nil
	if err := e.StartQuestion(s, now, d); err != nil {
		// No questions for this category at all: close the round out.
		e.ShowScoreboard(s, now, d)
		return nil
	}
	return nil
}

// StartQuestion draws the next category-quiz question and enters the Question
// phase. Returns content.ErrNoCandidates (wrapped) when the corpus is
// exhausted; the caller then completes the round.
func (e *Engine) StartQuestion(s *GameState, now time.Time, d Durations) error {
	q, err := e.content.Questions.RandomPick(s.Locale, content.QuestionFilter{Category: s.Round.Category}, s.UsedQuestionIDs)
	if err != nil {
		if errors.Is(err, content.ErrNoCandidates) && s.Round.Category != "" {
			// Category ran dry mid-round; fall back to the whole corpus.
			q, err = e.content.Questions.RandomPick(s.Locale, content.QuestionFilter{}, s.UsedQuestionIDs)
		}
		if err != nil {
			return err
		}
	}
	s.UsedQuestionIDs[q.ID] = true
	s.Round.QuestionInRound++
	s.Question = &CurrentQuestion{
		ID:               q.ID,
		Text:             q.Text,
		Options:          q.Options,
		CorrectOptionKey: strings.ToUpper(q.CorrectOptionKey),
		Explanation:      q.Explanation,
	}
	s.resetAnswers()
	s.resetQuestionFields()
	s.clearEffects()
	s.Phase = PhaseQuestion
	s.PhaseEndsAt = now.Add(d.Question)
	return nil
}

// BeginAnswering opens the submission window for the current question.
func (e *Engine) BeginAnswering(s *GameState, now time.Time, d Durations) {
	s.Phase = PhaseAnswering
	s.PhaseEndsAt = now.Add(d.Answering)
}

// SubmitAnswer records a player's option pick during an answering phase.
// First submission wins; repeats are silently ignored unless a Wildcard is
// active. The submission instant feeds speed scoring.
func (e *Engine) SubmitAnswer(s *GameState, playerID, optionKey string, now time.Time) *models.GameError {
	if s.Phase != PhaseAnswering && s.Phase != PhaseDictionaryAnswering {
		return models.NewGameError(models.ErrInvalidState, "answers are not being accepted right now")
	}
	if !s.InGame(playerID) {
		return models.NewGameError(models.ErrInvalidState, "you are not part of this game")
	}
	if s.IsNoped(playerID) {
		return models.NewGameError(models.ErrPlayerNoped, "you were noped for this question")
	}
	if now.After(s.DeadlineFor(playerID)) {
		return models.NewGameError(models.ErrInvalidState, "the answering window has closed")
	}

	key := strings.ToUpper(strings.TrimSpace(optionKey))
	valid := false
	for _, opt := range s.Question.Options {
		if strings.EqualFold(opt.Key, key) {
			valid = true
			break
		}
	}
	if !valid {
		return models.NewGameError(models.ErrInvalidState, "unknown option key")
	}

	if existing := s.Answers[playerID]; existing != nil {
		if !s.CanChangeAnswer(playerID) {
			// First submission wins; silently idempotent.
			return nil
		}
		existing.Option = key
		return nil
	}

	s.Answers[playerID] = &Answer{Option: key, SubmittedAt: now}
	return nil
}

// Reveal closes the answering window, scores the question and enters Reveal.
func (e *Engine) Reveal(s *GameState, now time.Time, d Durations) {
	scoreSpeedRankedReveal(s)
	recomputePositions(s)
	s.Phase = PhaseReveal
	s.PhaseEndsAt = now.Add(d.Reveal)
}

// ShowScoreboard enters the end-of-round scoreboard. Scoreboards appear only
// at round boundaries, never between questions.
func (e *Engine) ShowScoreboard(s *GameState, now time.Time, d Durations) {
	s.Question = nil
	s.clearEffects()
	s.Phase = PhaseScoreboard
	s.PhaseEndsAt = now.Add(d.Scoreboard)
}

// NextDictionaryWord draws the next word with distractor definitions shuffled
// into options keyed "0".."3", and enters DictionaryWord.
func (e *Engine) NextDictionaryWord(s *GameState, now time.Time, d Durations) error {
	draw, err := e.content.Dictionary.RandomPick(s.Locale, s.UsedWords)
	if err != nil {
		return err
	}
	s.UsedWords[strings.ToLower(draw.Word)] = true
	s.WordIndex++
	s.Round.QuestionInRound = s.WordIndex

	definitions := append([]string{draw.Definition}, draw.Distractors...)
	e.rng.Shuffle(len(definitions), func(i, j int) {
		definitions[i], definitions[j] = definitions[j], definitions[i]
	})
	options := make([]content.Option, len(definitions))
	correct := ""
	for i, def := range definitions {
		key := strconv.Itoa(i)
		options[i] = content.Option{Key: key, Text: def}
		if def == draw.Definition {
			correct = key
		}
	}

	s.Question = &CurrentQuestion{
		ID:               "word:" + draw.Word,
		Text:             draw.Word,
		Options:          options,
		CorrectOptionKey: correct,
	}
	s.resetAnswers()
	s.resetQuestionFields()
	s.clearEffects()
	s.Phase = PhaseDictionaryWord
	s.PhaseEndsAt = now.Add(d.DictionaryWord)
	return nil
}

// BeginDictionaryAnswering opens the definition-pick window.
func (e *Engine) BeginDictionaryAnswering(s *GameState, now time.Time, d Durations) {
	s.Phase = PhaseDictionaryAnswering
	s.PhaseEndsAt = now.Add(d.DictionaryAnswering)
}

// RevealDictionary scores the word and enters Reveal.
func (e *Engine) RevealDictionary(s *GameState, now time.Time, d Durations) {
	scoreDictionaryReveal(s)
	recomputePositions(s)
	s.Phase = PhaseReveal
	s.PhaseEndsAt = now.Add(d.DictionaryReveal)
}

// NextRankingPrompt draws the next ranking prompt and enters RankingPrompt.
func (e *Engine) NextRankingPrompt(s *GameState, now time.Time, d Durations) error {
	prompt, err := e.content.Ranking.RandomPick(s.Locale, s.UsedPrompts)
	if err != nil {
		return err
	}
	s.UsedPrompts[prompt.ID] = true
	s.PromptIndex++
	s.Round.QuestionInRound = s.PromptIndex
	s.WinnerPlayerIDs = nil

	s.Question = &CurrentQuestion{
		ID:   prompt.ID,
		Text: prompt.Prompt,
	}
	s.resetAnswers()
	s.resetQuestionFields()
	s.clearEffects()
	s.Phase = PhaseRankingPrompt
	s.PhaseEndsAt = now.Add(d.RankingPrompt)
	return nil
}

// BeginRankingVoting opens the voting window.
func (e *Engine) BeginRankingVoting(s *GameState, now time.Time, d Durations) {
	s.Phase = PhaseRankingVoting
	s.PhaseEndsAt = now.Add(d.RankingVoting)
}

// SubmitRankingVote records a vote for another player. The target must be on
// the scoreboard and must differ from the voter.
func (e *Engine) SubmitRankingVote(s *GameState, voterID, votedForID string, now time.Time) *models.GameError {
	if s.Phase != PhaseRankingVoting {
		return models.NewGameError(models.ErrInvalidState, "votes are not being accepted right now")
	}
	if !s.InGame(voterID) {
		return models.NewGameError(models.ErrInvalidState, "you are not part of this game")
	}
	if s.IsNoped(voterID) {
		return models.NewGameError(models.ErrPlayerNoped, "you were noped for this prompt")
	}
	if now.After(s.DeadlineFor(voterID)) {
		return models.NewGameError(models.ErrInvalidState, "the voting window has closed")
	}
	if votedForID == voterID {
		return models.NewGameError(models.ErrInvalidState, "you cannot vote for yourself")
	}
	if s.Entry(votedForID) == nil {
		return models.NewGameError(models.ErrInvalidState, "vote target is not in this game")
	}
	if s.Answers[voterID] != nil {
		// First vote wins.
		return nil
	}
	s.Answers[voterID] = &Answer{Option: votedForID, SubmittedAt: now}
	return nil
}

// RevealRanking tallies votes, awards stars and enters RankingReveal.
func (e *Engine) RevealRanking(s *GameState, now time.Time, d Durations) {
	s.WinnerPlayerIDs = scoreRankingReveal(s)
	recomputePositions(s)
	s.Phase = PhaseRankingReveal
	s.PhaseEndsAt = now.Add(d.RankingReveal)
}

// FinishGame enters the terminal phase. The scoreboard stays visible; the
// room is collected later by the janitor.
func (e *Engine) FinishGame(s *GameState) {
	s.Question = nil
	s.clearEffects()
	s.Phase = PhaseFinished
	s.PhaseEndsAt = time.Time{}
}

// AllEligibleAnswered reports whether every eligible player has a non-nil
// entry in the answers map. Eligible ids are the connected players minus any
// blocked by booster effects; players outside the frozen answers map never
// count.
func AllEligibleAnswered(s *GameState, eligibleIDs []string) bool {
	counted := 0
	for _, id := range eligibleIDs {
		answer, inGame := s.Answers[id]
		if !inGame {
			continue
		}
		if answer == nil {
			return false
		}
		counted++
	}
	return counted > 0
}

// EligiblePlayerIDs filters the connected player ids down to those who may
// still act on the current question.
func EligiblePlayerIDs(s *GameState, connectedIDs []string) []string {
	var out []string
	for _, id := range connectedIDs {
		if !s.InGame(id) || s.IsNoped(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
