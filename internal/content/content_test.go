// internal/content/content_test.go
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion(id, category string) Question {
	return Question{
		ID:         id,
		Text:       "What is " + id + "?",
		Category:   category,
		Difficulty: 2,
		Options: []Option{
			{Key: "A", Text: "a"},
			{Key: "B", Text: "b"},
			{Key: "C", Text: "c"},
			{Key: "D", Text: "d"},
		},
		CorrectOptionKey: "B",
	}
}

func writePack(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "questions.en.json", QuestionPack{
		SchemaVersion: 1,
		PackID:        "base",
		Locale:        "en",
		Questions:     []Question{validQuestion("q1", "History"), validQuestion("q2", "Science")},
	})
	writePack(t, dir, "dictionary.en.json", []DictionaryEntry{
		{Word: "petrichor", Definition: "the smell of rain"},
		{Word: "sonder", Definition: "the realisation others have inner lives"},
		{Word: "apricity", Definition: "the warmth of winter sun"},
		{Word: "vellichor", Definition: "the wistfulness of old bookshops"},
	})
	writePack(t, dir, "rankingstars.en.json", []RankingPrompt{
		{ID: "r1", Prompt: "Most likely to forget their keys?"},
	})

	store, err := Load(dir, 7)
	require.NoError(t, err)
	assert.True(t, store.HasLocale("en"))
	assert.False(t, store.HasLocale("de"))

	q, err := store.Questions.RandomPick("en", QuestionFilter{}, nil)
	require.NoError(t, err)
	assert.Contains(t, []string{"q1", "q2"}, q.ID)
}

func TestLoadFailsFastOnMalformedPack(t *testing.T) {
	dir := t.TempDir()
	bad := validQuestion("q1", "History")
	bad.Options = bad.Options[:3] // only 3 options
	bad.Difficulty = 9
	writePack(t, dir, "questions.en.json", QuestionPack{Locale: "en", Questions: []Question{bad, bad}})

	_, err := Load(dir, 1)
	require.Error(t, err)
	// The error names the file and enumerates each problem.
	assert.Contains(t, err.Error(), "questions.en.json")
	assert.Contains(t, err.Error(), "expected 4 options")
	assert.Contains(t, err.Error(), "difficulty 9 outside [1,5]")
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestLoadFailsOnEmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir(), 1)
	assert.Error(t, err)
}

func TestRandomPickHonoursExclusionAndFilter(t *testing.T) {
	store := NewStoreFromPacks(3, map[string][]Question{
		"en": {validQuestion("q1", "History"), validQuestion("q2", "Science")},
	}, nil, nil)

	q, err := store.Questions.RandomPick("en", QuestionFilter{Category: "history"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)

	_, err = store.Questions.RandomPick("en", QuestionFilter{Category: "History"}, map[string]bool{"q1": true})
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = store.Questions.RandomPick("en", QuestionFilter{}, map[string]bool{"q1": true, "q2": true})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestCategoriesAreDistinctAndExcludeUsed(t *testing.T) {
	var qs []Question
	for i := 0; i < 10; i++ {
		qs = append(qs, validQuestion(fmt.Sprintf("q%d", i), fmt.Sprintf("Cat%d", i%5)))
	}
	store := NewStoreFromPacks(3, map[string][]Question{"en": qs}, nil, nil)

	cats := store.Questions.Categories("en", 3, map[string]bool{"cat0": true})
	assert.Len(t, cats, 3)
	seen := map[string]bool{}
	for _, c := range cats {
		assert.NotEqual(t, "Cat0", c)
		assert.False(t, seen[c], "category %s offered twice", c)
		seen[c] = true
	}
}

func TestDictionaryDrawUsesOtherWordsAsDistractors(t *testing.T) {
	entries := []DictionaryEntry{
		{Word: "alpha", Definition: "def-a"},
		{Word: "beta", Definition: "def-b"},
		{Word: "gamma", Definition: "def-c"},
		{Word: "delta", Definition: "def-d"},
		{Word: "epsilon", Definition: "def-e"},
	}
	store := NewStoreFromPacks(3, nil, map[string][]DictionaryEntry{"en": entries}, nil)

	draw, err := store.Dictionary.RandomPick("en", nil)
	require.NoError(t, err)
	assert.Len(t, draw.Distractors, 3)
	assert.NotContains(t, draw.Distractors, draw.Definition)

	// Excluding every word dries the provider up.
	exclude := map[string]bool{}
	for _, e := range entries {
		exclude[e.Word] = true
	}
	_, err = store.Dictionary.RandomPick("en", exclude)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestRankingPickExcludesUsedPrompts(t *testing.T) {
	store := NewStoreFromPacks(3, nil, nil, map[string][]RankingPrompt{
		"en": {{ID: "r1", Prompt: "p1"}, {ID: "r2", Prompt: "p2"}},
	})

	p, err := store.Ranking.RandomPick("en", map[string]bool{"r1": true})
	require.NoError(t, err)
	assert.Equal(t, "r2", p.ID)

	_, err = store.Ranking.RandomPick("en", map[string]bool{"r1": true, "r2": true})
	assert.ErrorIs(t, err, ErrNoCandidates)
}
