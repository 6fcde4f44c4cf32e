// internal/content/questions.go
package content

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Option is one of the four answer options of a question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is a single category-quiz question as loaded from a pack file.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Difficulty       int      `json:"difficulty"`
	Tags             []string `json:"tags,omitempty"`
	Options          []Option `json:"options"`
	CorrectOptionKey string   `json:"correctOptionKey"`
	Explanation      string   `json:"explanation,omitempty"`
}

// QuestionPack mirrors questions.<locale>.json.
type QuestionPack struct {
	SchemaVersion int        `json:"schemaVersion"`
	PackID        string     `json:"packId"`
	Title         string     `json:"title"`
	Locale        string     `json:"locale"`
	Tags          []string   `json:"tags,omitempty"`
	Questions     []Question `json:"questions"`
}

func (p *QuestionPack) validate() []string {
	var problems []string
	if len(p.Questions) == 0 {
		problems = append(problems, "pack contains no questions")
	}
	seen := map[string]bool{}
	for i, q := range p.Questions {
		at := fmt.Sprintf("question %d (id=%q)", i, q.ID)
		if q.ID == "" {
			problems = append(problems, at+": missing id")
		} else if seen[q.ID] {
			problems = append(problems, at+": duplicate id")
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Text) == "" {
			problems = append(problems, at+": empty text")
		}
		if q.Difficulty < 1 || q.Difficulty > 5 {
			problems = append(problems, fmt.Sprintf("%s: difficulty %d outside [1,5]", at, q.Difficulty))
		}
		if len(q.Options) != 4 {
			problems = append(problems, fmt.Sprintf("%s: expected 4 options, got %d", at, len(q.Options)))
		}
		keys := map[string]bool{}
		correctFound := false
		for _, o := range q.Options {
			k := strings.ToUpper(o.Key)
			if keys[k] {
				problems = append(problems, fmt.Sprintf("%s: duplicate option key %q", at, o.Key))
			}
			keys[k] = true
			if strings.EqualFold(o.Key, q.CorrectOptionKey) {
				correctFound = true
			}
		}
		if !correctFound {
			problems = append(problems, fmt.Sprintf("%s: correctOptionKey %q matches no option", at, q.CorrectOptionKey))
		}
	}
	return problems
}

// QuestionFilter narrows a draw. Zero values match everything.
type QuestionFilter struct {
	Category      string
	MinDifficulty int
	MaxDifficulty int
	Tags          []string
}

func (f QuestionFilter) matches(q Question) bool {
	if f.Category != "" && !strings.EqualFold(q.Category, f.Category) {
		return false
	}
	if f.MinDifficulty > 0 && q.Difficulty < f.MinDifficulty {
		return false
	}
	if f.MaxDifficulty > 0 && q.Difficulty > f.MaxDifficulty {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, have := range q.Tags {
			if strings.EqualFold(want, have) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// QuestionProvider serves deterministic-under-seed filtered draws from the
// loaded question packs. Read-only after load; the rng is serialised.
type QuestionProvider struct {
	mu    sync.Mutex
	packs map[string][]Question // locale -> questions
	rng   *rand.Rand
}

// RandomPick draws a question for the locale matching the filter, excluding
// ids already seen this game. Returns ErrNoCandidates when nothing matches.
func (p *QuestionProvider) RandomPick(locale string, filter QuestionFilter, exclude map[string]bool) (*Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []Question
	for _, q := range p.packs[locale] {
		if exclude[q.ID] || !filter.matches(q) {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	q := candidates[p.rng.Intn(len(candidates))]
	return &q, nil
}

// Categories returns up to n distinct category names for the locale, excluding
// categories already used this game. Order is randomised under the seed.
func (p *QuestionProvider) Categories(locale string, n int, exclude map[string]bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := map[string]string{} // folded -> display
	for _, q := range p.packs[locale] {
		if q.Category == "" {
			continue
		}
		folded := strings.ToLower(q.Category)
		if exclude[folded] {
			continue
		}
		set[folded] = q.Category
	}
	names := make([]string, 0, len(set))
	for _, display := range set {
		names = append(names, display)
	}
	sort.Strings(names)
	p.rng.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
