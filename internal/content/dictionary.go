// internal/content/dictionary.go
package content

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// DictionaryEntry is one word/definition pair from dictionary.<locale>.json.
type DictionaryEntry struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

func validateDictionary(entries []DictionaryEntry) []string {
	var problems []string
	if len(entries) < 4 {
		// 1 real definition + 3 distractors drawn from the same pack.
		problems = append(problems, fmt.Sprintf("need at least 4 entries, got %d", len(entries)))
	}
	seen := map[string]bool{}
	for i, e := range entries {
		at := fmt.Sprintf("entry %d (word=%q)", i, e.Word)
		if strings.TrimSpace(e.Word) == "" {
			problems = append(problems, at+": empty word")
		} else if seen[strings.ToLower(e.Word)] {
			problems = append(problems, at+": duplicate word")
		}
		seen[strings.ToLower(e.Word)] = true
		if strings.TrimSpace(e.Definition) == "" {
			problems = append(problems, at+": empty definition")
		}
	}
	return problems
}

// DictionaryDraw is one drawn word plus distractor definitions from the same
// pack.
type DictionaryDraw struct {
	Word        string
	Definition  string
	Distractors []string
}

// DictionaryProvider serves seeded word draws.
type DictionaryProvider struct {
	mu    sync.Mutex
	packs map[string][]DictionaryEntry
	rng   *rand.Rand
}

// RandomPick draws a word not in exclude, together with three distractor
// definitions belonging to other words of the same pack.
func (p *DictionaryProvider) RandomPick(locale string, exclude map[string]bool) (*DictionaryDraw, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.packs[locale]
	var candidates []DictionaryEntry
	for _, e := range entries {
		if !exclude[strings.ToLower(e.Word)] {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	picked := candidates[p.rng.Intn(len(candidates))]

	var others []string
	for _, e := range entries {
		if !strings.EqualFold(e.Word, picked.Word) {
			others = append(others, e.Definition)
		}
	}
	p.rng.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})
	if len(others) > 3 {
		others = others[:3]
	}

	return &DictionaryDraw{
		Word:        picked.Word,
		Definition:  picked.Definition,
		Distractors: others,
	}, nil
}
