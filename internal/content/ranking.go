// internal/content/ranking.go
package content

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// RankingPrompt is one "who is most likely to…" style prompt from
// rankingstars.<locale>.json.
type RankingPrompt struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

func validateRanking(prompts []RankingPrompt) []string {
	var problems []string
	if len(prompts) == 0 {
		problems = append(problems, "pack contains no prompts")
	}
	seen := map[string]bool{}
	for i, p := range prompts {
		at := fmt.Sprintf("prompt %d (id=%q)", i, p.ID)
		if p.ID == "" {
			problems = append(problems, at+": missing id")
		} else if seen[p.ID] {
			problems = append(problems, at+": duplicate id")
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Prompt) == "" {
			problems = append(problems, at+": empty prompt")
		}
	}
	return problems
}

// RankingProvider serves seeded prompt draws.
type RankingProvider struct {
	mu    sync.Mutex
	packs map[string][]RankingPrompt
	rng   *rand.Rand
}

// RandomPick draws a prompt whose id is not in exclude.
func (p *RankingProvider) RandomPick(locale string, exclude map[string]bool) (*RankingPrompt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []RankingPrompt
	for _, pr := range p.packs[locale] {
		if !exclude[pr.ID] {
			candidates = append(candidates, pr)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	picked := candidates[p.rng.Intn(len(candidates))]
	return &picked, nil
}
