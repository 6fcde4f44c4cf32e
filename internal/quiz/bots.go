// internal/quiz/bots.go
package quiz

// BotActionKind classifies what a computer player should do next.
type BotActionKind string

const (
	BotSelectCategory BotActionKind = "selectCategory"
	BotAnswer         BotActionKind = "answer"
	BotVote           BotActionKind = "vote"
)

// BotAction is one pending move for a bot, as seen by the autoplay driver.
// Choices are the legal inputs; Correct, when known, lets the driver weigh
// the pick by the bot's skill.
type BotAction struct {
	PlayerID string
	Skill    int
	Kind     BotActionKind
	Choices  []string
	Correct  string
}

// PendingBotActions lists the moves bots still owe in the current phase. The
// driver polls this and feeds the results back through the regular command
// handlers, so bot moves obey exactly the same validation as human ones.
func (o *Orchestrator) PendingBotActions(code string) []BotAction {
	lk := o.registry.Lock(code)
	lk.Lock()
	defer lk.Unlock()

	ag, ok := o.game(code)
	if !ok {
		return nil
	}
	r, ok := o.registry.Get(code)
	if !ok {
		return nil
	}
	s := ag.state

	var out []BotAction
	switch s.Phase {
	case PhaseCategorySelection:
		leader := r.Players[s.Round.LeaderPlayerID]
		if leader != nil && leader.IsBot && len(s.AvailableCategories) > 0 {
			out = append(out, BotAction{
				PlayerID: leader.ID,
				Skill:    leader.BotSkill,
				Kind:     BotSelectCategory,
				Choices:  append([]string(nil), s.AvailableCategories...),
			})
		}

	case PhaseAnswering, PhaseDictionaryAnswering:
		if s.Question == nil {
			break
		}
		var keys []string
		for _, opt := range s.Question.Options {
			keys = append(keys, opt.Key)
		}
		for _, entry := range s.Scoreboard {
			p := r.Players[entry.PlayerID]
			if p == nil || !p.IsBot {
				continue
			}
			if s.IsNoped(p.ID) || s.Answers[p.ID] != nil {
				continue
			}
			out = append(out, BotAction{
				PlayerID: p.ID,
				Skill:    p.BotSkill,
				Kind:     BotAnswer,
				Choices:  append([]string(nil), keys...),
				Correct:  s.Question.CorrectOptionKey,
			})
		}

	case PhaseRankingVoting:
		for _, entry := range s.Scoreboard {
			p := r.Players[entry.PlayerID]
			if p == nil || !p.IsBot {
				continue
			}
			if s.IsNoped(p.ID) || s.Answers[p.ID] != nil {
				continue
			}
			var targets []string
			for _, other := range s.Scoreboard {
				if other.PlayerID != p.ID {
					targets = append(targets, other.PlayerID)
				}
			}
			if len(targets) == 0 {
				continue
			}
			out = append(out, BotAction{
				PlayerID: p.ID,
				Skill:    p.BotSkill,
				Kind:     BotVote,
				Choices:  targets,
			})
		}
	}
	return out
}
