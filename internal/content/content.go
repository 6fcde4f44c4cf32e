// internal/content/content.go
//
// Content packs are JSON files loaded once at startup from a Content/
// directory. Validation is fail-fast: any violation aborts startup with an
// error naming the file and enumerating every problem found in it.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCandidates is returned by the providers when no entry survives the
// filter and exclusion set. The engine treats it as round completion.
var ErrNoCandidates = errors.New("content: no candidates match the requested draw")

// Store bundles the three content providers. Read-only after Load; safe for
// concurrent use.
type Store struct {
	Questions  *QuestionProvider
	Dictionary *DictionaryProvider
	Ranking    *RankingProvider

	locales map[string]bool
}

// HasLocale reports whether any pack was loaded for the locale.
func (s *Store) HasLocale(locale string) bool { return s.locales[locale] }

// Load reads every recognised pack file from dir. File naming follows
// questions.<locale>.json, dictionary.<locale>.json, rankingstars.<locale>.json.
func Load(dir string, seed int64) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("content: reading pack directory %s: %w", dir, err)
	}

	store := newStore(seed)
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		parts := strings.Split(e.Name(), ".")
		if len(parts) != 3 {
			continue
		}
		kind, locale := parts[0], parts[1]
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("content: reading %s: %w", path, err)
		}
		switch kind {
		case "questions":
			if err := store.addQuestionPack(locale, path, data); err != nil {
				return nil, err
			}
		case "dictionary":
			if err := store.addDictionaryPack(locale, path, data); err != nil {
				return nil, err
			}
		case "rankingstars":
			if err := store.addRankingPack(locale, path, data); err != nil {
				return nil, err
			}
		default:
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("content: no pack files found in %s", dir)
	}
	return store, nil
}

// NewStoreFromPacks assembles a store from in-memory packs. Used by tests.
func NewStoreFromPacks(seed int64, questions map[string][]Question, dictionary map[string][]DictionaryEntry, ranking map[string][]RankingPrompt) *Store {
	s := newStore(seed)
	for locale, qs := range questions {
		s.Questions.packs[locale] = qs
		s.locales[locale] = true
	}
	for locale, ds := range dictionary {
		s.Dictionary.packs[locale] = ds
		s.locales[locale] = true
	}
	for locale, rs := range ranking {
		s.Ranking.packs[locale] = rs
		s.locales[locale] = true
	}
	return s
}

func newStore(seed int64) *Store {
	// One independent rng per provider so draws stay deterministic under a
	// seed regardless of interleaving across providers.
	return &Store{
		Questions:  &QuestionProvider{packs: map[string][]Question{}, rng: rand.New(rand.NewSource(seed))},
		Dictionary: &DictionaryProvider{packs: map[string][]DictionaryEntry{}, rng: rand.New(rand.NewSource(seed + 1))},
		Ranking:    &RankingProvider{packs: map[string][]RankingPrompt{}, rng: rand.New(rand.NewSource(seed + 2))},
		locales:    map[string]bool{},
	}
}

func (s *Store) addQuestionPack(locale, path string, data []byte) error {
	var pack QuestionPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("content: %s: invalid JSON: %w", path, err)
	}
	if problems := pack.validate(); len(problems) > 0 {
		return packError(path, problems)
	}
	s.Questions.packs[locale] = pack.Questions
	s.locales[locale] = true
	return nil
}

func (s *Store) addDictionaryPack(locale, path string, data []byte) error {
	var entries []DictionaryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("content: %s: invalid JSON: %w", path, err)
	}
	if problems := validateDictionary(entries); len(problems) > 0 {
		return packError(path, problems)
	}
	s.Dictionary.packs[locale] = entries
	s.locales[locale] = true
	return nil
}

func (s *Store) addRankingPack(locale, path string, data []byte) error {
	var prompts []RankingPrompt
	if err := json.Unmarshal(data, &prompts); err != nil {
		return fmt.Errorf("content: %s: invalid JSON: %w", path, err)
	}
	if problems := validateRanking(prompts); len(problems) > 0 {
		return packError(path, problems)
	}
	s.Ranking.packs[locale] = prompts
	s.locales[locale] = true
	return nil
}

func packError(path string, problems []string) error {
	return fmt.Errorf("content: %s: %d problem(s):\n  - %s", path, len(problems), strings.Join(problems, "\n  - "))
}
