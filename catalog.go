package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
)

// Question is a single multiple-choice record. Immutable once selected
// into a match.
type Question struct {
	Text     string   `json:"question"`
	Choices  []string `json:"choices"`
	Correct  int      `json:"correct"`
	Category string   `json:"category"`
}

func (q Question) valid() bool {
	return q.Text != "" && len(q.Choices) >= 2 && q.Correct >= 0 && q.Correct < len(q.Choices)
}

// Catalog holds the static question dataset loaded at startup.
type Catalog struct {
	questions []Question
}

// loadCatalog reads the embedded question set, or the file given by
// --questions if set.
func loadCatalog(cfg *Config) (*Catalog, error) {
	data, err := assets.ReadFile("assets/trivia/questions.json")
	if cfg.questionsPath != "" {
		data, err = os.ReadFile(cfg.questionsPath)
	}
	if err != nil {
		return nil, err
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parsing question catalog: %w", err)
	}

	return newCatalog(questions)
}

func newCatalog(questions []Question) (*Catalog, error) {
	kept := make([]Question, 0, len(questions))
	for _, q := range questions {
		if q.valid() {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("question catalog is empty")
	}

	return &Catalog{questions: kept}, nil
}

func (c *Catalog) Len() int {
	return len(c.questions)
}

// Categories returns the distinct category labels, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, q := range c.questions {
		if !seen[q.Category] {
			seen[q.Category] = true
			categories = append(categories, q.Category)
		}
	}
	slices.Sort(categories)

	return categories
}

// Select picks the question set for a match:
//   - a custom list with at least n entries is shuffled and truncated to n
//   - otherwise, categories filter the catalog; when the filtered pool runs
//     short, the remainder is backfilled from the full catalog
//   - otherwise, n random questions from the full catalog
//
// The result is always deduplicated by question text.
func (c *Catalog) Select(custom []Question, categories []string, n int) []Question {
	if len(custom) >= n {
		pool := dedupeByText(custom)
		if len(pool) >= n {
			shuffleQuestions(pool)
			return pool[:n]
		}
	}

	var pool []Question
	if len(categories) > 0 {
		wanted := make(map[string]bool, len(categories))
		for _, category := range categories {
			wanted[category] = true
		}
		for _, q := range c.questions {
			if wanted[q.Category] {
				pool = append(pool, q)
			}
		}
	} else {
		pool = slices.Clone(c.questions)
	}

	pool = dedupeByText(pool)
	shuffleQuestions(pool)

	if len(pool) > n {
		pool = pool[:n]
	}

	// Backfill from the full catalog when a category filter left us short.
	if len(pool) < n {
		seen := make(map[string]bool, len(pool))
		for _, q := range pool {
			seen[q.Text] = true
		}

		rest := make([]Question, 0, len(c.questions))
		for _, q := range c.questions {
			if !seen[q.Text] {
				seen[q.Text] = true
				rest = append(rest, q)
			}
		}
		shuffleQuestions(rest)

		for _, q := range rest {
			if len(pool) >= n {
				break
			}
			pool = append(pool, q)
		}
	}

	return pool
}

func dedupeByText(questions []Question) []Question {
	seen := make(map[string]bool, len(questions))
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		if seen[q.Text] {
			continue
		}
		seen[q.Text] = true
		out = append(out, q)
	}

	return out
}

func shuffleQuestions(questions []Question) {
	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}
