// Package normalize merges chapter candidates collected from provider
// scrapes into one canonical, sorted set: exactly one chapter per distinct
// number, the most complete candidate winning each group.
package normalize

import (
	"sort"

	"github.com/renvik/mangarr/internal/provider"
)

type Order int

const (
	Ascending Order = iota
	Descending
)

// DefaultLanguage is the language that earns no completeness credit.
const DefaultLanguage = "en"

// Weights are the completeness-score contributions per known field.
type Weights struct {
	Title     int `yaml:"title"`
	PageCount int `yaml:"page_count"`
	Published int `yaml:"published"`
	ExtraDate int `yaml:"extra_date"`
	Source    int `yaml:"source"`
	Language  int `yaml:"language"`
	Volume    int `yaml:"volume"`
}

func DefaultWeights() Weights {
	return Weights{
		Title:     3,
		PageCount: 2,
		Published: 2,
		ExtraDate: 1,
		Source:    1,
		Language:  1,
		Volume:    1,
	}
}

// IsZero reports whether no weight is set, as after decoding an empty
// config section.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Score computes the completeness score of a single candidate.
func Score(c provider.Chapter, w Weights) int {
	s := 0
	if c.Title != "" {
		s += w.Title
	}
	if c.PageCount > 0 {
		s += w.PageCount
	}
	if c.PublishedAt != nil {
		s += w.Published
	}
	if c.UpdatedAt != nil {
		s += w.ExtraDate
	}
	if c.Source != "" {
		s += w.Source
	}
	if c.Language != "" && c.Language != DefaultLanguage {
		s += w.Language
	}
	if c.Volume > 0 {
		s += w.Volume
	}
	return s
}

// Chapters dedups candidates by chapter number, drops premium entries, keeps
// the highest-scoring candidate per group (ties keep the first seen) and
// sorts by number. Idempotent: Chapters(Chapters(x)) == Chapters(x).
func Chapters(in []provider.Chapter, w Weights, ord Order) []provider.Chapter {
	best := make(map[string]provider.Chapter, len(in))
	scores := make(map[string]int, len(in))
	order := make([]string, 0, len(in))

	for _, c := range in {
		if c.Premium {
			continue
		}
		sc := Score(c, w)
		prev, seen := best[c.Label]
		if !seen {
			best[c.Label] = c
			scores[c.Label] = sc
			order = append(order, c.Label)
			continue
		}
		if sc > scores[c.Label] {
			// Keep the winner's identity but never lose fields the loser had.
			best[c.Label] = merge(c, prev)
			scores[c.Label] = Score(best[c.Label], w)
		} else {
			best[c.Label] = merge(prev, c)
			scores[c.Label] = Score(best[c.Label], w)
		}
	}

	out := make([]provider.Chapter, 0, len(order))
	for _, label := range order {
		out = append(out, best[label])
	}

	sortChapters(out, ord)
	return out
}

// merge fills winner's empty fields from loser.
func merge(winner, loser provider.Chapter) provider.Chapter {
	if winner.Title == "" {
		winner.Title = loser.Title
	}
	if winner.Language == "" {
		winner.Language = loser.Language
	}
	if winner.Volume == 0 {
		winner.Volume = loser.Volume
	}
	if winner.PageCount == 0 {
		winner.PageCount = loser.PageCount
	}
	if winner.PublishedAt == nil {
		winner.PublishedAt = loser.PublishedAt
	}
	if winner.UpdatedAt == nil {
		winner.UpdatedAt = loser.UpdatedAt
	}
	if winner.Source == "" {
		winner.Source = loser.Source
	}
	return winner
}

func sortChapters(chs []provider.Chapter, ord Order) {
	sort.SliceStable(chs, func(i, j int) bool {
		a, b := chs[i], chs[j]
		if ord == Descending {
			a, b = b, a
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Label < b.Label
	})
}
