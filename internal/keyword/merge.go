// Package keyword implements the fuzzy merge assistant: an offline batch job
// that finds near-duplicate keyword strings and consolidates them.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/starford/slideman/internal/apperr"
	"github.com/starford/slideman/internal/models"
	"github.com/starford/slideman/internal/store"
)

// Candidate is a proposed merge of two near-duplicate keywords. The winner
// keeps its spelling; the loser's links move to the winner.
type Candidate struct {
	WinnerID   int64   `json:"winner_id"`
	LoserID    int64   `json:"loser_id"`
	Winner     string  `json:"winner"`
	Loser      string  `json:"loser"`
	Kind       string  `json:"kind"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// Merger scans the keyword table for near-duplicates.
type Merger struct {
	db        *store.DB
	threshold float64
}

// NewMerger creates a merger. Threshold is the maximum edit distance per
// character of the longer keyword for a pair to qualify (0 < threshold <= 1).
func NewMerger(db *store.DB, threshold float64) *Merger {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.34
	}
	return &Merger{db: db, threshold: threshold}
}

// Duplicates returns merge candidates ordered by similarity (best first).
// Keywords of different kinds never pair: merging cannot change a kind.
func (m *Merger) Duplicates() ([]Candidate, error) {
	kws, err := m.db.ListKeywords("")
	if err != nil {
		return nil, err
	}

	byKind := make(map[string][]models.Keyword)
	for _, k := range kws {
		byKind[k.Kind] = append(byKind[k.Kind], k)
	}

	usage := make(map[int64]int, len(kws))
	for _, k := range kws {
		slides, elements, err := m.db.KeywordLinks(k.ID)
		if err != nil {
			return nil, err
		}
		usage[k.ID] = len(slides) + len(elements)
	}

	var out []Candidate
	for kind, group := range byKind {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				na := store.NormalizeKeywordText(a.Text)
				nb := store.NormalizeKeywordText(b.Text)
				d := levenshtein.ComputeDistance(na, nb)
				longer := max(len([]rune(na)), len([]rune(nb)))
				if longer == 0 {
					continue
				}
				ratio := float64(d) / float64(longer)
				if ratio > m.threshold {
					continue
				}

				// The more-used spelling wins; ties go to the older keyword.
				winner, loser := a, b
				if usage[b.ID] > usage[a.ID] || (usage[b.ID] == usage[a.ID] && b.ID < a.ID) {
					winner, loser = b, a
				}
				out = append(out, Candidate{
					WinnerID:   winner.ID,
					LoserID:    loser.ID,
					Winner:     winner.Text,
					Loser:      loser.Text,
					Kind:       kind,
					Distance:   d,
					Similarity: 1 - ratio,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].LoserID < out[j].LoserID
	})
	return out, nil
}

// Apply performs one merge.
func (m *Merger) Apply(c Candidate) error {
	if err := m.db.MergeKeywords(c.WinnerID, c.LoserID); err != nil {
		return fmt.Errorf("keyword: merge %q into %q: %w", c.Loser, c.Winner, err)
	}
	return nil
}

// MergeAll applies every candidate, skipping ones whose loser has already
// been consumed by an earlier merge. Returns the number of merges applied.
func (m *Merger) MergeAll(ctx context.Context, cands []Candidate, logger *slog.Logger) (int, error) {
	applied := 0
	for _, c := range cands {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		default:
		}
		err := m.Apply(c)
		switch {
		case err == nil:
			applied++
			logger.Info("merged keyword",
				slog.String("loser", c.Loser),
				slog.String("winner", c.Winner),
				slog.String("kind", c.Kind))
		case errors.Is(err, apperr.ErrNotFound):
			// Loser already merged away by an earlier candidate.
		default:
			return applied, err
		}
	}
	return applied, nil
}
