package discovery

import (
	"math"
	"sort"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/ai"
	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// SelectorConfig tunes candidate selection.
type SelectorConfig struct {
	TemporalWindow      time.Duration
	SimilarityThreshold float64
	// FullScan keeps every candidate inside the temporal window and leaves
	// the filtering to the classifier.
	FullScan bool
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		TemporalWindow:      30 * 24 * time.Hour,
		SimilarityThreshold: 0.7,
		FullScan:            true,
	}
}

// Candidate is an article that passed selection, with its scores.
type Candidate struct {
	Article       common.Article
	EntityOverlap float64
	Similarity    float64
	Score         float64
}

// Selector narrows the corpus to plausible relatives of a source article.
type Selector struct {
	cfg SelectorConfig
}

func NewSelector(cfg SelectorConfig) Selector {
	return Selector{cfg: cfg}
}

// Select returns candidates ordered by descending score. Ties keep the
// universe order. The source itself is never a candidate.
func (s Selector) Select(source common.Article, universe []common.Article) []Candidate {
	sourceEntities := make(map[string]struct{}, len(source.Entities))
	for _, e := range source.Entities {
		sourceEntities[e] = struct{}{}
	}
	denom := float64(max(len(sourceEntities), 1))

	out := []Candidate{}
	for _, a := range universe {
		if a.ID == source.ID {
			continue
		}
		gap := a.Timestamp.Sub(source.Timestamp)
		if s.cfg.TemporalWindow > 0 && math.Abs(float64(gap)) > float64(s.cfg.TemporalWindow) {
			continue
		}

		shared := 0
		seen := make(map[string]struct{}, len(a.Entities))
		for _, e := range a.Entities {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			if _, ok := sourceEntities[e]; ok {
				shared++
			}
		}
		overlap := float64(shared) / denom

		var similarity float64
		if len(source.Embedding) > 0 && len(a.Embedding) > 0 {
			similarity = ai.Dot(source.Embedding, a.Embedding)
		}

		if overlap > 0 || similarity > s.cfg.SimilarityThreshold || s.cfg.FullScan {
			out = append(out, Candidate{
				Article:       a,
				EntityOverlap: overlap,
				Similarity:    similarity,
				Score:         overlap + similarity,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
