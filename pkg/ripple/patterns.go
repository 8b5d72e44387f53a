package ripple

import (
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/ripple/pkg/common"
)

// PatternKey groups historical effects by the category of their source and
// the type of the relationship that reached them.
type PatternKey struct {
	Category string                  `json:"category"`
	Type     common.RelationshipType `json:"relationship_type"`
}

// Instance is one observed source to effect pair.
type Instance struct {
	Source      common.Article     `json:"source"`
	Effect      common.Article     `json:"effect"`
	Level       common.ImpactLevel `json:"impact_level"`
	TemporalGap float64            `json:"temporal_gap"`
}

// PatternDB is the historical effect database. It is safe for concurrent
// use.
type PatternDB struct {
	mu       sync.RWMutex
	patterns map[PatternKey][]Instance
	sources  map[common.ArticleID]struct{}
}

func NewPatternDB() *PatternDB {
	return &PatternDB{
		patterns: make(map[PatternKey][]Instance),
		sources:  make(map[common.ArticleID]struct{}),
	}
}

// Rebuild replaces the database with the ripple effects of every article.
func (db *PatternDB) Rebuild(p *Propagator, articles []common.Article) {
	patterns := make(map[PatternKey][]Instance)
	sources := make(map[common.ArticleID]struct{}, len(articles))
	for _, a := range articles {
		report, err := p.Track(a.ID, DefaultMaxHops)
		if err != nil {
			continue
		}
		collect(patterns, a, report)
		sources[a.ID] = struct{}{}
	}

	db.mu.Lock()
	db.patterns = patterns
	db.sources = sources
	db.mu.Unlock()
	log.Info("Built pattern database", "patterns", len(patterns), "sources", len(sources))
}

// Append adds the ripple effects of a newly ingested article. An article
// already in the database is skipped.
func (db *PatternDB) Append(p *Propagator, a common.Article) error {
	db.mu.RLock()
	_, known := db.sources[a.ID]
	db.mu.RUnlock()
	if known {
		return nil
	}

	report, err := p.Track(a.ID, DefaultMaxHops)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sources[a.ID]; ok {
		return nil
	}
	collect(db.patterns, a, report)
	db.sources[a.ID] = struct{}{}
	return nil
}

func collect(patterns map[PatternKey][]Instance, source common.Article, report Report) {
	source.Embedding = nil
	for _, info := range common.ImpactLevels {
		for _, e := range report.Level(info.Level) {
			key := PatternKey{Category: source.Category, Type: e.Relationship.Type}
			patterns[key] = append(patterns[key], Instance{
				Source:      source,
				Effect:      e.Article,
				Level:       info.Level,
				TemporalGap: e.Relationship.TemporalGapDays,
			})
		}
	}
}

// Len returns the number of distinct pattern keys.
func (db *PatternDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.patterns)
}

// Keys returns the pattern keys in a stable order.
func (db *PatternDB) Keys() []PatternKey {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.keysLocked()
}

func (db *PatternDB) Instances(key PatternKey) []Instance {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.patterns[key])
}

// Gaps returns the temporal gaps of every instance whose source has the
// given category and whose effect title contains target, ignoring case.
func (db *PatternDB) Gaps(category, target string) []float64 {
	target = strings.ToLower(target)
	db.mu.RLock()
	defer db.mu.RUnlock()
	var gaps []float64
	for _, k := range db.keysLocked() {
		for _, inst := range db.patterns[k] {
			if inst.Source.Category != category {
				continue
			}
			if !strings.Contains(strings.ToLower(inst.Effect.Title), target) {
				continue
			}
			gaps = append(gaps, inst.TemporalGap)
		}
	}
	return gaps
}

func (db *PatternDB) keysLocked() []PatternKey {
	keys := make([]PatternKey, 0, len(db.patterns))
	for k := range db.patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. values need not be sorted.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
