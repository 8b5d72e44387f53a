package discovery

import (
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/classifier"
	"github.com/OFFIS-RIT/ripple/pkg/common"
)

const (
	dropUnknownTarget = "unknown_target"
	dropSelfLoop      = "self_loop"
	dropUnknownType   = "unknown_type"
	dropInvalidScore  = "invalid_confidence"
	dropBelowFloor    = "below_threshold"
	dropDuplicate     = "duplicate"
)

// validateEdges turns raw classifier output into relationships. Targets
// must be among the batch candidates, types must be in the taxonomy and
// confidence is clamped to [0,1] before the threshold applies. Unknown
// impact levels default to PRIMARY. Repeated (target, type) pairs keep the
// most confident judgment.
func validateEdges(
	source common.Article,
	batch []common.Article,
	edges []classifier.Edge,
	threshold float64,
	now time.Time,
	drop func(target, reason string),
) []common.Relationship {
	allowed := make(map[common.ArticleID]struct{}, len(batch))
	for _, a := range batch {
		allowed[a.ID] = struct{}{}
	}

	type pair struct {
		target common.ArticleID
		typ    common.RelationshipType
	}
	index := make(map[pair]int, len(edges))
	out := make([]common.Relationship, 0, len(edges))

	for _, e := range edges {
		target := common.ArticleID(strings.TrimSpace(e.TargetID))
		if target == source.ID {
			drop(string(target), dropSelfLoop)
			continue
		}
		if _, ok := allowed[target]; !ok {
			drop(string(target), dropUnknownTarget)
			continue
		}
		typ, ok := common.ParseRelationshipType(e.Type)
		if !ok {
			drop(string(target), dropUnknownType)
			continue
		}
		if math.IsNaN(e.Confidence) {
			drop(string(target), dropInvalidScore)
			continue
		}
		confidence := min(max(e.Confidence, 0), 1)
		if confidence < threshold {
			drop(string(target), dropBelowFloor)
			continue
		}
		level, ok := common.ParseImpactLevel(e.ImpactLevel)
		if !ok {
			level = common.Primary
		}

		rel := common.Relationship{
			SourceID:     source.ID,
			TargetID:     target,
			Type:         typ,
			Confidence:   confidence,
			Explanation:  strings.TrimSpace(e.Explanation),
			ImpactLevel:  level,
			DiscoveredAt: now,
		}
		key := pair{target, typ}
		if i, seen := index[key]; seen {
			drop(string(target), dropDuplicate)
			if rel.Confidence > out[i].Confidence {
				out[i] = rel
			}
			continue
		}
		index[key] = len(out)
		out = append(out, rel)
	}
	return out
}
