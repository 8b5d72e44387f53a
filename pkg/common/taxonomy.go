package common

import (
	"slices"
	"strings"
)

// RelationshipType is one of the fixed causal relationship kinds.
type RelationshipType string

const (
	Causes              RelationshipType = "CAUSES"
	TriggersRetaliation RelationshipType = "TRIGGERS_RETALIATION"
	CreatesOpportunity  RelationshipType = "CREATES_OPPORTUNITY"
	DisruptsSupplyChain RelationshipType = "DISRUPTS_SUPPLY_CHAIN"
	ShiftsCompetition   RelationshipType = "SHIFTS_COMPETITION"
	AffectsRegulation   RelationshipType = "AFFECTS_REGULATION"
	ImpactsFinance      RelationshipType = "IMPACTS_FINANCE"
	AmplifiesTrend      RelationshipType = "AMPLIFIES_TREND"
	ReversesTrend       RelationshipType = "REVERSES_TREND"
)

// RelationshipTypeInfo describes a relationship type for prompts and weighting.
type RelationshipTypeInfo struct {
	Type        RelationshipType `json:"type"`
	Description string           `json:"description"`
	Weight      float64          `json:"weight"`
	Keywords    []string         `json:"keywords"`
}

// RelationshipTypes lists the taxonomy in prompt order.
var RelationshipTypes = []RelationshipTypeInfo{
	{Causes, "Direct causation", 1.0, []string{"causes", "leads to", "results in", "triggers", "drives"}},
	{TriggersRetaliation, "Provokes counter-action", 0.9, []string{"retaliation", "response", "counter", "backlash", "revenge"}},
	{CreatesOpportunity, "Opens market/business opportunity", 0.8, []string{"opportunity", "benefit", "advantage", "opening", "chance"}},
	{DisruptsSupplyChain, "Affects production/distribution", 0.85, []string{"supply chain", "production", "shortage", "disruption", "bottleneck"}},
	{ShiftsCompetition, "Changes competitive landscape", 0.7, []string{"competition", "market share", "rival", "competitor", "strategic"}},
	{AffectsRegulation, "Influences policy/law", 0.75, []string{"regulation", "policy", "law", "compliance", "legislation"}},
	{ImpactsFinance, "Affects markets/currency/rates", 0.8, []string{"market", "currency", "stock", "bond", "financial", "rates"}},
	{AmplifiesTrend, "Reinforces existing movement", 0.6, []string{"accelerates", "amplifies", "strengthens", "reinforces"}},
	{ReversesTrend, "Counters existing movement", 0.7, []string{"reverses", "counters", "undermines", "weakens", "opposes"}},
}

// ParseRelationshipType normalizes s and reports whether it names a known type.
func ParseRelationshipType(s string) (RelationshipType, bool) {
	t := RelationshipType(strings.ToUpper(strings.TrimSpace(s)))
	for _, info := range RelationshipTypes {
		if info.Type == t {
			return t, true
		}
	}
	return "", false
}

// Established reports whether t is one of the types with strong historical
// grounding, which raises prediction confidence.
func (t RelationshipType) Established() bool {
	return t == Causes || t == TriggersRetaliation
}

// ImpactLevel is the tier of an effect relative to its source event.
type ImpactLevel string

const (
	Primary    ImpactLevel = "PRIMARY"
	Secondary  ImpactLevel = "SECONDARY"
	Tertiary   ImpactLevel = "TERTIARY"
	Quaternary ImpactLevel = "QUATERNARY"
)

// ImpactLevelInfo carries the description and propagation factor of a tier.
type ImpactLevelInfo struct {
	Level             ImpactLevel `json:"level"`
	Description       string      `json:"description"`
	PropagationFactor float64     `json:"propagation_factor"`
}

// ImpactLevels is ordered from nearest to farthest tier. Propagation
// factors strictly decrease along the slice.
var ImpactLevels = []ImpactLevelInfo{
	{Primary, "Direct effect on mentioned entities", 1.0},
	{Secondary, "Effects on suppliers, customers, competitors", 0.7},
	{Tertiary, "Broader market and economic effects", 0.4},
	{Quaternary, "Geopolitical and social implications", 0.2},
}

// ParseImpactLevel normalizes s and reports whether it names a known tier.
func ParseImpactLevel(s string) (ImpactLevel, bool) {
	l := ImpactLevel(strings.ToUpper(strings.TrimSpace(s)))
	for _, info := range ImpactLevels {
		if info.Level == l {
			return l, true
		}
	}
	return "", false
}

// LevelForHop maps a hop distance (1-based) to its tier. Hops beyond the
// third are all QUATERNARY.
func LevelForHop(hop int) ImpactLevel {
	switch {
	case hop <= 1:
		return Primary
	case hop == 2:
		return Secondary
	case hop == 3:
		return Tertiary
	default:
		return Quaternary
	}
}

func (l ImpactLevel) PropagationFactor() float64 {
	for _, info := range ImpactLevels {
		if info.Level == l {
			return info.PropagationFactor
		}
	}
	return 0
}

// CausationPattern is a named template of topic keywords that commonly
// appear, in order, across a causal chain.
type CausationPattern struct {
	Name                string   `json:"name"`
	Sequence            []string `json:"sequence"`
	TypicalDurationDays int      `json:"typical_duration_days"`
}

var DefaultPatterns = []CausationPattern{
	{Name: "Trade War Cascade", Sequence: []string{"tariff", "retaliation", "opportunity", "realignment"}, TypicalDurationDays: 90},
	{Name: "Regulatory Ripple", Sequence: []string{"regulation", "compliance", "consolidation", "innovation"}, TypicalDurationDays: 180},
	{Name: "Tech Disruption", Sequence: []string{"breakthrough", "threat", "pivot", "acquisition"}, TypicalDurationDays: 365},
	{Name: "Financial Contagion", Sequence: []string{"crisis", "spread", "intervention", "recovery"}, TypicalDurationDays: 60},
	{Name: "Supply Shock", Sequence: []string{"disruption", "shortage", "substitution", "normalization"}, TypicalDurationDays: 120},
}

const (
	UnknownCategory      = "Unknown"
	DefaultImpactScore   = 5.0
	ImpactScoreThreshold = 5.0
)

var IndustryCategories = []string{
	"Automotive", "Technology", "Finance", "Agriculture",
	"Energy", "Healthcare", "Real Estate", "Manufacturing",
	"Retail", "Transportation", "Telecommunications", "Media",
	"Pharmaceuticals", "Aerospace", "Defense", "Mining",
	"Construction", "Hospitality", "Education", "Government",
}

// IsIndustry reports whether name is one of IndustryCategories, ignoring case.
func IsIndustry(name string) bool {
	return slices.ContainsFunc(IndustryCategories, func(c string) bool {
		return strings.EqualFold(c, name)
	})
}
