package ai

const RelationshipBatchPrompt = `
# Task Context
You are an analyst who identifies cause-and-effect relationships between news events.

# Background Data
SOURCE ARTICLE:
ID: %s
Title: %s
Category: %s
Entities: %s
Content: %s

RELATIONSHIP TYPES:
%s

CANDIDATE ARTICLES:
%s

# Detailed Task Description & Rules
For each candidate article, determine:
1. If there's a meaningful relationship with the source article
2. The type of relationship from the list above
3. Confidence level (0.0-1.0)
4. Brief explanation of the relationship
5. Impact level (PRIMARY, SECONDARY, TERTIARY, or QUATERNARY)

- Focus on cause-effect relationships, not just topical similarity.
- Use only the candidate IDs listed above as target_id.
- Only include relationships with confidence >= %.1f.

# Output Formatting
Return a JSON object with this structure:
{
  "relationships": [
    {
      "target_id": "<candidate article id>",
      "type": "<RELATIONSHIP_TYPE>",
      "confidence": 0.8,
      "explanation": "Brief explanation",
      "impact_level": "PRIMARY"
    }
  ]
}
`

const CandidateSummaryPrompt = `
Article %s:
Title: %s
Category: %s
Entities: %s
Content: %s
`

const ForecastPrompt = `
# Task Context
You forecast the likely future impacts of a news event based on historical patterns.

# Background Data
EVENT:
Title: %s
Category: %s
Impact Score: %.1f
Content: %s

HISTORICAL PATTERNS:
Common Effects: %s
Typically Affected Industries: %s

# Detailed Task Description & Rules
Generate 5 specific predictions for what will likely happen as a result of this event.
For each prediction provide:
1. impact: Specific description of what will happen
2. industries: Industries that will be affected
3. entities: Specific companies, organizations or countries likely affected
4. impact_type: One of %s
5. timeframe: [min_days, max_days] when this will occur
6. reasoning: Brief explanation based on historical patterns

# Output Formatting
Return a JSON object:
{
  "predictions": [
    {
      "impact": "Specific prediction",
      "industries": ["Industry1", "Industry2"],
      "entities": ["Entity1", "Entity2"],
      "impact_type": "CAUSES",
      "timeframe": [7, 30],
      "reasoning": "Based on similar events..."
    }
  ]
}
`

const TimelinePrompt = `
# Task Context
You estimate how long a cause-effect relationship between news events takes to play out.

# Background Data
CAUSE: %s
EXPECTED EFFECT: %s

# Detailed Task Description & Rules
Estimate the minimum days until the effect becomes visible and the maximum days for the
full effect to materialize. Consider market reaction speed, regulatory processes, supply
chain adjustments and implementation timelines.

# Output Formatting
Return a JSON object:
{
  "min_days": 7,
  "max_days": 90,
  "reasoning": "Brief explanation"
}
`

const EarlyIndicatorsPrompt = `
# Task Context
You identify early warning indicators that signal a predicted impact is starting.

# Background Data
PREDICTED IMPACT: %s
AFFECTED INDUSTRIES: %s
TIMEFRAME: %d to %d days

# Detailed Task Description & Rules
List 5 specific, measurable early indicators that would signal this impact is beginning.
For each indicator provide:
1. indicator: What to monitor
2. threshold: Specific threshold or change to watch for
3. data_source: Where to find this data
4. lead_time_days: How many days ahead of the impact this indicator typically appears

# Output Formatting
Return a JSON object:
{
  "indicators": [
    {
      "indicator": "Stock price of major auto manufacturers",
      "threshold": "5% decline",
      "data_source": "Financial markets",
      "lead_time_days": 3
    }
  ]
}
`
