package domain

// ModeLive tags every answer produced against the live index.
const ModeLive = "live"

// Answer is the complete result of validating one query.
type Answer struct {
	Query                 string
	Retrieval             RetrievalResult
	Validated             ValidatedFilters
	Suggestions           Suggestions
	ProcessingTimeSeconds float64
	Mode                  string
}
