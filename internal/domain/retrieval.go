package domain

// RetrievalResult maps a collection name to the payload texts of its nearest records,
// most similar first. Collections with no hits are absent.
type RetrievalResult map[string][]string

// Suggestions maps a collection name to related values the model did not select.
// Keys never overlap with ValidatedFilters.Filters.
type Suggestions map[string][]string

// Retrieval is the output of a fan-out search: the query vector and what it matched.
type Retrieval struct {
	Vector []float32
	Result RetrievalResult
}

// Has reports whether value is present verbatim in the list for collection.
func (r RetrievalResult) Has(collection, value string) bool {
	for _, v := range r[collection] {
		if v == value {
			return true
		}
	}
	return false
}
