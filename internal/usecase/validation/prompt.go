package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/valdex/internal/domain"
)

const promptHeader = `
You are a **strict JSON validator**.
Your ONLY source of truth is the data inside "qdrant_results".
Never use external knowledge or make assumptions.

### Task
1. Understand the user's query.
2. Match it ONLY with information available in "qdrant_results".
3. Extract the most relevant filters (keys and values) that align with the query intent.
4. If data is missing, clearly say that instead of guessing.

### Output Format (strict JSON only)
{
  "intent": "<exact query>",
  "validated_filters": {
    "<filter_name>": ["<relevant_value1>", "<relevant_value2>"]
  },
  "reasoning": "<brief factual reason>"
}

### Rules
- Do NOT fabricate or hallucinate filters.
- Use only keys and values exactly present in qdrant_results.
- Always output valid JSON (no markdown, no commentary).

### Input
`

// promptInput is serialized in field order: query, qdrant_results, mode.
type promptInput struct {
	Query   string                 `json:"query"`
	Results domain.RetrievalResult `json:"qdrant_results"`
	Mode    string                 `json:"mode"`
}

// BuildPrompt renders the validator prompt for a query and its retrieval result.
func BuildPrompt(query string, rr domain.RetrievalResult) (string, error) {
	if rr == nil {
		rr = domain.RetrievalResult{}
	}

	var buf bytes.Buffer
	buf.WriteString(promptHeader)

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(promptInput{Query: query, Results: rr, Mode: domain.ModeLive}); err != nil {
		return "", fmt.Errorf("encode prompt input: %w", err)
	}
	return buf.String(), nil
}
