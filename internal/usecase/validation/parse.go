package validation

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Stage names which step of Parse produced the result.
type Stage string

// Parse stages.
const (
	StageDirect    Stage = "direct"
	StageExtracted Stage = "extracted"
	StageFallback  Stage = "fallback"
	StageEmpty     Stage = "empty"
)

const invalidJSONPrefix = "invalid JSON format from LLM: "

var errNotObject = errors.New("not a JSON object")

// Parse turns raw model output into ValidatedFilters. It never fails:
//  1. the whole trimmed text is parsed as an object;
//  2. otherwise the first balanced {...} substring is parsed;
//  3. otherwise an IntentError result is synthesized.
func Parse(raw string) (domain.ValidatedFilters, Stage) {
	text := strings.TrimSpace(raw)

	if vf, err := decodeObject(text); err == nil {
		return vf, StageDirect
	}

	candidate, found := firstBalancedObject(text)
	if found {
		vf, err := decodeObject(candidate)
		if err == nil {
			return vf, StageExtracted
		}
		return fallback(invalidJSONPrefix + err.Error()), StageFallback
	}

	return fallback(text), StageFallback
}

func fallback(reasoning string) domain.ValidatedFilters {
	return domain.ValidatedFilters{
		Intent:    domain.IntentError,
		Filters:   domain.FilterValues{},
		Reasoning: reasoning,
	}
}

func decodeObject(text string) (domain.ValidatedFilters, error) {
	if !strings.HasPrefix(text, "{") {
		return domain.ValidatedFilters{}, errNotObject
	}
	var vf domain.ValidatedFilters
	if err := json.Unmarshal([]byte(text), &vf); err != nil {
		return domain.ValidatedFilters{}, err //nolint:wrapcheck // message surfaces in reasoning
	}
	if vf.Filters == nil {
		vf.Filters = domain.FilterValues{}
	}
	return vf, nil
}

// firstBalancedObject returns the first substring that opens with '{' and closes at
// matching depth. Braces inside JSON strings (with backslash escapes) are not counted.
func firstBalancedObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
