package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// --- Mocks ---

type mockRetriever struct {
	res   domain.Retrieval
	err   error
	query string
}

func (m *mockRetriever) Retrieve(_ context.Context, q string) (domain.Retrieval, error) {
	m.query = q
	return m.res, m.err
}

type mockValidator struct {
	res   domain.ValidatedFilters
	err   error
	calls int
}

func (m *mockValidator) Validate(context.Context, string, domain.RetrievalResult) (domain.ValidatedFilters, error) {
	m.calls++
	return m.res, m.err
}

type mockSuggester struct {
	res       domain.Suggestions
	calls     int
	gotVec    []float32
	validated domain.FilterValues
}

func (m *mockSuggester) Suggest(
	_ context.Context, vec []float32, _ domain.RetrievalResult, validated domain.FilterValues,
) domain.Suggestions {
	m.calls++
	m.gotVec = vec
	m.validated = validated
	return m.res
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

// --- Tests ---

func TestAnswer_EmptyQuery(t *testing.T) {
	r := &mockRetriever{}
	svc := New(r, &mockValidator{}, &mockSuggester{}, zap.NewNop())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Answer(context.Background(), q)
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("query %q: expected ErrInvalidQuery, got %v", q, err)
		}
	}
	if r.query != "" {
		t.Error("retriever must not be called for an empty query")
	}
}

func TestAnswer_FullPipeline(t *testing.T) {
	r := &mockRetriever{res: domain.Retrieval{
		Vector: []float32{1, 0},
		Result: domain.RetrievalResult{"colors": {"red", "blue"}, "sizes": {"M"}},
	}}
	v := &mockValidator{res: domain.ValidatedFilters{
		Intent:    "red",
		Filters:   domain.FilterValues{"colors": {"red"}},
		Reasoning: "match",
	}}
	s := &mockSuggester{res: domain.Suggestions{"sizes": {"M"}}}
	svc := New(r, v, s, zap.NewNop())
	svc.now = stepClock(1234 * time.Millisecond)

	ans, err := svc.Answer(context.Background(), "  red  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.query != "red" {
		t.Errorf("retriever got %q, want trimmed query", r.query)
	}
	if ans.Query != "red" || ans.Mode != domain.ModeLive {
		t.Errorf("query=%q mode=%q", ans.Query, ans.Mode)
	}
	if ans.ProcessingTimeSeconds != 1.23 {
		t.Errorf("processing time = %v, want 1.23", ans.ProcessingTimeSeconds)
	}
	if len(s.gotVec) != 2 {
		t.Error("suggester must reuse the retrieval query vector")
	}
	if _, ok := s.validated["colors"]; !ok {
		t.Error("suggester must receive the validated filters")
	}
	if len(ans.Suggestions["sizes"]) != 1 {
		t.Errorf("suggestions = %v", ans.Suggestions)
	}
}

func TestAnswer_ValidatorErrorPropagates(t *testing.T) {
	v := &mockValidator{err: fmt.Errorf("timeout: %w", domain.ErrLLMUnavailable)}
	s := &mockSuggester{}
	svc := New(&mockRetriever{}, v, s, zap.NewNop())

	_, err := svc.Answer(context.Background(), "red")
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Errorf("expected ErrLLMUnavailable, got %v", err)
	}
	if s.calls != 0 {
		t.Error("suggester must not run after a validator failure")
	}
}

func TestAnswer_RetrieverErrorPropagates(t *testing.T) {
	r := &mockRetriever{err: domain.ErrEmbeddingProviderError}
	v := &mockValidator{}
	svc := New(r, v, &mockSuggester{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "red")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if v.calls != 0 {
		t.Error("validator must not run after a retrieval failure")
	}
}

func TestAnswer_NilMapsBecomeEmpty(t *testing.T) {
	svc := New(&mockRetriever{}, &mockValidator{}, &mockSuggester{}, zap.NewNop())

	ans, err := svc.Answer(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Retrieval == nil || ans.Validated.Filters == nil || ans.Suggestions == nil {
		t.Errorf("maps must be non-nil: %+v", ans)
	}
}

func TestRoundSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want float64
	}{
		{0, 0},
		{4 * time.Millisecond, 0},
		{5 * time.Millisecond, 0.01},
		{1499 * time.Millisecond, 1.5},
		{12346 * time.Millisecond, 12.35},
	}
	for _, tt := range tests {
		if got := roundSeconds(tt.d); got != tt.want {
			t.Errorf("roundSeconds(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}
