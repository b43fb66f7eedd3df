package suggestion

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/domain"
)

// Defaults.
const (
	DefaultSimilarityFloor  = 0.8
	DefaultMaxPerCollection = 3
)

// Config tunes ranking.
type Config struct {
	SimilarityFloor  float64
	MaxPerCollection int
}

// Scored is a candidate value with its similarity to the query.
type Scored struct {
	Value string
	Score float64
}

// Service ranks retrieved values the model did not pick.
type Service struct {
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a suggestion service.
func New(embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.SimilarityFloor <= 0 {
		cfg.SimilarityFloor = DefaultSimilarityFloor
	}
	if cfg.MaxPerCollection <= 0 {
		cfg.MaxPerCollection = DefaultMaxPerCollection
	}
	return &Service{embed: embed, cfg: cfg, logger: logger}
}

// Suggest scores the values of every collection the model did not use against queryVec.
// Values at or above the floor are kept, best first, up to the per-collection cap.
// A value that fails to embed is skipped. Collections without survivors are omitted.
func (s *Service) Suggest(
	ctx context.Context, queryVec []float32, rr domain.RetrievalResult, validated domain.FilterValues,
) domain.Suggestions {
	picked := validatedValues(validated)

	out := domain.Suggestions{}
	for collection, values := range rr {
		if used(collection, values, validated, picked) {
			continue
		}

		ranked := s.rank(ctx, collection, queryVec, values)
		if len(ranked) == 0 {
			continue
		}

		top := make([]string, len(ranked))
		for i, sc := range ranked {
			top[i] = sc.Value
		}
		out[collection] = top
	}
	return out
}

// validatedValues collects every value the model selected, under any key.
func validatedValues(validated domain.FilterValues) map[string]struct{} {
	set := make(map[string]struct{})
	for _, vs := range validated {
		for _, v := range vs {
			set[v] = struct{}{}
		}
	}
	return set
}

// used reports whether the model filtered on a collection. Filter keys are free text
// ("color" for collection "colors"), so a collection also counts as used when one of
// its retrieved values was selected verbatim.
func used(collection string, values []string, validated domain.FilterValues, picked map[string]struct{}) bool {
	if _, ok := validated[collection]; ok {
		return true
	}
	for _, v := range values {
		if _, ok := picked[v]; ok {
			return true
		}
	}
	return false
}

// rank returns surviving candidates for one collection.
func (s *Service) rank(ctx context.Context, collection string, queryVec []float32, values []string) []Scored {
	scored := make([]Scored, 0, len(values))
	for _, v := range values {
		emb, err := s.embed.Embed(ctx, v)
		if err != nil {
			s.logger.Debug("Skipping suggestion candidate",
				zap.String("collection", collection),
				zap.String("value", v),
				zap.Error(err),
			)
			continue
		}
		score := domain.Dot(queryVec, emb.Embedding)
		if score >= s.cfg.SimilarityFloor {
			scored = append(scored, Scored{Value: v, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > s.cfg.MaxPerCollection {
		scored = scored[:s.cfg.MaxPerCollection]
	}

	if len(scored) > 0 && s.logger.Core().Enabled(zap.DebugLevel) {
		fields := make([]zap.Field, 0, len(scored)+1)
		fields = append(fields, zap.String("collection", collection))
		for _, sc := range scored {
			fields = append(fields, zap.Float64(sc.Value, sc.Score))
		}
		s.logger.Debug("Suggestions ranked", fields...)
	}
	return scored
}
