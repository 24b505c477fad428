package expand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/prompt"
	"github.com/kailas-cloud/lawrag/internal/metrics"
)

// Defaults.
const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Hour
	DefaultRetries   = 1
)

// Config tunes the expansion cache and retry policy.
type Config struct {
	// CacheSize bounds the number of cached expansions. Negative disables the cache.
	CacheSize int
	CacheTTL  time.Duration
	// Retries is the number of extra attempts after a failed model call.
	// Zero means DefaultRetries, negative disables retries.
	Retries int
}

type cacheKey struct {
	query string
	n     int
	lang  language.Language
}

// Service rewrites one question into a fixed number of search sub-queries.
// Safe for concurrent use; the cache is the only shared mutable state.
type Service struct {
	gen     Generator
	cache   *expirable.LRU[cacheKey, []string]
	retries int
	logger  *zap.Logger
}

// New creates an expander.
func New(gen Generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = DefaultRetries
	case cfg.Retries < 0:
		cfg.Retries = 0
	}

	s := &Service{gen: gen, retries: cfg.Retries, logger: logger}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[cacheKey, []string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// Expand returns exactly n sub-queries for query in the given language.
// Blank and repeated model questions are dropped, the list is padded with the original
// query and cut to n. A blank query yields n copies of itself without a model call.
func (s *Service) Expand(ctx context.Context, query string, n int, lang language.Language) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: expansion count must be >= 1, got %d", domain.ErrInvalidRequest, n)
	}
	if strings.TrimSpace(query) == "" {
		return repeat(query, n), nil
	}

	key := cacheKey{query: query, n: n, lang: lang}
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			metrics.ExpansionCacheTotal.WithLabelValues("hit").Inc()
			return slices.Clone(cached), nil
		}
		metrics.ExpansionCacheTotal.WithLabelValues("miss").Inc()
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		questions, err := s.ask(ctx, query, n, lang)
		if err == nil {
			out := normalize(questions, query, n)
			if s.cache != nil {
				s.cache.Add(key, out)
			}
			return slices.Clone(out), nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("expand query: %w", ctxErr)
		}
		s.logger.Warn("Query expansion attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("language", lang.String()),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: expand query: %w", domain.ErrGeneration, lastErr)
}

// Len returns the number of cached expansions.
func (s *Service) Len() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

func (s *Service) ask(ctx context.Context, query string, n int, lang language.Language) ([]string, error) {
	res, err := s.gen.Complete(ctx, domain.Completion{
		Operation:    "expand",
		Instructions: prompt.LegalAssistant,
		Input:        prompt.Expansion(query, n, lang),
		JSONOutput:   true,
	})
	if err != nil {
		return nil, err
	}
	return parseQuestions(res.Text)
}

type questionsResponse struct {
	Questions []struct {
		Question string `json:"question"`
	} `json:"questions"`
}

func parseQuestions(raw string) ([]string, error) {
	var resp questionsResponse
	if err := json.Unmarshal([]byte(prompt.TrimJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	out := make([]string, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		out = append(out, q.Question)
	}
	if len(normalize(out, "", 0)) == 0 {
		return nil, errors.New("model returned no questions")
	}
	return out, nil
}

// normalize trims, drops blanks and duplicates, then pads with query up to n and cuts to n.
// n <= 0 skips padding and truncation.
func normalize(questions []string, query string, n int) []string {
	seen := make(map[string]struct{}, len(questions))
	out := make([]string, 0, max(n, len(questions)))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	if n <= 0 {
		return out
	}
	for len(out) < n {
		out = append(out, query)
	}
	return out[:n]
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
