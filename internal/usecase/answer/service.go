package answer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/prompt"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

// Article references: "Статья 81", "статьи 81-1", "Article 81", "81-берене".
var (
	citationBefore = regexp.MustCompile(`(?i)(?:стат(?:ья|ьи|ье|ью|ей)|article)\s+(\d+(?:[-.]\d+)*)`)
	citationAfter  = regexp.MustCompile(`(\d+(?:[-.]\d+)*)\s*-\s*берене`)
)

// Config toggles answer post-checks.
type Config struct {
	ValidateCitations bool
}

// Service turns an assembled context into a grounded answer. One model call per request.
type Service struct {
	gen    Generator
	cfg    Config
	logger *zap.Logger
}

// New creates an answer generator.
func New(gen Generator, cfg Config, logger *zap.Logger) *Service {
	return &Service{gen: gen, cfg: cfg, logger: logger}
}

// Generate answers question using only the articles of c, in context order.
// Model errors are not retried.
func (s *Service) Generate(
	ctx context.Context, question string, c result.Context, lang language.Language,
) (string, error) {
	articles := c.Articles()
	rendered := make([]prompt.ContextArticle, len(articles))
	for i := range articles {
		a := &articles[i]
		rendered[i] = prompt.ContextArticle{
			Source:  a.Source(),
			Section: a.Section(),
			Chapter: a.Chapter(),
			Title:   a.Title(),
			Text:    a.Text(),
		}
	}

	res, err := s.gen.Complete(ctx, domain.Completion{
		Operation:    "answer",
		Instructions: prompt.GroundedAnswer,
		Input:        prompt.Answer(question, rendered, lang),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("generate answer: %w", err)
		}
		if errors.Is(err, domain.ErrGeneration) {
			return "", fmt.Errorf("generate answer: %w", err)
		}
		return "", fmt.Errorf("%w: generate answer: %w", domain.ErrGeneration, err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrGeneration)
	}

	if s.cfg.ValidateCitations {
		if missing := ungrounded(text, rendered); len(missing) > 0 {
			s.logger.Warn("Answer cites articles outside the context",
				zap.Strings("citations", missing),
				zap.Int("context_articles", len(rendered)),
			)
			return "", fmt.Errorf("%w: %s", domain.ErrUngroundedCitation, strings.Join(missing, ", "))
		}
	}

	return text, nil
}

// ungrounded returns article numbers cited in answer that no context title carries.
func ungrounded(answer string, articles []prompt.ContextArticle) []string {
	known := make(map[string]struct{})
	for _, a := range articles {
		for _, n := range citations(a.Title) {
			known[n] = struct{}{}
		}
	}

	var missing []string
	reported := make(map[string]struct{})
	for _, n := range citations(answer) {
		if _, ok := known[n]; ok {
			continue
		}
		if _, ok := reported[n]; ok {
			continue
		}
		reported[n] = struct{}{}
		missing = append(missing, n)
	}
	return missing
}

func citations(s string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{citationBefore, citationAfter} {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			out = append(out, m[1])
		}
	}
	return out
}
