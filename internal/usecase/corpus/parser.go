package corpus

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// Patterns recognize the structural headings of a legal code in one language.
type Patterns struct {
	Article *regexp.Regexp
	Section *regexp.Regexp
	Chapter *regexp.Regexp
	// NoSection and NoChapter label articles that precede the first heading.
	NoSection string
	NoChapter string
	// Continuations appends orphan lines before the first article to the last heading.
	// Kyrgyz codes wrap long headings over several paragraphs.
	Continuations bool
}

var (
	russianPatterns = Patterns{
		Article:   regexp.MustCompile(`(?i)^\s*Статья\s+[\d.\-\s]+`),
		Section:   regexp.MustCompile(`(?i)^\s*Раздел\s+`),
		Chapter:   regexp.MustCompile(`(?i)^\s*Глава\s+`),
		NoSection: "НЕТ РАЗДЕЛА",
		NoChapter: "НЕТ ГЛАВЫ",
	}
	kyrgyzPatterns = Patterns{
		Article:       regexp.MustCompile(`(?i)^\s*(?:\d+\s*-\s*(?:берене|статья)|(?:берене|статья)\s+[\d.\-\s]+)`),
		Section:       regexp.MustCompile(`(?i)БӨЛҮМ`),
		Chapter:       regexp.MustCompile(`(?i)ГЛАВА`),
		NoSection:     "БӨЛҮМ ЖОК",
		NoChapter:     "ГЛАВА ЖОК",
		Continuations: true,
	}
)

// PatternsFor returns the heading patterns of lang.
func PatternsFor(lang language.Language) (Patterns, error) {
	switch lang {
	case language.Russian:
		return russianPatterns, nil
	case language.Kyrgyz:
		return kyrgyzPatterns, nil
	}
	return Patterns{}, fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidRequest, lang)
}

// Parser splits the paragraphs of a legal code into articles.
type Parser struct {
	lang     language.Language
	patterns Patterns
	logger   *zap.Logger
}

// NewParser creates a parser with the built-in patterns of lang.
func NewParser(lang language.Language, logger *zap.Logger) (*Parser, error) {
	p, err := PatternsFor(lang)
	if err != nil {
		return nil, err
	}
	return &Parser{lang: lang, patterns: p, logger: logger}, nil
}

// Parse turns the paragraphs of one document into articles without vectors.
// An article runs from its heading line to the next one and carries the section and
// chapter in force at its heading. Text before the first article heading is dropped.
// Whitespace inside a paragraph collapses to single spaces.
func (p *Parser) Parse(source string, paragraphs []string) []domart.Article {
	section, chapter := p.patterns.NoSection, p.patterns.NoChapter

	var (
		out     []domart.Article
		cur     struct{ section, chapter, title string }
		body    strings.Builder
		started bool
	)
	emit := func() {
		if !started {
			return
		}
		a, err := domart.New(source, cur.section, cur.chapter, cur.title, strings.TrimSpace(body.String()), p.lang, nil)
		if err != nil {
			p.logger.Warn("Skipping unparsable article",
				zap.String("source", source),
				zap.String("title", cur.title),
				zap.Error(err),
			)
			return
		}
		out = append(out, a)
	}

	for _, raw := range paragraphs {
		text := strings.Join(strings.Fields(raw), " ")
		if text == "" {
			continue
		}

		switch {
		case p.patterns.Article.MatchString(text):
			emit()
			started = true
			cur.section, cur.chapter, cur.title = section, chapter, text
			body.Reset()
			body.WriteString(text)
			body.WriteByte('\n')
		case p.patterns.Section.MatchString(text):
			section = text
		case p.patterns.Chapter.MatchString(text):
			chapter = text
		case started:
			body.WriteString(text)
			body.WriteByte('\n')
		case p.patterns.Continuations && chapter != p.patterns.NoChapter:
			chapter += " " + text
		case p.patterns.Continuations && section != p.patterns.NoSection:
			section += " " + text
		}
	}
	emit()
	return out
}
