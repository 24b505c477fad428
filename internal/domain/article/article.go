package article

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// keyNamespace seeds deterministic article keys.
var keyNamespace = uuid.MustParse("6f0c2a4e-2d3b-5c8a-9e1f-4b7d8a0c1e52")

// Identity is the deduplication key of an article. Comparable, usable as a map key.
type Identity struct {
	Source   string
	Title    string
	Language language.Language
}

// Key returns a stable storage key derived from the identity.
func (id Identity) Key() string {
	return uuid.NewSHA1(keyNamespace, []byte(string(id.Language)+"\x00"+id.Source+"\x00"+id.Title)).String()
}

// Article is one legal article of the corpus (immutable value object).
type Article struct {
	source  string
	section string
	chapter string
	title   string
	text    string
	lang    language.Language
	vector  []float32
}

// New validates and creates an Article. Source, title and text are required.
func New(source, section, chapter, title, text string, lang language.Language, vector []float32) (Article, error) {
	if strings.TrimSpace(source) == "" {
		return Article{}, fmt.Errorf("source document is required")
	}
	if strings.TrimSpace(title) == "" {
		return Article{}, fmt.Errorf("article title is required")
	}
	if strings.TrimSpace(text) == "" {
		return Article{}, fmt.Errorf("article text is required")
	}
	if !lang.IsValid() {
		return Article{}, fmt.Errorf("unsupported language %q", lang)
	}
	return Reconstruct(source, section, chapter, title, text, lang, vector), nil
}

// Reconstruct creates an Article without validation (storage hydration).
func Reconstruct(source, section, chapter, title, text string, lang language.Language, vector []float32) Article {
	var v []float32
	if len(vector) > 0 {
		v = make([]float32, len(vector))
		copy(v, vector)
	}
	return Article{
		source: source, section: section, chapter: chapter,
		title: title, text: text, lang: lang, vector: v,
	}
}

// Identity returns the deduplication key.
func (a *Article) Identity() Identity {
	return Identity{Source: a.source, Title: a.title, Language: a.lang}
}

// Key returns the storage key.
func (a *Article) Key() string { return a.Identity().Key() }

// Source returns the source document name.
func (a *Article) Source() string { return a.source }

// Section returns the law section heading.
func (a *Article) Section() string { return a.section }

// Chapter returns the law chapter heading.
func (a *Article) Chapter() string { return a.chapter }

// Title returns the article title.
func (a *Article) Title() string { return a.title }

// Text returns the article body.
func (a *Article) Text() string { return a.text }

// Language returns the corpus partition of the article.
func (a *Article) Language() language.Language { return a.lang }

// Vector returns the embedding vector, nil when not loaded.
func (a *Article) Vector() []float32 { return a.vector }

// WithVector returns a copy of the article carrying vec.
func (a Article) WithVector(vec []float32) Article {
	return Reconstruct(a.source, a.section, a.chapter, a.title, a.text, a.lang, vec)
}
