package article

import (
	"fmt"

	"github.com/kailas-cloud/lawrag/internal/db"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// Hash field names of a stored article.
const (
	fieldSource   = "source_doc"
	fieldSection  = "section"
	fieldChapter  = "chapter"
	fieldTitle    = "article_title"
	fieldText     = "article_text"
	fieldLanguage = "language"
	fieldVector   = "vector"
)

// returnFields are fetched on search; the vector stays in the store.
var returnFields = []string{fieldSource, fieldSection, fieldChapter, fieldTitle, fieldText, fieldLanguage}

func indexName(prefix string, lang language.Language) string {
	return fmt.Sprintf("%s:%s:idx", prefix, lang)
}

func keyPrefix(prefix string, lang language.Language) string {
	return fmt.Sprintf("%s:%s:article:", prefix, lang)
}

// buildIndex creates the per-language partition index.
func buildIndex(prefix string, lang language.Language, cfg Config) (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName(prefix, lang)).
		Prefix(keyPrefix(prefix, lang)).
		Tag(fieldSource, "|").
		Texts(fieldSection, fieldChapter, fieldTitle, fieldText).
		Tag(fieldLanguage, "").
		Vector(fieldVector, db.VectorSpec{
			Algorithm:   cfg.Algorithm,
			Dim:         cfg.Dimensions,
			Distance:    cfg.Distance,
			M:           cfg.HNSW.M,
			EFConstruct: cfg.HNSW.EFConstruct,
		})

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", lang, err)
	}
	return def, nil
}
