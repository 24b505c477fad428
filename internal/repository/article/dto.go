package article

import (
	"encoding/binary"
	"math"

	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

func articleToHash(a *domart.Article) map[string]string {
	return map[string]string{
		fieldSource:   a.Source(),
		fieldSection:  a.Section(),
		fieldChapter:  a.Chapter(),
		fieldTitle:    a.Title(),
		fieldText:     a.Text(),
		fieldLanguage: string(a.Language()),
		fieldVector:   vectorToBytes(a.Vector()),
	}
}

// hashToArticle hydrates an article from search fields. Missing language falls back to the partition.
func hashToArticle(fields map[string]string, partition language.Language) domart.Article {
	lang := language.Language(fields[fieldLanguage])
	if !lang.IsValid() {
		lang = partition
	}
	return domart.Reconstruct(
		fields[fieldSource], fields[fieldSection], fields[fieldChapter],
		fields[fieldTitle], fields[fieldText], lang, nil,
	)
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
