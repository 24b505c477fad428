package result

import (
	"github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
)

// Context is the assembled, ordered set of unique articles handed to the answer generator.
// Ephemeral, never persisted.
type Context struct {
	hits []hit.Hit
}

// New creates a context from already deduplicated hits.
func New(hits []hit.Hit) Context {
	return Context{hits: hits}
}

// Hits returns the entries in context order with their originating scores.
func (c Context) Hits() []hit.Hit { return c.hits }

// Articles returns the articles in context order.
func (c Context) Articles() []article.Article {
	out := make([]article.Article, len(c.hits))
	for i := range c.hits {
		out[i] = c.hits[i].Article
	}
	return out
}

// Len returns the number of articles.
func (c Context) Len() int { return len(c.hits) }

// IsEmpty reports whether nothing was found.
func (c Context) IsEmpty() bool { return len(c.hits) == 0 }
