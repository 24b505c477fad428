// Package assemble merges per-sub-query hits into one bounded answer context.
package assemble

import (
	"sort"

	"github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

// Assemble flattens batches in sub-query order, keeps the in-batch rank order and drops
// repeated articles. The first occurrence wins even when a later duplicate scores higher.
// There is no global re-rank. maxArticles <= 0 disables truncation.
func Assemble(batches []hit.Batch, maxArticles int) result.Context {
	ordered := make([]hit.Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	capacity := hit.Size(ordered)
	if maxArticles > 0 && maxArticles < capacity {
		capacity = maxArticles
	}

	seen := make(map[article.Identity]struct{}, capacity)
	hits := make([]hit.Hit, 0, capacity)

	for _, b := range ordered {
		for _, h := range b.Hits {
			id := h.Article.Identity()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			hits = append(hits, h)
			if maxArticles > 0 && len(hits) == maxArticles {
				return result.New(hits)
			}
		}
	}

	return result.New(hits)
}
