package hit

import "github.com/kailas-cloud/lawrag/internal/domain/article"

// Hit is one similarity match. Score is cosine similarity in [-1, 1], higher is closer.
type Hit struct {
	Article       article.Article
	Score         float64
	SubQuery      string
	SubQueryIndex int
}

// Batch is the ranked result of one sub-query, in store order.
type Batch struct {
	Index    int
	SubQuery string
	Hits     []Hit
}

// NewBatch stamps every hit with the owning sub-query.
func NewBatch(index int, subQuery string, hits []Hit) Batch {
	stamped := make([]Hit, len(hits))
	for i, h := range hits {
		h.SubQuery = subQuery
		h.SubQueryIndex = index
		stamped[i] = h
	}
	return Batch{Index: index, SubQuery: subQuery, Hits: stamped}
}

// Size returns the total number of hits across batches.
func Size(batches []Batch) int {
	n := 0
	for i := range batches {
		n += len(batches[i].Hits)
	}
	return n
}
