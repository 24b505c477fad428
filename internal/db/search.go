package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// VectorField is the indexed VECTOR attribute; empty means "vector".
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
	// EFRuntime overrides the HNSW search-time candidate list size. Zero keeps the index default.
	EFRuntime int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity (1 - cosine distance), not clamped.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
