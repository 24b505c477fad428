package domain

// VectorConfig holds corpus vectorization settings shared by the loader and the query path.
type VectorConfig struct {
	Model            string
	Dimensions       int
	DistanceMetric   string
	Algorithm        string
	QueryInstruction string
}

// DefaultVectorConfig returns the configuration the legal corpus was vectorized with.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "embeddinggemma-300m",
		Dimensions:     768,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
