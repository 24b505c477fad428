package orchestrator

import (
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

// Response is the outcome of one retrieval request.
type Response struct {
	Mode     mode.Mode
	Kind     request.Kind
	Language language.Language
	// Answer is empty in search mode and when nothing was found.
	Answer     string
	Context    result.Context
	SubQueries []string
	// Cost is the charge kept after refunds.
	Cost     int
	Found    bool
	Degraded bool
	Warnings []string
	Stats    Stats
}

// Stats counts collaborator calls made for a request.
type Stats struct {
	Extractions      int
	Expansions       int
	EmbeddedTexts    int
	EmbedCalls       int
	Searches         int
	RawHits          int
	Generations      int
	EmbeddingTokens  int64
	GenerationTokens int64
}
