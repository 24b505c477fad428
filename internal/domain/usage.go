package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects model token consumption for a single request.
// The orchestrator puts it into the context, the instrumented collaborators write to it.
// Writers may run concurrently.
type Usage struct {
	embeddingTokens  atomic.Int64
	generationTokens atomic.Int64
}

// NewContextWithUsage returns a context with an attached usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records consumed embedding tokens.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
	}
}

// AddGenerationTokens records consumed generation tokens.
func (u *Usage) AddGenerationTokens(n int) {
	if u != nil {
		u.generationTokens.Add(int64(n))
	}
}

// EmbeddingTokens returns the embedding tokens recorded so far.
func (u *Usage) EmbeddingTokens() int {
	if u == nil {
		return 0
	}
	return int(u.embeddingTokens.Load())
}

// GenerationTokens returns the generation tokens recorded so far.
func (u *Usage) GenerationTokens() int {
	if u == nil {
		return 0
	}
	return int(u.generationTokens.Load())
}
