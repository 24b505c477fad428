package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/db"
	"github.com/kailas-cloud/lawrag/internal/domain"
)

type mockEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	if m.batchResult.Embeddings != nil {
		return m.batchResult, nil
	}
	// Авто-генерация
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore is an in-memory KV store recording pipelined calls.
type mockKVStore struct {
	values    map[string][]byte
	getErr    error
	setErr    error
	mgetCalls int
	setCalls  int
	sets      []db.KVItem
	ttl       time.Duration
}

func (m *mockKVStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	m.mgetCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.values[k]
	}
	return out, nil
}

func (m *mockKVStore) SetMulti(_ context.Context, items []db.KVItem, ttl time.Duration) error {
	m.setCalls++
	m.ttl = ttl
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	for _, it := range items {
		m.values[it.Key] = it.Value
		m.sets = append(m.sets, it)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Config{Model: "test-model", TTL: time.Hour}, nil, zap.NewNop())
	return ce, ms
}
