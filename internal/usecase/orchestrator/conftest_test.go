package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/cost"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
	"github.com/kailas-cloud/lawrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

// trace records collaborator calls in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(call string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
}

func (t *trace) count(call string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (t *trace) first(call string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type mockExtractor struct {
	tr         *trace
	paragraphs []string
	err        error
}

func (m *mockExtractor) Extract(_ context.Context, _ string, _ request.Kind) ([]string, error) {
	m.tr.add("extract")
	return m.paragraphs, m.err
}

type mockExpander struct {
	tr  *trace
	err error
}

// Expand returns "<query>#1".."<query>#n".
func (m *mockExpander) Expand(_ context.Context, query string, n int, _ language.Language) ([]string, error) {
	m.tr.add("expand")
	if m.err != nil {
		return nil, m.err
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s#%d", query, i+1)
	}
	return out, nil
}

// mockEmbedder maps every distinct text to a one-dimensional vector holding its id.
type mockEmbedder struct {
	tr    *trace
	mu    sync.Mutex
	ids   map[string]int
	texts []string
	err   error
}

func newMockEmbedder(tr *trace) *mockEmbedder {
	return &mockEmbedder{tr: tr, ids: make(map[string]int)}
}

func (m *mockEmbedder) vector(text string) []float32 {
	id, ok := m.ids[text]
	if !ok {
		id = len(m.texts)
		m.ids[text] = id
		m.texts = append(m.texts, text)
	}
	return []float32{float32(id)}
}

func (m *mockEmbedder) textOf(vec []float32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts[int(vec[0])]
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.tr.add("embed")
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.EmbeddingResult{Embedding: m.vector(text)}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.tr.add("embed")
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(len(texts))
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// mockStore answers each sub-query with results[text], or a single article titled after
// the text when no entry exists. failOn fails only the named sub-queries; lag sleeps
// without watching the context.
type mockStore struct {
	tr       *trace
	emb      *mockEmbedder
	results  map[string][]hit.Hit
	empty    bool
	err      error
	failOn   map[string]error
	delay    func(text string) time.Duration
	lag      time.Duration
	block    bool
	mu       sync.Mutex
	langs    []language.Language
	inflight int
	peak     int
}

func (m *mockStore) Search(ctx context.Context, lang language.Language, vector []float32, topK int) ([]hit.Hit, error) {
	m.tr.add("search")
	text := m.emb.textOf(vector)

	m.mu.Lock()
	m.langs = append(m.langs, lang)
	m.inflight++
	m.peak = max(m.peak, m.inflight)
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if m.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, ctx.Err())
	}
	if m.delay != nil {
		select {
		case <-time.After(m.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.lag > 0 {
		time.Sleep(m.lag)
	}
	if err, ok := m.failOn[text]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return nil, nil
	}
	if hits, ok := m.results[text]; ok {
		if len(hits) > topK {
			hits = hits[:topK]
		}
		return hits, nil
	}
	return []hit.Hit{mkHit("Кодекс", "Статья "+text, 0.5)}, nil
}

type mockAnswerer struct {
	tr        *trace
	err       error
	questions []string
	contexts  []result.Context
}

func (m *mockAnswerer) Generate(ctx context.Context, question string, c result.Context, _ language.Language) (string, error) {
	m.tr.add("generate")
	m.questions = append(m.questions, question)
	m.contexts = append(m.contexts, c)
	if m.err != nil {
		return "", m.err
	}
	domain.UsageFromContext(ctx).AddGenerationTokens(40)
	return fmt.Sprintf("answer from %d articles", c.Len()), nil
}

type mockAccounting struct {
	tr       *trace
	mu       sync.Mutex
	balance  int
	deducted int
	refunded int
}

func (m *mockAccounting) HasBalance(_ context.Context, _ string, c int) (bool, error) {
	m.tr.add("has_balance")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance >= c, nil
}

func (m *mockAccounting) Deduct(_ context.Context, _ string, c int) error {
	m.tr.add("deduct")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance < c {
		return domain.ErrInsufficientBalance
	}
	m.balance -= c
	m.deducted += c
	return nil
}

func (m *mockAccounting) Refund(_ context.Context, _ string, c int) error {
	m.tr.add("refund")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance += c
	m.refunded += c
	return nil
}

func mkHit(source, title string, score float64) hit.Hit {
	return hit.Hit{
		Article: article.Reconstruct(source, "", "", title, "текст "+title, language.Russian, nil),
		Score:   score,
	}
}

// fixture wires every collaborator with mocks sharing one trace.
type fixture struct {
	tr        *trace
	extractor *mockExtractor
	expander  *mockExpander
	embedder  *mockEmbedder
	store     *mockStore
	answerer  *mockAnswerer
	accounts  *mockAccounting
	cfg       Config
}

func newFixture() *fixture {
	tr := &trace{}
	emb := newMockEmbedder(tr)
	return &fixture{
		tr:        tr,
		extractor: &mockExtractor{tr: tr, paragraphs: []string{"п1", "п2"}},
		expander:  &mockExpander{tr: tr},
		embedder:  emb,
		store:     &mockStore{tr: tr, emb: emb, results: map[string][]hit.Hit{}},
		answerer:  &mockAnswerer{tr: tr},
		accounts:  &mockAccounting{tr: tr, balance: 100},
		cfg:       Config{RequestTimeout: 5 * time.Second},
	}
}

func (f *fixture) service() *Service {
	return New(Deps{
		Extractor:  f.extractor,
		Expander:   f.expander,
		Embedder:   f.embedder,
		Store:      f.store,
		Answerer:   f.answerer,
		Accounting: f.accounts,
		Costs:      cost.Default(),
	}, f.cfg, zap.NewNop())
}

func textRequest(t *testing.T, m mode.Mode, query string) request.Request {
	t.Helper()
	req, err := request.New("u1", request.Text, query, "", m, language.Russian)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func fileRequest(t *testing.T, kind request.Kind, m mode.Mode, query string) request.Request {
	t.Helper()
	req, err := request.New("u1", kind, query, "https://files.example/doc", m, language.Kyrgyz)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func requireStage(t *testing.T, err error, state State, sentinel error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v in chain, got %v", sentinel, err)
	}
	var se *domain.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *domain.StageError, got %T", err)
	}
	if se.State != state.String() {
		t.Errorf("expected failure in %q, got %q", state, se.State)
	}
}
