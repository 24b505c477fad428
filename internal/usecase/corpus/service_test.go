package corpus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

type mockPartition struct {
	calls   []string
	batches [][]domart.Article
	err     error
}

func (m *mockPartition) EnsurePartition(_ context.Context, lang language.Language) error {
	m.calls = append(m.calls, "ensure:"+lang.String())
	return nil
}

func (m *mockPartition) DropPartition(_ context.Context, lang language.Language) error {
	m.calls = append(m.calls, "drop:"+lang.String())
	return nil
}

func (m *mockPartition) Upsert(_ context.Context, _ language.Language, articles []domart.Article) error {
	m.calls = append(m.calls, "upsert")
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]domart.Article(nil), articles...))
	return nil
}

func (m *mockPartition) all() []domart.Article {
	var out []domart.Article
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type mockEmbedder struct {
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{9, 9}}, nil
}

const dump = `{"id": 1, "source_doc": "ТК", "section": "I", "chapter": "1", "article_title": "Статья 1", "article_text": "текст 1", "vector": [0.1, 0.2]},
{"id": "2", "source_doc": "ТК", "article_title": "Статья 2", "article_text": "текст 2", "vector": "[0.3, 0.4]"},

{"id": 3, "source_doc": "ТК", "article_title": "Статья 3", "article_text": "текст 3"}
{"id": 4, "source_doc": "ТК", "article_title": "", "article_text": "без названия", "vector": [1, 1]}
`

func TestLoad_ParsesDump(t *testing.T) {
	store := &mockPartition{}
	emb := &mockEmbedder{}
	svc := New(store, emb, Config{BatchSize: 2, Dimensions: 2}, zap.NewNop())

	st, err := svc.Load(context.Background(), strings.NewReader(dump), language.Russian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st != (Stats{Read: 4, Embedded: 1, Loaded: 3, Skipped: 1}) {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(store.batches) != 2 {
		t.Errorf("expected 2 batches, got %d", len(store.batches))
	}
	got := store.all()
	if v := got[1].Vector(); len(v) != 2 || v[0] != 0.3 {
		t.Errorf("string vector not decoded: %v", v)
	}
	if v := got[2].Vector(); v[0] != 9 {
		t.Errorf("missing vector not embedded: %v", v)
	}
	if len(emb.texts) != 1 || emb.texts[0] != "текст 3" {
		t.Errorf("unexpected embedded texts %q", emb.texts)
	}
	if got[0].Section() != "I" || got[0].Language() != language.Russian {
		t.Errorf("unexpected article %+v", got[0])
	}
	if store.calls[0] != "ensure:ru" {
		t.Errorf("partition must be ensured first, got %v", store.calls)
	}
}

func TestLoad_DropsFirst(t *testing.T) {
	store := &mockPartition{}
	svc := New(store, nil, Config{Drop: true}, zap.NewNop())

	if _, err := svc.Load(context.Background(), strings.NewReader(""), language.Kyrgyz); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(store.calls, ",") != "drop:kg,ensure:kg" {
		t.Errorf("unexpected calls %v", store.calls)
	}
}

func TestLoad_MalformedLine(t *testing.T) {
	svc := New(&mockPartition{}, nil, Config{}, zap.NewNop())

	_, err := svc.Load(context.Background(), strings.NewReader("{\"id\":1}\n{broken"), language.Russian)
	if !errors.Is(err, domain.ErrInvalidRequest) || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected invalid request at line 2, got %v", err)
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	svc := New(&mockPartition{}, nil, Config{Dimensions: 3}, zap.NewNop())

	line := `{"source_doc":"ТК","article_title":"Статья 1","article_text":"т","vector":[1,2]}`
	if _, err := svc.Load(context.Background(), strings.NewReader(line), language.Russian); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLoad_NoEmbedder(t *testing.T) {
	svc := New(&mockPartition{}, nil, Config{}, zap.NewNop())

	line := `{"source_doc":"ТК","article_title":"Статья 1","article_text":"т"}`
	if _, err := svc.Load(context.Background(), strings.NewReader(line), language.Russian); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestLoad_StoreFailure(t *testing.T) {
	store := &mockPartition{err: domain.ErrStore}
	svc := New(store, nil, Config{}, zap.NewNop())

	line := `{"source_doc":"ТК","article_title":"Статья 1","article_text":"т","vector":[1]}`
	st, err := svc.Load(context.Background(), strings.NewReader(line), language.Russian)
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
	if st.Loaded != 0 {
		t.Errorf("nothing must count as loaded, got %d", st.Loaded)
	}
}

func TestLoad_UnsupportedLanguage(t *testing.T) {
	store := &mockPartition{}
	svc := New(store, nil, Config{}, zap.NewNop())

	if _, err := svc.Load(context.Background(), strings.NewReader(""), "en"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if len(store.calls) != 0 {
		t.Errorf("store must not be touched, got %v", store.calls)
	}
}

func TestParseVector(t *testing.T) {
	cases := []struct {
		in   string
		want int
		fail bool
	}{
		{in: ``, want: 0},
		{in: `null`, want: 0},
		{in: `[1, 2, 3]`, want: 3},
		{in: `"[1, 2]"`, want: 2},
		{in: `""`, want: 0},
		{in: `"not a vector"`, fail: true},
		{in: `{"a":1}`, fail: true},
	}
	for _, tc := range cases {
		vec, err := parseVector([]byte(tc.in))
		if (err != nil) != tc.fail {
			t.Errorf("parseVector(%s) error = %v, fail = %v", tc.in, err, tc.fail)
			continue
		}
		if len(vec) != tc.want {
			t.Errorf("parseVector(%s) = %v, want %d values", tc.in, vec, tc.want)
		}
	}
}

func TestIngest_EmbedsParsedArticles(t *testing.T) {
	store := &mockPartition{}
	emb := &mockEmbedder{}
	svc := New(store, emb, Config{BatchSize: 2}, zap.NewNop())

	p, _ := NewParser(language.Russian, zap.NewNop())
	articles := p.Parse("ТК.docx", []string{
		"Статья 1", "один",
		"Статья 2", "два",
		"Статья 3", "три",
	})
	kg, _ := domart.New("К", "", "", "1-берене", "т", language.Kyrgyz, nil)
	articles = append(articles, kg)

	st, err := svc.Ingest(context.Background(), articles, language.Russian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != (Stats{Read: 4, Embedded: 3, Loaded: 3, Skipped: 1}) {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(store.batches) != 2 {
		t.Errorf("expected 2 batches, got %d", len(store.batches))
	}
	for _, a := range store.all() {
		if len(a.Vector()) != 2 {
			t.Errorf("article %q stored without vector", a.Title())
		}
	}
	if emb.texts[0] != "Статья 1\nодин" {
		t.Errorf("article text must be embedded, got %q", emb.texts[0])
	}
}
