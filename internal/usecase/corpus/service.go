// Package corpus loads legal articles into the similarity store, either from JSONL dumps
// or parsed from the paragraphs of a code.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/domain"
	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// Defaults.
const (
	DefaultBatchSize = 100
	maxLineBytes     = 16 << 20
)

// Config controls one load run.
type Config struct {
	BatchSize int
	// Drop removes the partition with its articles before loading.
	Drop bool
	// Dimensions is checked against every stored vector when positive.
	Dimensions int
}

// Stats summarizes a load run.
type Stats struct {
	Read     int
	Embedded int
	Loaded   int
	Skipped  int
}

// Service loads one language partition at a time.
type Service struct {
	store  Partition
	embed  domain.Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a corpus loader. embed may be nil when every row carries a vector.
func New(store Partition, embed domain.Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{store: store, embed: embed, cfg: cfg, logger: logger}
}

// row is one line of the dump.
type row struct {
	ID           json.RawMessage `json:"id"`
	SourceDoc    string          `json:"source_doc"`
	Section      string          `json:"section"`
	Chapter      string          `json:"chapter"`
	ArticleTitle string          `json:"article_title"`
	ArticleText  string          `json:"article_text"`
	Vector       json.RawMessage `json:"vector"`
}

// Load reads JSONL from r into the lang partition. Blank lines and trailing commas are
// tolerated; rows failing article validation are skipped with a warning. Malformed JSON
// aborts the run with domain.ErrInvalidRequest.
func (s *Service) Load(ctx context.Context, r io.Reader, lang language.Language) (Stats, error) {
	var st Stats
	if err := s.prepare(ctx, lang); err != nil {
		return st, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	batch := make([]domart.Article, 0, s.cfg.BatchSize)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSuffix(bytes.TrimSpace(sc.Bytes()), []byte(","))
		if len(raw) == 0 {
			continue
		}
		st.Read++

		a, err := s.parse(raw, lang)
		if err != nil {
			return st, fmt.Errorf("line %d: %w", line, err)
		}
		if a == nil {
			st.Skipped++
			continue
		}
		batch = append(batch, *a)

		if len(batch) >= s.cfg.BatchSize {
			if err := s.flush(ctx, lang, batch, &st); err != nil {
				return st, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read line %d: %w", line+1, err)
	}
	if err := s.flush(ctx, lang, batch, &st); err != nil {
		return st, err
	}

	s.logLoaded(lang, st)
	return st, nil
}

// Ingest stores already parsed articles in the lang partition, embedding them in batches.
// Articles of another language are skipped.
func (s *Service) Ingest(ctx context.Context, articles []domart.Article, lang language.Language) (Stats, error) {
	var st Stats
	if err := s.prepare(ctx, lang); err != nil {
		return st, err
	}

	batch := make([]domart.Article, 0, s.cfg.BatchSize)
	for i := range articles {
		st.Read++
		if articles[i].Language() != lang {
			st.Skipped++
			continue
		}
		batch = append(batch, articles[i])
		if len(batch) >= s.cfg.BatchSize {
			if err := s.flush(ctx, lang, batch, &st); err != nil {
				return st, err
			}
			batch = batch[:0]
		}
	}
	if err := s.flush(ctx, lang, batch, &st); err != nil {
		return st, err
	}

	s.logLoaded(lang, st)
	return st, nil
}

// prepare validates lang, drops the partition when configured and makes sure it exists.
func (s *Service) prepare(ctx context.Context, lang language.Language) error {
	if !lang.IsValid() {
		return fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidRequest, lang)
	}

	if s.cfg.Drop {
		if err := s.store.DropPartition(ctx, lang); err != nil {
			return fmt.Errorf("drop partition: %w", err)
		}
		s.logger.Info("Partition dropped", zap.String("language", lang.String()))
	}
	if err := s.store.EnsurePartition(ctx, lang); err != nil {
		return fmt.Errorf("ensure partition: %w", err)
	}
	return nil
}

func (s *Service) logLoaded(lang language.Language, st Stats) {
	s.logger.Info("Corpus loaded",
		zap.String("language", lang.String()),
		zap.Int("read", st.Read),
		zap.Int("embedded", st.Embedded),
		zap.Int("loaded", st.Loaded),
		zap.Int("skipped", st.Skipped),
	)
}

// parse returns nil for rows that are well-formed JSON but not a valid article.
func (s *Service) parse(raw []byte, lang language.Language) (*domart.Article, error) {
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	vec, err := parseVector(r.Vector)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %w", domain.ErrInvalidRequest, err)
	}
	if s.cfg.Dimensions > 0 && len(vec) > 0 && len(vec) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: vector has %d dimensions, expected %d",
			domain.ErrInvalidRequest, len(vec), s.cfg.Dimensions)
	}

	a, err := domart.New(r.SourceDoc, r.Section, r.Chapter, r.ArticleTitle, r.ArticleText, lang, vec)
	if err != nil {
		s.logger.Warn("Skipping invalid article", zap.ByteString("id", r.ID), zap.Error(err))
		return nil, nil
	}
	return &a, nil
}

// parseVector accepts a JSON array or a string holding one. Null or missing means no vector.
func parseVector(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// flush embeds articles without a vector and upserts the batch.
func (s *Service) flush(ctx context.Context, lang language.Language, batch []domart.Article, st *Stats) error {
	if len(batch) == 0 {
		return nil
	}

	var texts []string
	var idx []int
	for i := range batch {
		if len(batch[i].Vector()) == 0 {
			texts = append(texts, batch[i].Text())
			idx = append(idx, i)
		}
	}
	if len(texts) > 0 {
		if s.embed == nil {
			return fmt.Errorf("%w: %d articles have no vector and no embedder is configured",
				domain.ErrNotReady, len(texts))
		}
		res, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return fmt.Errorf("embed articles: %w", err)
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d articles",
				domain.ErrEmbedding, len(res.Embeddings), len(texts))
		}
		for j, i := range idx {
			batch[i] = batch[i].WithVector(res.Embeddings[j])
		}
		st.Embedded += len(texts)
	}

	if err := s.store.Upsert(ctx, lang, batch); err != nil {
		return fmt.Errorf("upsert %d articles: %w", len(batch), err)
	}
	st.Loaded += len(batch)
	s.logger.Debug("Batch stored", zap.Int("size", len(batch)), zap.Int("total", st.Loaded))
	return nil
}
