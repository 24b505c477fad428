package article

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/lawrag/internal/db"
	"github.com/kailas-cloud/lawrag/internal/domain"
	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
)

// store is the consumer interface for the article corpus (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the partition layout and vector index parameters.
type Config struct {
	// Prefix namespaces index and key names: <prefix>:<lang>:idx, <prefix>:<lang>:article:<key>.
	Prefix     string
	Dimensions int
	Distance   db.DistanceMetric
	Algorithm  db.VectorAlgorithm
	HNSW       HNSWConfig
	// EFRuntime is passed to every KNN query when positive.
	EFRuntime int
}

// Repo is the similarity store client over language-partitioned FT indexes.
type Repo struct {
	store store
	cfg   Config
}

// New creates an article repository. Zero config values fall back to the corpus defaults.
func New(s store, cfg Config) *Repo {
	if cfg.Prefix == "" {
		cfg.Prefix = "lawrag"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if cfg.Distance == "" {
		cfg.Distance = db.DistanceCosine
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 16
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 200
	}
	return &Repo{store: s, cfg: cfg}
}

// Search returns up to topK articles nearest to vector within one language partition,
// best first. Every failure wraps domain.ErrStore.
func (r *Repo) Search(ctx context.Context, lang language.Language, vector []float32, topK int) ([]hit.Hit, error) {
	if !lang.IsValid() {
		return nil, fmt.Errorf("search: %w: unsupported language %q", domain.ErrStore, lang)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("search %s: %w: top_k must be positive", lang, domain.ErrStore)
	}
	if len(vector) != r.cfg.Dimensions {
		return nil, fmt.Errorf("search %s: %w: vector has %d dimensions, partition expects %d",
			lang, domain.ErrStore, len(vector), r.cfg.Dimensions)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(r.cfg.Prefix, lang),
		VectorField:  fieldVector,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
		EFRuntime:    r.cfg.EFRuntime,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("search %s: %w: partition not loaded", lang, domain.ErrStore)
		}
		return nil, fmt.Errorf("search %s: %w: %w", lang, domain.ErrStore, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]hit.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, hit.Hit{
			Article: hashToArticle(e.Fields, lang),
			Score:   e.Score,
		})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Upsert stores articles into their partition keyed by identity, in one pipelined round-trip.
// Every article must belong to lang and carry a vector of the partition dimension.
func (r *Repo) Upsert(ctx context.Context, lang language.Language, articles []domart.Article) error {
	if len(articles) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(articles))
	for i := range articles {
		a := &articles[i]
		if a.Language() != lang {
			return fmt.Errorf("upsert %s: article %q belongs to partition %s", lang, a.Title(), a.Language())
		}
		if len(a.Vector()) != r.cfg.Dimensions {
			return fmt.Errorf("upsert %s: article %q: %w: %d dimensions, expected %d",
				lang, a.Title(), domain.ErrInvalidRequest, len(a.Vector()), r.cfg.Dimensions)
		}
		items[i] = db.HashSetItem{
			Key:    keyPrefix(r.cfg.Prefix, lang) + a.Key(),
			Fields: articleToHash(a),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %s: %w: %w", lang, domain.ErrStore, err)
	}
	return nil
}

// EnsurePartition creates the partition index when it does not exist yet.
func (r *Repo) EnsurePartition(ctx context.Context, lang language.Language) error {
	name := indexName(r.cfg.Prefix, lang)
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check partition %s: %w: %w", lang, domain.ErrStore, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.cfg.Prefix, lang, r.cfg)
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create partition %s: %w: %w", lang, domain.ErrStore, err)
	}
	return nil
}

// DropPartition removes the partition index together with its articles. Missing partitions are ignored.
func (r *Repo) DropPartition(ctx context.Context, lang language.Language) error {
	err := r.store.DropIndex(ctx, indexName(r.cfg.Prefix, lang), true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop partition %s: %w: %w", lang, domain.ErrStore, err)
	}
	return nil
}

// Count returns the number of articles in a partition.
func (r *Repo) Count(ctx context.Context, lang language.Language) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName(r.cfg.Prefix, lang), "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w: %w", lang, domain.ErrStore, err)
	}
	return n, nil
}
