package corpus

import (
	"context"

	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// Partition is the write side of the similarity store (ISP).
type Partition interface {
	EnsurePartition(ctx context.Context, lang language.Language) error
	DropPartition(ctx context.Context, lang language.Language) error
	Upsert(ctx context.Context, lang language.Language, articles []domart.Article) error
}
