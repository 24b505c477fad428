package orchestrator

import (
	"context"

	"github.com/kailas-cloud/lawrag/internal/domain/language"
	"github.com/kailas-cloud/lawrag/internal/domain/search/hit"
	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	"github.com/kailas-cloud/lawrag/internal/domain/search/result"
)

// Extractor turns an uploaded file into paragraphs.
type Extractor interface {
	Extract(ctx context.Context, fileURL string, kind request.Kind) ([]string, error)
}

// Expander rewrites one question into exactly n sub-queries.
type Expander interface {
	Expand(ctx context.Context, query string, n int, lang language.Language) ([]string, error)
}

// Store runs a similarity lookup within one language partition.
type Store interface {
	Search(ctx context.Context, lang language.Language, vector []float32, topK int) ([]hit.Hit, error)
}

// Answerer composes the final answer from an assembled context.
type Answerer interface {
	Generate(ctx context.Context, question string, c result.Context, lang language.Language) (string, error)
}

// Accounting charges requests.
type Accounting interface {
	HasBalance(ctx context.Context, userID string, cost int) (bool, error)
	Deduct(ctx context.Context, userID string, cost int) error
}

// Refunder is implemented by accounting collaborators that can return a charge.
type Refunder interface {
	Refund(ctx context.Context, userID string, cost int) error
}
