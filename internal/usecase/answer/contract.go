package answer

import (
	"context"

	"github.com/kailas-cloud/lawrag/internal/domain"
)

// Generator composes the final answer.
type Generator interface {
	Complete(ctx context.Context, req domain.Completion) (domain.CompletionResult, error)
}
