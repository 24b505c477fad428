package expand

import (
	"context"

	"github.com/kailas-cloud/lawrag/internal/domain"
)

// Generator produces the reformulated questions.
type Generator interface {
	Complete(ctx context.Context, req domain.Completion) (domain.CompletionResult, error)
}
