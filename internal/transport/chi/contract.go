package chi

import (
	"context"

	"github.com/kailas-cloud/lawrag/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/lawrag/internal/usecase/health"
	"github.com/kailas-cloud/lawrag/internal/usecase/orchestrator"
)

// Asker runs retrieval requests.
type Asker interface {
	Ask(ctx context.Context, req request.Request) (*orchestrator.Response, error)
}

// Balances reads and credits user balances.
type Balances interface {
	Balance(ctx context.Context, userID string) (int64, error)
	TopUp(ctx context.Context, userID string, amount int) (int64, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
