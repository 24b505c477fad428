package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks a model provider (embedding or generation).
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
