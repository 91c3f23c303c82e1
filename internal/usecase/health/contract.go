package health

import "context"

// IndexPinger checks index storage availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChatChecker checks chat model availability.
type ChatChecker interface {
	CheckConnection(ctx context.Context) error
}
