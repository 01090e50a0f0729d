package health

import "context"

// Status is the liveness snapshot exposed to the UI.
type Status struct {
	Version        string `json:"version"`
	ValkeyHealthy  bool   `json:"valkey_healthy"`
	CachingEnabled bool   `json:"caching_enabled"`
}

type IHealthUsecase interface {
	GetStatus(ctx context.Context) (Status, error)
}
