package health

import "context"

// StorePinger checks selection storage availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks the remote search API.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}

// CatalogState reports whether the catalogue runs on placeholder data.
type CatalogState interface {
	Degraded(ctx context.Context) bool
}
