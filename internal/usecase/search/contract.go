package search

import (
	"context"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

// Backend runs similarity searches on the remote API.
type Backend interface {
	ImageSearch(ctx context.Context, imageID, k int) ([]image.Record, error)
	TextSearch(ctx context.Context, text string, k int) ([]image.Record, error)
	UploadSearch(ctx context.Context, filename string, data []byte, k int) ([]image.Record, error)
}

// Cache keeps results per session.
type Cache interface {
	Get(sessionID, key string) ([]image.Record, bool)
	Put(sessionID, key string, results []image.Record)
	Drop(sessionID string)
}

// Catalog resolves placeholder results when the backend is down.
type Catalog interface {
	Len(ctx context.Context) int
	Lookup(ctx context.Context, id int) (image.Record, bool)
}
