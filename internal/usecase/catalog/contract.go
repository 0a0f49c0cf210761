package catalog

import (
	"context"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

// Source fetches the full image catalogue.
type Source interface {
	ImagePaths(ctx context.Context) ([]image.Record, error)
}
