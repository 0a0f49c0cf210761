package selection

import (
	"context"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
)

// Repository persists a session's selection lists.
type Repository interface {
	Load(ctx context.Context, sessionID string) (domsel.List, error)
	Save(ctx context.Context, sessionID string, l domsel.List) error
	LoadLegacy(ctx context.Context, sessionID string) ([]string, error)
	SaveLegacy(ctx context.Context, sessionID string, srcs []string) error
}

// Catalog resolves ids and pasted file names to image records.
type Catalog interface {
	Lookup(ctx context.Context, id int) (image.Record, bool)
	LookupPath(ctx context.Context, path string) (image.Record, bool)
}
