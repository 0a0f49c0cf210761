package session

import (
	"context"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/page"
)

// Catalog serves browse pages.
type Catalog interface {
	Page(ctx context.Context, n, size int) (page.State, []image.Record)
	Degraded(ctx context.Context) bool
}

// SelectionReader reads the selection shown beside the grid.
type SelectionReader interface {
	List(ctx context.Context, sessionID string) []domsel.Item
	Legacy(ctx context.Context, sessionID string) []string
}
