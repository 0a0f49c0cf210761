package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/query"
	"github.com/kailas-cloud/kfsearch/internal/metrics"
	"github.com/kailas-cloud/kfsearch/internal/usecase/catalog"
)

// DefaultPlaceholderResults is the size of the offline result set.
const DefaultPlaceholderResults = 20

// Outcome is the answer to one search call.
type Outcome struct {
	Query   query.Query
	Results []image.Record
	// Cached is set when the results came from the session cache.
	Cached bool
	// Degraded is set when the backend failed and placeholders were returned.
	Degraded bool
	// Stale is set when a newer search for the same mode was issued while this one ran.
	Stale bool
	Seq   uint64
}

// Service is the search client: cache lookup, backend call, placeholder fallback.
type Service struct {
	backend      Backend
	cache        Cache
	catalog      Catalog
	placeholders int
	logger       *zap.Logger

	mu   sync.Mutex
	seqs map[string]uint64
}

// New creates a search service. placeholders <= 0 selects DefaultPlaceholderResults.
func New(backend Backend, cache Cache, cat Catalog, placeholders int, logger *zap.Logger) *Service {
	if placeholders <= 0 {
		placeholders = DefaultPlaceholderResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:      backend,
		cache:        cache,
		catalog:      cat,
		placeholders: placeholders,
		logger:       logger,
		seqs:         make(map[string]uint64),
	}
}

// SearchByID finds images similar to a catalogue image.
func (s *Service) SearchByID(ctx context.Context, sessionID string, id, k int) (Outcome, error) {
	q, err := query.NewByID(id, k)
	if err != nil {
		return Outcome{}, err
	}
	return s.Run(ctx, sessionID, q)
}

// SearchByText finds images matching text. Blank text returns domain.ErrEmptyQuery without a request.
func (s *Service) SearchByText(ctx context.Context, sessionID, text string, k int) (Outcome, error) {
	q, err := query.NewByText(text, k)
	if err != nil {
		return Outcome{}, err
	}
	return s.Run(ctx, sessionID, q)
}

// SearchByUpload finds images similar to uploaded bytes.
func (s *Service) SearchByUpload(ctx context.Context, sessionID, filename string, data []byte, k int) (Outcome, error) {
	q, err := query.NewByUpload(filename, data, k)
	if err != nil {
		return Outcome{}, err
	}
	return s.Run(ctx, sessionID, q)
}

// Run executes a validated query.
func (s *Service) Run(ctx context.Context, sessionID string, q query.Query) (Outcome, error) {
	m := q.Kind().Mode()
	seq := s.nextSeq(sessionID, m)
	out := Outcome{Query: q, Seq: seq}

	key := q.CacheKey()
	if cached, ok := s.cache.Get(sessionID, key); ok {
		out.Results = cached
		out.Cached = true
		return s.finish(sessionID, m, out), nil
	}

	results, err := s.call(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, fmt.Errorf("search %s: %w", q.Kind(), ctx.Err())
		}
		s.logger.Warn("Search backend failed, using placeholder results",
			zap.String("kind", string(q.Kind())),
			zap.String("query", q.Describe()),
			zap.Error(err),
		)
		metrics.SearchFallbackTotal.WithLabelValues(string(q.Kind())).Inc()
		results = s.placeholderResults(ctx, q)
		out.Degraded = true
	}

	s.cache.Put(sessionID, key, results)
	out.Results = results
	return s.finish(sessionID, m, out), nil
}

// Latest returns the sequence number of the newest search issued for a mode.
func (s *Service) Latest(sessionID string, m mode.Mode) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[seqKey(sessionID, m)]
}

// Forget drops the cache and sequence counters of an ended session.
func (s *Service) Forget(sessionID string) {
	s.cache.Drop(sessionID)
	s.mu.Lock()
	for _, m := range mode.All {
		delete(s.seqs, seqKey(sessionID, m))
	}
	s.mu.Unlock()
}

func (s *Service) call(ctx context.Context, q query.Query) ([]image.Record, error) {
	switch q.Kind() {
	case query.ByID:
		return s.backend.ImageSearch(ctx, q.ImageID(), q.K())
	case query.ByText:
		return s.backend.TextSearch(ctx, q.Text(), q.K())
	case query.ByUpload:
		return s.backend.UploadSearch(ctx, q.Filename(), q.Upload(), q.K())
	default:
		return nil, fmt.Errorf("unsupported query kind: %s", q.Kind())
	}
}

// placeholderResults synthesises results around the queried id (0 for text and uploads)
// with descending scores.
func (s *Service) placeholderResults(ctx context.Context, q query.Query) []image.Record {
	base := 0
	if q.Kind() == query.ByID {
		base = q.ImageID()
	}
	total := s.catalog.Len(ctx)

	out := make([]image.Record, 0, s.placeholders)
	for i := 0; i < s.placeholders; i++ {
		id := base + i
		if total > 0 {
			id %= total
		}
		path := catalog.PlaceholderPath(1, id)
		if r, ok := s.catalog.Lookup(ctx, id); ok {
			path = r.Path()
		}
		score := 1 - float64(i)/float64(s.placeholders)
		out = append(out, image.NewScored(id, path, score))
	}
	return out
}

func (s *Service) nextSeq(sessionID string, m mode.Mode) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seqKey(sessionID, m)
	s.seqs[k]++
	return s.seqs[k]
}

func (s *Service) finish(sessionID string, m mode.Mode, out Outcome) Outcome {
	if s.Latest(sessionID, m) != out.Seq {
		out.Stale = true
		metrics.SearchStaleTotal.WithLabelValues(string(m)).Inc()
	}
	return out
}

func seqKey(sessionID string, m mode.Mode) string {
	return sessionID + "\x00" + string(m)
}
