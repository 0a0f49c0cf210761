package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/page"
)

// PlaceholderSize is the number of records in the offline catalogue.
const PlaceholderSize = 500

// framesPerVideo is the number of placeholder frames per video directory.
const framesPerVideo = 100

// Service holds the browse catalogue. It is loaded once and memoised.
type Service struct {
	src    Source
	logger *zap.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	degraded bool
	records  []image.Record
	byID     map[int]int
	byPath   map[string]int
}

// New creates a catalogue service.
func New(src Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{src: src, logger: logger}
}

// Load fetches the catalogue on first use. A backend failure installs the
// placeholder catalogue and marks the service degraded; Load itself never fails.
// The fetch ignores the caller's cancellation.
func (s *Service) Load(ctx context.Context) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}
	ctx = context.WithoutCancel(ctx)
	_, _, _ = s.group.Do("load", func() (any, error) {
		s.mu.RLock()
		done := s.loaded
		s.mu.RUnlock()
		if !done {
			s.Reload(ctx)
		}
		return nil, nil
	})
}

// Reload refetches the catalogue. A cancelled ctx keeps the current catalogue.
func (s *Service) Reload(ctx context.Context) {
	records, err := s.src.ImagePaths(ctx)
	degraded := false
	if err != nil && ctx.Err() != nil {
		s.logger.Warn("Image catalogue reload cancelled, keeping current data", zap.Error(err))
		return
	}
	if err != nil {
		s.logger.Warn("Image catalogue unavailable, using placeholder data", zap.Error(err))
		records = Placeholder(PlaceholderSize)
		degraded = true
	}

	sorted := make([]image.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	byID := make(map[int]int, len(sorted))
	byPath := make(map[string]int, len(sorted))
	for i, r := range sorted {
		byID[r.ID()] = i
		byPath[r.Path()] = i
	}

	s.mu.Lock()
	s.records = sorted
	s.byID = byID
	s.byPath = byPath
	s.degraded = degraded
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("Image catalogue loaded", zap.Int("images", len(sorted)), zap.Bool("degraded", degraded))
}

// Degraded reports whether the placeholder catalogue is in use.
func (s *Service) Degraded(ctx context.Context) bool {
	s.Load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Len returns the number of images in the catalogue.
func (s *Service) Len(ctx context.Context) int {
	s.Load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Page returns the clamped page state and the records on it, in id order.
func (s *Service) Page(ctx context.Context, n, size int) (page.State, []image.Record) {
	s.Load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := page.New(n, size, len(s.records))
	start, end := st.Bounds()
	out := make([]image.Record, end-start)
	copy(out, s.records[start:end])
	return st, out
}

// Lookup returns the record with the given id.
func (s *Service) Lookup(ctx context.Context, id int) (image.Record, bool) {
	s.Load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return image.Record{}, false
	}
	return s.records[i], true
}

// LookupPath resolves an asset path (with or without a leading slash) to its record.
func (s *Service) LookupPath(ctx context.Context, path string) (image.Record, bool) {
	s.Load(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range []string{path, strings.TrimLeft(path, "/"), image.AssetURL(path)} {
		if i, ok := s.byPath[p]; ok {
			return s.records[i], true
		}
	}
	return image.Record{}, false
}

// Placeholder builds the offline catalogue: n images spread over videos of 100 frames each.
func Placeholder(n int) []image.Record {
	out := make([]image.Record, n)
	for i := range out {
		out[i] = image.New(i, PlaceholderPath(i/framesPerVideo+1, i%framesPerVideo))
	}
	return out
}

// PlaceholderPath formats a placeholder keyframe path.
func PlaceholderPath(video, frame int) string {
	return fmt.Sprintf("images/keyframes/L21_V%03d/%08d.jpg", video, frame)
}
