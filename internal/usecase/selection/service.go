package selection

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	"github.com/kailas-cloud/kfsearch/internal/metrics"
)

// Service is the selection manager. Each mutation loads the list, changes it in
// memory and writes the whole list back. Write failures are logged, not returned.
type Service struct {
	repo    Repository
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time

	// locks serialises mutations per session.
	locks *cache.Cache
}

// New creates a selection manager. lockTTL bounds how long an idle session's lock is kept.
func New(repo Repository, cat Catalog, lockTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	return &Service{
		repo:    repo,
		catalog: cat,
		logger:  logger,
		now:     time.Now,
		locks:   cache.New(lockTTL, lockTTL),
	}
}

// WithClock overrides the time source used for AddedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the session's selection in display order.
// A store failure is logged and yields an empty list.
func (s *Service) List(ctx context.Context, sessionID string) []domsel.Item {
	l, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to load selection", zap.String("session", sessionID), zap.Error(err))
		return nil
	}
	return l.Items()
}

// Legacy returns the legacy list of selected image sources.
func (s *Service) Legacy(ctx context.Context, sessionID string) []string {
	srcs, err := s.repo.LoadLegacy(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to load legacy selection", zap.String("session", sessionID), zap.Error(err))
		return nil
	}
	return srcs
}

// Add appends the record. A duplicate id leaves the list unchanged and returns
// domain.ErrAlreadySelected.
func (s *Service) Add(ctx context.Context, sessionID string, r image.Record) ([]domsel.Item, error) {
	return s.mutate(ctx, sessionID, "add", func(l *domsel.List) (bool, error) {
		if err := l.Add(domsel.NewItem(r, s.now())); err != nil {
			return false, err
		}
		return true, nil
	})
}

// AddByID resolves id through the catalogue and adds it.
func (s *Service) AddByID(ctx context.Context, sessionID string, id int) ([]domsel.Item, error) {
	r, ok := s.catalog.Lookup(ctx, id)
	if !ok {
		return nil, fmt.Errorf("image %d: %w", id, domain.ErrNotFound)
	}
	return s.Add(ctx, sessionID, r)
}

// AddByPath adds a keyframe by a pasted file name or URL, e.g.
// "http://host/images/keyframes/L21_V001/00000005.jpg" or "L21_V001/00000005.jpg".
func (s *Service) AddByPath(ctx context.Context, sessionID, raw string) ([]domsel.Item, error) {
	path := normalizePastedPath(raw)
	if path == "" {
		return nil, domain.ErrEmptyQuery
	}

	r, ok := s.catalog.LookupPath(ctx, path)
	if !ok {
		r, ok = s.lookupSuffix(ctx, path)
	}
	if !ok {
		return nil, fmt.Errorf("keyframe %q: %w", path, domain.ErrNotFound)
	}
	return s.Add(ctx, sessionID, r)
}

// Remove drops the item with id. An absent id is a no-op.
func (s *Service) Remove(ctx context.Context, sessionID string, id int) ([]domsel.Item, error) {
	return s.mutate(ctx, sessionID, "remove", func(l *domsel.List) (bool, error) {
		return l.Remove(id), nil
	})
}

// Reorder swaps the item with its neighbour in dir. No-op at the list bounds.
func (s *Service) Reorder(ctx context.Context, sessionID string, id int, dir domsel.Direction) ([]domsel.Item, error) {
	return s.mutate(ctx, sessionID, "reorder", func(l *domsel.List) (bool, error) {
		return l.Reorder(id, dir), nil
	})
}

// Clear empties the selection and the legacy list. Without confirmation it
// returns domain.ErrConfirmationRequired and changes nothing.
func (s *Service) Clear(ctx context.Context, sessionID string, confirmed bool) error {
	if !confirmed {
		metrics.SelectionMutationsTotal.WithLabelValues("clear", "rejected").Inc()
		return domain.ErrConfirmationRequired
	}
	_, err := s.mutate(ctx, sessionID, "clear", func(l *domsel.List) (bool, error) {
		l.Clear()
		return true, nil
	})
	if err != nil {
		return err
	}
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()
	if err := s.repo.SaveLegacy(ctx, sessionID, nil); err != nil {
		s.logger.Warn("Failed to clear legacy selection", zap.String("session", sessionID), zap.Error(err))
	}
	return nil
}

// AddLegacy appends a pasted keyframe path to the legacy list. The value is
// stored as "<dir>/<video>/<frame>.jpg" with scheme and host stripped; it need not
// be in the catalogue.
func (s *Service) AddLegacy(ctx context.Context, sessionID, raw string) ([]string, error) {
	src := normalizePastedPath(raw)
	if src == "" {
		return nil, domain.ErrEmptyQuery
	}
	if image.ParsePath(src).Video == "" {
		return nil, fmt.Errorf("%w: no video in path %q", domain.ErrInvalidQuery, src)
	}
	return s.mutateLegacy(ctx, sessionID, "legacy_add", func(l *domsel.Sources) (bool, error) {
		if err := l.Add(src); err != nil {
			return false, err
		}
		return true, nil
	})
}

// RemoveLegacy drops src from the legacy list. An absent src is a no-op.
func (s *Service) RemoveLegacy(ctx context.Context, sessionID, src string) ([]string, error) {
	return s.mutateLegacy(ctx, sessionID, "legacy_remove", func(l *domsel.Sources) (bool, error) {
		return l.Remove(src), nil
	})
}

// ReorderLegacy swaps src with its neighbour in dir.
func (s *Service) ReorderLegacy(
	ctx context.Context, sessionID, src string, dir domsel.Direction,
) ([]string, error) {
	return s.mutateLegacy(ctx, sessionID, "legacy_reorder", func(l *domsel.Sources) (bool, error) {
		return l.Reorder(src, dir), nil
	})
}

// mutate runs fn on the session's list under the session lock and persists the result when changed.
func (s *Service) mutate(
	ctx context.Context, sessionID, op string, fn func(l *domsel.List) (bool, error),
) ([]domsel.Item, error) {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	l, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s selection: %w", op, err)
	}

	changed, err := fn(&l)
	if err != nil {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "rejected").Inc()
		return l.Items(), err
	}
	if !changed {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "noop").Inc()
		return l.Items(), nil
	}

	if err := s.repo.Save(ctx, sessionID, l); err != nil {
		s.logger.Warn("Failed to persist selection",
			zap.String("session", sessionID), zap.String("op", op), zap.Error(err))
	}
	metrics.SelectionMutationsTotal.WithLabelValues(op, "ok").Inc()
	return l.Items(), nil
}

// mutateLegacy is mutate for the legacy list; both share the session lock.
func (s *Service) mutateLegacy(
	ctx context.Context, sessionID, op string, fn func(l *domsel.Sources) (bool, error),
) ([]string, error) {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	srcs, err := s.repo.LoadLegacy(ctx, sessionID)
	if err != nil {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l := append(domsel.Sources(nil), srcs...)

	changed, err := fn(&l)
	if err != nil {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "rejected").Inc()
		return l, err
	}
	if !changed {
		metrics.SelectionMutationsTotal.WithLabelValues(op, "noop").Inc()
		return l, nil
	}

	if err := s.repo.SaveLegacy(ctx, sessionID, l); err != nil {
		s.logger.Warn("Failed to persist legacy selection",
			zap.String("session", sessionID), zap.String("op", op), zap.Error(err))
	}
	metrics.SelectionMutationsTotal.WithLabelValues(op, "ok").Inc()
	return l, nil
}

func (s *Service) lock(sessionID string) *sync.Mutex {
	mu := &sync.Mutex{}
	if err := s.locks.Add(sessionID, mu, cache.DefaultExpiration); err == nil {
		return mu
	}
	if v, ok := s.locks.Get(sessionID); ok {
		return v.(*sync.Mutex)
	}
	// Expired between Add and Get.
	s.locks.Set(sessionID, mu, cache.DefaultExpiration)
	return mu
}

// lookupSuffix matches the pasted "<video>/<frame>.jpg" against the catalogue's keyframes dirs.
func (s *Service) lookupSuffix(ctx context.Context, path string) (image.Record, bool) {
	for _, dir := range []string{"images/keyframes/", "keyframes/", "new_keyframes/"} {
		if r, ok := s.catalog.LookupPath(ctx, dir+path); ok {
			return r, true
		}
	}
	return image.Record{}, false
}

// normalizePastedPath strips scheme, host and query from a pasted value.
func normalizePastedPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		raw = u.Path
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimLeft(raw, "/")
}
