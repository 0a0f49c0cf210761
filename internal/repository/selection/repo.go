package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/db"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
)

// Storage key suffixes, one record per browser session.
const (
	listKey   = "selectedImageList"
	legacyKey = "imgSrcList"
)

// store is the consumer interface for selection persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Repo persists a session's selection list as one JSON array.
type Repo struct {
	store  store
	prefix string
	logger *zap.Logger
}

// New creates a selection repository. prefix namespaces every key (e.g. "kfsearch:").
func New(s store, prefix string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, prefix: prefix, logger: logger}
}

func (r *Repo) key(sessionID, suffix string) string {
	return r.prefix + "session:" + sessionID + ":" + suffix
}

// Load returns the persisted list. A missing record is an empty list.
// Malformed data is logged and treated as empty; only store failures are returned.
func (r *Repo) Load(ctx context.Context, sessionID string) (domsel.List, error) {
	key := r.key(sessionID, listKey)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsel.List{}, nil
		}
		return domsel.List{}, fmt.Errorf("load selection: %w", err)
	}

	l, err := listFromJSON(data)
	if err != nil {
		r.logger.Warn("Discarding malformed selection list",
			zap.String("key", key), zap.Error(err))
		return domsel.List{}, nil
	}
	return l, nil
}

// Save overwrites the persisted list with l.
func (r *Repo) Save(ctx context.Context, sessionID string, l domsel.List) error {
	data, err := listToJSON(l)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key(sessionID, listKey), data); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// LoadLegacy returns the legacy list of selected image sources.
// It follows the same missing/malformed rules as Load.
func (r *Repo) LoadLegacy(ctx context.Context, sessionID string) ([]string, error) {
	key := r.key(sessionID, legacyKey)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load legacy selection: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var srcs []string
	if err := json.Unmarshal(data, &srcs); err != nil {
		r.logger.Warn("Discarding malformed legacy selection list",
			zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return srcs, nil
}

// SaveLegacy overwrites the legacy list. An empty list removes the record.
func (r *Repo) SaveLegacy(ctx context.Context, sessionID string, srcs []string) error {
	key := r.key(sessionID, legacyKey)
	if len(srcs) == 0 {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("clear legacy selection: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(srcs)
	if err != nil {
		return fmt.Errorf("marshal legacy selection: %w", err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save legacy selection: %w", err)
	}
	return nil
}
