// Package session is the mode controller: it holds each browser session's display
// state and decides what the grid shows.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/page"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/query"
	"github.com/kailas-cloud/kfsearch/internal/usecase/search"
)

// Config tunes the controller.
type Config struct {
	PageSize   int
	PageWindow int
	// IdleTTL ends a session after this long without requests.
	IdleTTL time.Duration
}

// state is the mutable per-session record. Guarded by Service.mu.
type state struct {
	mode     mode.Mode
	page     int
	results  []image.Record
	seqs     map[mode.Mode]uint64
	query    string
	status   string
	notice   string
	degraded bool
}

// View is everything the grid renderer needs for one response.
type View struct {
	SessionID      string
	Mode           mode.Mode
	Records        []image.Record
	Selected       map[int]struct{}
	Selection      []domsel.Item
	Legacy         []string
	ShowPagination bool
	Page           page.State
	PageWindow     []int
	Status         string
	Notice         string
	LastQuery      string
	Degraded       bool
}

// Service owns the session registry.
type Service struct {
	catalog   Catalog
	selection SelectionReader
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	sessions *cache.Cache
}

// New creates the mode controller.
func New(cat Catalog, sel SelectionReader, cfg Config, logger *zap.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageWindow <= 0 {
		cfg.PageWindow = 4
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:   cat,
		selection: sel,
		cfg:       cfg,
		logger:    logger,
		sessions:  cache.New(cfg.IdleTTL, cfg.IdleTTL/4),
	}
}

// OnEnd registers a callback run when a session expires or is ended.
func (s *Service) OnEnd(fn func(sessionID string)) {
	s.sessions.OnEvicted(func(id string, _ any) {
		s.logger.Debug("Session ended", zap.String("session", id))
		fn(id)
	})
}

// End drops a session immediately, as a page reload did: mode, results and
// cached searches are gone, the stored selection is kept.
func (s *Service) End(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	return s.sessions.ItemCount()
}

// SwitchMode moves the session to m. Entering browse reloads the current page;
// entering a search mode clears the grid and shows the mode's prompt.
func (s *Service) SwitchMode(ctx context.Context, sessionID string, m mode.Mode) error {
	if !m.IsValid() {
		_, err := mode.Parse(string(m))
		return err
	}

	s.mu.Lock()
	st := s.get(sessionID)
	st.mode = m
	st.results = nil
	st.query = ""
	st.degraded = false
	st.status = m.Prompt()
	curPage := st.page
	s.mu.Unlock()

	if m == mode.Browse {
		s.GoToPage(ctx, sessionID, curPage)
	}
	return nil
}

// GoToPage switches to browse and shows page n, clamped to [1, TotalPages].
func (s *Service) GoToPage(ctx context.Context, sessionID string, n int) page.State {
	st, _ := s.catalog.Page(ctx, n, s.cfg.PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sessionID)
	sess.mode = mode.Browse
	sess.page = st.Current()
	sess.results = nil
	sess.query = ""
	sess.status = ""
	return st
}

// ShowResults displays a search outcome. A stale outcome is ignored and false is returned.
func (s *Service) ShowResults(sessionID string, out search.Outcome) bool {
	if out.Stale {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sessionID)
	m := out.Query.Kind().Mode()
	if out.Seq < sess.seqs[m] {
		return false
	}
	sess.mode = m
	sess.results = out.Results
	sess.seqs[m] = out.Seq
	sess.query = out.Query.Describe()
	sess.degraded = out.Degraded
	sess.status = resultStatus(out)
	return true
}

// Notify sets a one-shot notice shown on the next view.
func (s *Service) Notify(sessionID, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(sessionID).notice = msg
}

// View assembles what the grid shows and consumes the pending notice.
func (s *Service) View(ctx context.Context, sessionID string) View {
	s.mu.Lock()
	sess := s.get(sessionID)
	v := View{
		SessionID: sessionID,
		Mode:      sess.mode,
		Status:    sess.status,
		Notice:    sess.notice,
		LastQuery: sess.query,
		Degraded:  sess.degraded,
	}
	sess.notice = ""
	curPage := sess.page
	results := sess.results
	s.mu.Unlock()

	if v.Mode == mode.Browse {
		st, recs := s.catalog.Page(ctx, curPage, s.cfg.PageSize)
		v.Records = recs
		v.Page = st
		v.PageWindow = st.Window(s.cfg.PageWindow)
		v.ShowPagination = true
		v.Degraded = s.catalog.Degraded(ctx)
		v.Status = browseStatus(st, v.Degraded)
	} else {
		v.Records = append([]image.Record(nil), results...)
		if v.Status == "" {
			v.Status = v.Mode.Prompt()
		}
	}

	v.Selection = s.selection.List(ctx, sessionID)
	v.Legacy = s.selection.Legacy(ctx, sessionID)
	v.Selected = make(map[int]struct{}, len(v.Selection))
	for _, it := range v.Selection {
		v.Selected[it.ID] = struct{}{}
	}
	return v
}

// get returns the session state, creating it in browse mode on first use,
// and refreshes its idle deadline. Caller holds s.mu.
func (s *Service) get(sessionID string) *state {
	if v, ok := s.sessions.Get(sessionID); ok {
		st := v.(*state)
		s.sessions.SetDefault(sessionID, st)
		return st
	}
	st := &state{mode: mode.Browse, page: 1, seqs: make(map[mode.Mode]uint64, len(mode.All))}
	s.sessions.SetDefault(sessionID, st)
	return st
}

func browseStatus(st page.State, degraded bool) string {
	start, end := st.Bounds()
	msg := fmt.Sprintf("Showing images %d to %d of %d", start+1, end, st.Total())
	if st.Total() == 0 {
		msg = "No images"
	}
	if degraded {
		msg += " (demo data)"
	}
	return msg
}

func resultStatus(out search.Outcome) string {
	n := len(out.Results)
	var msg string
	switch out.Query.Kind() {
	case query.ByID:
		msg = fmt.Sprintf("Found %d similar images to ID %d", n, out.Query.ImageID())
	case query.ByText:
		msg = fmt.Sprintf("Found %d images for query: %q", n, out.Query.Text())
	default:
		msg = fmt.Sprintf("Found %d similar images to uploaded image", n)
	}
	switch {
	case out.Cached:
		msg += " (cached)"
	case out.Degraded:
		msg += " (demo results, search API unavailable)"
	}
	return msg
}
