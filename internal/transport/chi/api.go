package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
	exportuc "github.com/kailas-cloud/kfsearch/internal/usecase/export"
	searchuc "github.com/kailas-cloud/kfsearch/internal/usecase/search"
)

type selectionItemResponse struct {
	ID      int       `json:"id"`
	Video   string    `json:"video"`
	Frame   string    `json:"frame"`
	Path    string    `json:"path"`
	AddedAt time.Time `json:"added_at"`
}

type selectionResponse struct {
	Items  []selectionItemResponse `json:"items"`
	Legacy []string                `json:"legacy,omitempty"`
}

type addSelectionRequest struct {
	ID   *int   `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

type moveSelectionRequest struct {
	Direction string `json:"direction"`
}

type searchResultResponse struct {
	ID    int      `json:"id"`
	Path  string   `json:"path"`
	Score *float64 `json:"score,omitempty"`
}

type searchResponse struct {
	Mode     mode.Mode              `json:"mode"`
	Query    string                 `json:"query"`
	Results  []searchResultResponse `json:"results"`
	Cached   bool                   `json:"cached"`
	Degraded bool                   `json:"degraded"`
	Stale    bool                   `json:"stale,omitempty"`
}

// APIListSelection handles GET /api/session/selection.
func (s *Server) APIListSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := SessionID(ctx)
	resp := toSelectionResponse(s.selection.List(ctx, sid))
	resp.Legacy = s.selection.Legacy(ctx, sid)
	writeJSON(w, http.StatusOK, resp)
}

// APIAddSelection handles POST /api/session/selection. The body names the
// keyframe by id or by path.
func (s *Server) APIAddSelection(w http.ResponseWriter, r *http.Request) {
	var req addSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	sid := SessionID(ctx)
	var (
		items []domsel.Item
		err   error
	)
	switch {
	case req.ID != nil && req.Path != "":
		items, err = s.selection.Add(ctx, sid, image.New(*req.ID, req.Path))
	case req.ID != nil:
		items, err = s.selection.AddByID(ctx, sid, *req.ID)
	case req.Path != "":
		items, err = s.selection.AddByPath(ctx, sid, req.Path)
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id or path is required")
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSelectionResponse(items))
}

// APIClearSelection handles DELETE /api/session/selection?confirm=true.
func (s *Server) APIClearSelection(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := s.selection.Clear(r.Context(), SessionID(r.Context()), confirmed); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APIRemoveSelection handles DELETE /api/session/selection/{id}.
func (s *Server) APIRemoveSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	items, err := s.selection.Remove(r.Context(), SessionID(r.Context()), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponse(items))
}

// APIMoveSelection handles POST /api/session/selection/{id}/move.
func (s *Server) APIMoveSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req moveSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}
	dir, err := domsel.ParseDirection(req.Direction)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items, err := s.selection.Reorder(r.Context(), SessionID(r.Context()), id, dir)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponse(items))
}

// APISearch handles GET /api/session/search?mode=image-search&id=N or
// ?mode=text-search&q=... Results are also shown on the session's grid.
// The result count is always the configured default; cached results are keyed without it.
func (s *Server) APISearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := SessionID(ctx)
	q := r.URL.Query()

	k := s.opts.DefaultK

	m, err := mode.Parse(q.Get("mode"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	var out searchuc.Outcome
	switch m {
	case mode.ImageSearch:
		id, convErr := strconv.Atoi(strings.TrimSpace(q.Get("id")))
		if convErr != nil {
			s.handleDomainError(w, fmt.Errorf("%w: id must be an integer", domain.ErrInvalidQuery))
			return
		}
		out, err = s.search.SearchByID(ctx, sid, id, k)
	case mode.TextSearch:
		out, err = s.search.SearchByText(ctx, sid, q.Get("q"), k)
	default:
		s.handleDomainError(w, fmt.Errorf("%w: %q is not a search mode", domain.ErrInvalidMode, m))
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.sessions.ShowResults(sid, out)
	writeJSON(w, http.StatusOK, toSearchResponse(out))
}

// APIExportCSV handles GET /api/session/export.csv?filename=...
func (s *Server) APIExportCSV(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("filename")
	if raw == "" {
		raw = "selection"
	}
	name, err := exportuc.Filename(raw)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	data, err := s.export.CSV(r.Context(), SessionID(r.Context()), s.opts.MapKeyframes)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeCSV(w, name, data)
}

type catalogResponse struct {
	Total    int  `json:"total"`
	Degraded bool `json:"degraded"`
}

// APIReloadCatalog handles POST /api/catalog/reload: refetch /api/image_paths,
// e.g. after the search API comes back and the grid still shows demo data.
func (s *Server) APIReloadCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.catalog.Reload(ctx)
	writeJSON(w, http.StatusOK, catalogResponse{
		Total:    s.catalog.Len(ctx),
		Degraded: s.catalog.Degraded(ctx),
	})
}

func idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func toSelectionResponse(items []domsel.Item) selectionResponse {
	resp := selectionResponse{Items: make([]selectionItemResponse, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, selectionItemResponse{
			ID:      it.ID,
			Video:   it.Video,
			Frame:   it.Frame,
			Path:    it.Path,
			AddedAt: it.AddedAt,
		})
	}
	return resp
}

func toSearchResponse(out searchuc.Outcome) searchResponse {
	resp := searchResponse{
		Mode:     out.Query.Kind().Mode(),
		Query:    out.Query.Describe(),
		Results:  make([]searchResultResponse, 0, len(out.Results)),
		Cached:   out.Cached,
		Degraded: out.Degraded,
		Stale:    out.Stale,
	}
	for _, rec := range out.Results {
		item := searchResultResponse{ID: rec.ID(), Path: rec.Path()}
		if score, ok := rec.Score(); ok {
			item.Score = &score
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}
