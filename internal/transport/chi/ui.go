package chi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	domsel "github.com/kailas-cloud/kfsearch/internal/domain/selection"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
	logpkg "github.com/kailas-cloud/kfsearch/internal/logger"
	exportuc "github.com/kailas-cloud/kfsearch/internal/usecase/export"
	searchuc "github.com/kailas-cloud/kfsearch/internal/usecase/search"
)

// Index handles GET /: the grid in the session's current mode. ?page=N browses to page N.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := SessionID(ctx)

	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			s.notify(r, fmt.Errorf("%w: page %q", domain.ErrInvalidQuery, p))
		} else {
			s.sessions.GoToPage(ctx, sid, n)
		}
	}

	s.render(w, r, s.sessions.View(ctx, sid))
}

// SwitchMode handles the "mode" action.
func (s *Server) SwitchMode(w http.ResponseWriter, r *http.Request) {
	m, err := mode.Parse(chi.URLParam(r, "mode"))
	if err == nil {
		err = s.sessions.SwitchMode(r.Context(), SessionID(r.Context()), m)
	}
	if err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// GoToPage handles the "page" action.
func (s *Server) GoToPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.notify(r, fmt.Errorf("%w: page %q", domain.ErrInvalidQuery, chi.URLParam(r, "page")))
	} else {
		s.sessions.GoToPage(r.Context(), SessionID(r.Context()), n)
	}
	s.backToGrid(w, r)
}

// SearchByID handles the "search-id" action (form field image_id).
func (s *Server) SearchByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.FormValue("image_id"))
	if raw == "" {
		s.notify(r, domain.ErrEmptyQuery)
		s.backToGrid(w, r)
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.notify(r, fmt.Errorf("%w: image id %q", domain.ErrInvalidQuery, raw))
		s.backToGrid(w, r)
		return
	}
	s.showSearch(w, r, func(sid string) (searchuc.Outcome, error) {
		return s.search.SearchByID(r.Context(), sid, id, s.opts.DefaultK)
	})
}

// Similar handles the "similar" action on a grid or selection card.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.notify(r, fmt.Errorf("%w: image id", domain.ErrInvalidQuery))
		s.backToGrid(w, r)
		return
	}
	s.showSearch(w, r, func(sid string) (searchuc.Outcome, error) {
		return s.search.SearchByID(r.Context(), sid, id, s.opts.DefaultK)
	})
}

// SearchByText handles the "search-text" action (form field q).
func (s *Server) SearchByText(w http.ResponseWriter, r *http.Request) {
	text := r.FormValue("q")
	s.showSearch(w, r, func(sid string) (searchuc.Outcome, error) {
		return s.search.SearchByText(r.Context(), sid, text, s.opts.DefaultK)
	})
}

// SearchByUpload handles the "search-upload" action (multipart field image).
func (s *Server) SearchByUpload(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readUpload(w, r)
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	s.showSearch(w, r, func(sid string) (searchuc.Outcome, error) {
		return s.search.SearchByUpload(r.Context(), sid, filename, data, s.opts.DefaultK)
	})
}

// SelectAdd handles the "select-add" action. The card posts its path so search
// results outside the catalogue can be selected too.
func (s *Server) SelectAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := SessionID(ctx)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.notify(r, fmt.Errorf("%w: image id", domain.ErrInvalidQuery))
		s.backToGrid(w, r)
		return
	}
	if path := strings.TrimSpace(r.FormValue("path")); path != "" {
		_, err = s.selection.Add(ctx, sid, image.New(id, path))
	} else {
		_, err = s.selection.AddByID(ctx, sid, id)
	}
	if err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// SelectAddPath handles the "select-add-path" action: a keyframe file name pasted by the user.
func (s *Server) SelectAddPath(w http.ResponseWriter, r *http.Request) {
	if _, err := s.selection.AddByPath(r.Context(), SessionID(r.Context()), r.FormValue("path")); err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// SelectRemove handles the "select-remove" action.
func (s *Server) SelectRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err == nil {
		_, err = s.selection.Remove(r.Context(), SessionID(r.Context()), id)
	}
	if err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// SelectMove handles the "select-move" action.
func (s *Server) SelectMove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.notify(r, fmt.Errorf("%w: image id", domain.ErrInvalidQuery))
		s.backToGrid(w, r)
		return
	}
	dir, err := domsel.ParseDirection(chi.URLParam(r, "dir"))
	if err == nil {
		_, err = s.selection.Reorder(r.Context(), SessionID(r.Context()), id, dir)
	}
	if err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// SelectClear handles the "select-clear" action. The form must carry confirm=true.
func (s *Server) SelectClear(w http.ResponseWriter, r *http.Request) {
	confirmed := r.FormValue("confirm") == "true"
	if err := s.selection.Clear(r.Context(), SessionID(r.Context()), confirmed); err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// OpenView handles the "view" action: redirect to the frame viewer for ?keyframe=.
func (s *Server) OpenView(w http.ResponseWriter, r *http.Request) {
	kf := r.URL.Query().Get("keyframe")
	if kf == "" {
		s.notify(r, domain.ErrEmptyQuery)
		s.backToGrid(w, r)
		return
	}
	http.Redirect(w, r, s.opts.AssetBaseURL+exportuc.ViewURL(kf), http.StatusFound)
}

// OpenClip handles the "clip" action: redirect to the player at frame/fps.
func (s *Server) OpenClip(w http.ResponseWriter, r *http.Request) {
	ref := image.ParsePath(r.URL.Query().Get("keyframe"))
	if ref.Video == "" {
		s.notify(r, fmt.Errorf("%w: keyframe has no video", domain.ErrInvalidQuery))
		s.backToGrid(w, r)
		return
	}
	http.Redirect(w, r, s.opts.AssetBaseURL+s.export.ClipURL(r.Context(), ref.Video, ref.Frame), http.StatusFound)
}

// OpenClipLegacy handles the "clip-legacy" action: the player position comes from /get_time.
func (s *Server) OpenClipLegacy(w http.ResponseWriter, r *http.Request) {
	target, err := s.export.FrameTimeURL(r.Context(), r.URL.Query().Get("keyframe"))
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	http.Redirect(w, r, s.opts.AssetBaseURL+target, http.StatusFound)
}

// ExportCSV handles the "export-csv" action (form field filename).
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	name, err := exportuc.Filename(r.FormValue("filename"))
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	data, err := s.export.CSV(r.Context(), SessionID(r.Context()), s.opts.MapKeyframes)
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	writeCSV(w, name, data)
}

// LegacyAdd handles the "legacy-add" action: a keyframe source pasted into the legacy list.
func (s *Server) LegacyAdd(w http.ResponseWriter, r *http.Request) {
	if _, err := s.selection.AddLegacy(r.Context(), SessionID(r.Context()), r.FormValue("src")); err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// LegacyRemove handles the "legacy-remove" action (form field src).
func (s *Server) LegacyRemove(w http.ResponseWriter, r *http.Request) {
	if _, err := s.selection.RemoveLegacy(r.Context(), SessionID(r.Context()), r.FormValue("src")); err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// LegacyMove handles the "legacy-move" action (form field src).
func (s *Server) LegacyMove(w http.ResponseWriter, r *http.Request) {
	dir, err := domsel.ParseDirection(chi.URLParam(r, "dir"))
	if err == nil {
		_, err = s.selection.ReorderLegacy(r.Context(), SessionID(r.Context()), r.FormValue("src"), dir)
	}
	if err != nil {
		s.notify(r, err)
	}
	s.backToGrid(w, r)
}

// LegacyExportCSV handles the "legacy-export" action (form field filename).
func (s *Server) LegacyExportCSV(w http.ResponseWriter, r *http.Request) {
	name, err := exportuc.Filename(r.FormValue("filename"))
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	data, err := s.export.LegacyCSV(r.Context(), SessionID(r.Context()), s.opts.MapKeyframes)
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	writeCSV(w, name, data)
}

// ResetSession handles the "session-reset" action. The grid starts over in browse
// mode with no cached searches; both selection lists are kept.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(SessionID(r.Context()))
	s.backToGrid(w, r)
}

// showSearch runs a search and shows its results unless a newer search superseded it.
func (s *Server) showSearch(
	w http.ResponseWriter, r *http.Request, run func(sid string) (searchuc.Outcome, error),
) {
	sid := SessionID(r.Context())
	out, err := run(sid)
	if err != nil {
		s.notify(r, err)
		s.backToGrid(w, r)
		return
	}
	if !s.sessions.ShowResults(sid, out) {
		logpkg.FromContext(r.Context(), s.logger).Debug("Discarded stale search results",
			zap.String("query", out.Query.Describe()), zap.Uint64("seq", out.Seq))
	}
	s.backToGrid(w, r)
}

// readUpload reads the "image" multipart file within the upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidQuery, tooLarge.Limit)
		}
		return "", nil, fmt.Errorf("%w: %w", domain.ErrEmptyQuery, err)
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		return "", nil, domain.ErrEmptyQuery
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return hdr.Filename, data, nil
}

// backToGrid redirects to the grid after a form post.
func (s *Server) backToGrid(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// notify stores a one-shot notice for err on the session.
func (s *Server) notify(r *http.Request, err error) {
	logpkg.FromContext(r.Context(), s.logger).Debug("UI action rejected", zap.Error(err))
	s.sessions.Notify(SessionID(r.Context()), noticeFor(err))
}

// noticeFor maps an error to the text shown to the user.
func noticeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadySelected):
		return "The keyframe is already selected!"
	case errors.Is(err, domain.ErrConfirmationRequired):
		return "Tick the confirmation box to delete all selected keyframes."
	case errors.Is(err, domain.ErrNotFound):
		return "Keyframe not found."
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Nothing to search for."
	case errors.Is(err, domain.ErrInvalidFilename):
		return "Enter a file name for the export."
	case errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidDirection):
		return "Invalid request: " + err.Error()
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "The video service is unavailable, try again later."
	default:
		return "Something went wrong."
	}
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", exportuc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
