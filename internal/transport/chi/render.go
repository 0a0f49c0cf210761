package chi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
	"github.com/kailas-cloud/kfsearch/internal/domain/search/mode"
	logpkg "github.com/kailas-cloud/kfsearch/internal/logger"
	sessionuc "github.com/kailas-cloud/kfsearch/internal/usecase/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// placeholderSrc is shown until a card scrolls into view.
const placeholderSrc = "data:image/gif;base64,R0lGODlhAQABAAAAACH5BAEKAAEALAAAAAABAAEAAAICTAEAOw=="

func (s *Server) parseTemplates() (*template.Template, error) {
	return template.New("page.html").Funcs(template.FuncMap{
		"action": s.actions.URL,
		"asset": func(path string) string {
			return s.opts.AssetBaseURL + image.AssetURL(path)
		},
		"placeholder": func() template.URL { return placeholderSrc },
		"score": func(r image.Record) string {
			if v, ok := r.Score(); ok {
				return strconv.FormatFloat(v, 'f', 3, 64)
			}
			return ""
		},
		"keyframe": image.ParsePath,
		"selected": func(set map[int]struct{}, id int) bool {
			_, ok := set[id]
			return ok
		},
		"modes": func() []mode.Mode { return mode.All },
		"inc":   func(i int) int { return i + 1 },
		"dec":   func(i int) int { return i - 1 },
	}).ParseFS(templateFS, "templates/*.html")
}

// render writes the grid page for v. The page is buffered so a template error
// still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, v sessionuc.View) {
	var buf bytes.Buffer
	if err := s.tpl.Execute(&buf, v); err != nil {
		logpkg.FromContext(r.Context(), s.logger).Error("Template render failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
