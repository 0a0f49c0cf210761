package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/domain"
	"github.com/kailas-cloud/kfsearch/internal/metrics"
	cataloguc "github.com/kailas-cloud/kfsearch/internal/usecase/catalog"
	exportuc "github.com/kailas-cloud/kfsearch/internal/usecase/export"
	healthuc "github.com/kailas-cloud/kfsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/kfsearch/internal/usecase/search"
	selectionuc "github.com/kailas-cloud/kfsearch/internal/usecase/selection"
	sessionuc "github.com/kailas-cloud/kfsearch/internal/usecase/session"
)

// ErrorCode is the machine-readable code of a JSON error response.
type ErrorCode string

// JSON error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeNotFound             ErrorCode = "not_found"
	CodeEmptyQuery           ErrorCode = "empty_query"
	CodeInvalidQuery         ErrorCode = "invalid_query"
	CodeInvalidMode          ErrorCode = "invalid_mode"
	CodeInvalidDirection     ErrorCode = "invalid_direction"
	CodeAlreadySelected      ErrorCode = "already_selected"
	CodeConfirmationRequired ErrorCode = "confirmation_required"
	CodeInvalidFilename      ErrorCode = "invalid_filename"
	CodeBackendUnavailable   ErrorCode = "backend_unavailable"
	CodeInternalError        ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options tunes the UI server.
type Options struct {
	// AssetBaseURL prefixes keyframe images and the /view and /vid links.
	AssetBaseURL   string
	MapKeyframes   bool
	DefaultK       int
	MaxUploadBytes int64
}

// Server is the keyframe search UI and its JSON mirror.
type Server struct {
	catalog   *cataloguc.Service
	search    *searchuc.Service
	selection *selectionuc.Service
	export    *exportuc.Service
	sessions  *sessionuc.Service
	health    *healthuc.Service
	opts      Options
	logger    *zap.Logger

	actions       *actionTable
	handlers      map[string]http.HandlerFunc
	tpl           *template.Template
	errorHandlers []errorHandler
}

// NewServer creates the UI server.
func NewServer(
	catalog *cataloguc.Service,
	search *searchuc.Service,
	selection *selectionuc.Service,
	export *exportuc.Service,
	sessions *sessionuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	opts.AssetBaseURL = strings.TrimRight(opts.AssetBaseURL, "/")

	actions, err := newActionTable(uiActions)
	if err != nil {
		return nil, err
	}

	s := &Server{
		catalog:   catalog,
		search:    search,
		selection: selection,
		export:    export,
		sessions:  sessions,
		health:    health,
		opts:      opts,
		logger:    logger,
		actions:   actions,
	}
	s.handlers = map[string]http.HandlerFunc{
		ActMode:          s.SwitchMode,
		ActPage:          s.GoToPage,
		ActSearchID:      s.SearchByID,
		ActSearchText:    s.SearchByText,
		ActSearchUpload:  s.SearchByUpload,
		ActSimilar:       s.Similar,
		ActSelectAdd:     s.SelectAdd,
		ActSelectAddPath: s.SelectAddPath,
		ActSelectRemove:  s.SelectRemove,
		ActSelectMove:    s.SelectMove,
		ActSelectClear:   s.SelectClear,
		ActView:          s.OpenView,
		ActClip:          s.OpenClip,
		ActClipLegacy:    s.OpenClipLegacy,
		ActExportCSV:     s.ExportCSV,
		ActLegacyAdd:     s.LegacyAdd,
		ActLegacyRemove:  s.LegacyRemove,
		ActLegacyMove:    s.LegacyMove,
		ActLegacyExport:  s.LegacyExportCSV,
		ActSessionReset:  s.ResetSession,
	}
	for _, a := range actions.order {
		if s.handlers[a.Name] == nil {
			return nil, fmt.Errorf("action %q has no handler", a.Name)
		}
	}

	if s.tpl, err = s.parseTemplates(); err != nil {
		return nil, err
	}

	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeEmptyQuery),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidMode, http.StatusBadRequest, CodeInvalidMode),
		sentinelHandler(domain.ErrInvalidDirection, http.StatusBadRequest, CodeInvalidDirection),
		sentinelHandler(domain.ErrAlreadySelected, http.StatusConflict, CodeAlreadySelected),
		sentinelHandler(domain.ErrConfirmationRequired,
			http.StatusPreconditionRequired, CodeConfirmationRequired),
		sentinelHandler(domain.ErrInvalidFilename, http.StatusBadRequest, CodeInvalidFilename),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, CodeBackendUnavailable),
	}
	return s, nil
}

// Register mounts the UI actions, the JSON API, /health and /metrics on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.Index)
	for _, a := range s.actions.order {
		r.Method(a.Method, a.Pattern, s.handlers[a.Name])
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/selection", s.APIListSelection)
		r.Post("/selection", s.APIAddSelection)
		r.Delete("/selection", s.APIClearSelection)
		r.Delete("/selection/{id}", s.APIRemoveSelection)
		r.Post("/selection/{id}/move", s.APIMoveSelection)
		r.Get("/search", s.APISearch)
		r.Get("/export.csv", s.APIExportCSV)
	})
	r.Post("/api/catalog/reload", s.APIReloadCatalog)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// domainSentinels lists the errors whose text is safe to show to clients.
var domainSentinels = []error{
	domain.ErrNotFound,
	domain.ErrEmptyQuery,
	domain.ErrInvalidQuery,
	domain.ErrInvalidMode,
	domain.ErrInvalidDirection,
	domain.ErrAlreadySelected,
	domain.ErrConfirmationRequired,
	domain.ErrInvalidFilename,
	domain.ErrBackendUnavailable,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range domainSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
