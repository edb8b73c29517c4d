package httpsource

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
)

const maxSubmissionBytes = 1 << 20

// StatusError carries the HTTP status a guard or collaborator wants returned.
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

// StatusCode defaults to 500 when Code is unset.
func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// HandlerOption configures the handler built by NewHandler.
type HandlerOption func(*handler)

// WithAliasValidator serves alias checks. Without one every well formed
// alias route answers 404.
func WithAliasValidator(v sources.AliasValidator) HandlerOption {
	return func(h *handler) {
		h.aliases = v
	}
}

// WithSink accepts submissions. Without one POST requests answers 404.
func WithSink(sink sources.Sink) HandlerOption {
	return func(h *handler) {
		h.sink = sink
	}
}

// WithGuard runs before every route. A non-nil error rejects the request,
// with the status of a StatusError or 403 otherwise.
func WithGuard(guard func(*http.Request) error) HandlerOption {
	return func(h *handler) {
		h.guard = guard
	}
}

// WithHandlerLogger sets the logger used for failed collaborator calls.
func WithHandlerLogger(logger zerolog.Logger) HandlerOption {
	return func(h *handler) {
		h.logger = logger
	}
}

type handler struct {
	catalog sources.Catalog
	aliases sources.AliasValidator
	sink    sources.Sink
	guard   func(*http.Request) error
	logger  zerolog.Logger
}

// NewHandler serves catalog over the routes the Client consumes.
func NewHandler(catalog sources.Catalog, opts ...HandlerOption) http.Handler {
	h := &handler{catalog: catalog, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /divisions", h.divisions)
	mux.HandleFunc("GET /divisions/{id}/site-templates", h.siteTemplates)
	mux.HandleFunc("GET /content-types/{id}/fields", h.fields)
	mux.HandleFunc("GET /aliases/{alias}", h.alias)
	mux.HandleFunc("POST /requests", h.save)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.guard != nil {
			if err := h.guard(r); err != nil {
				code := http.StatusForbidden
				var statusErr StatusError
				if errors.As(err, &statusErr) {
					code = statusErr.StatusCode()
				}
				http.Error(w, http.StatusText(code), code)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

func (h *handler) divisions(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.Divisions(r.Context())
	h.respond(w, r, out, err)
}

func (h *handler) siteTemplates(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.SiteTemplates(r.Context(), r.PathValue("id"))
	h.respond(w, r, out, err)
}

func (h *handler) fields(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.Fields(r.Context(), r.PathValue("id"))
	h.respond(w, r, out, err)
}

func (h *handler) alias(w http.ResponseWriter, r *http.Request) {
	if h.aliases == nil {
		http.NotFound(w, r)
		return
	}
	valid, err := h.aliases.ValidateAlias(r.Context(), r.PathValue("alias"))
	h.respond(w, r, struct {
		Valid bool `json:"valid"`
	}{valid}, err)
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		http.NotFound(w, r)
		return
	}
	var sub model.Submission
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSubmissionBytes))
	if err := dec.Decode(&sub); err != nil {
		http.Error(w, "invalid submission: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(sub.Division) == "" || strings.TrimSpace(sub.SiteTemplate) == "" || strings.TrimSpace(sub.ContentTypeID) == "" {
		http.Error(w, "invalid submission: division, site template and content type are required", http.StatusBadRequest)
		return
	}
	if err := h.sink.Save(r.Context(), sub); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var statusErr StatusError
	switch {
	case errors.As(err, &statusErr):
		code = statusErr.StatusCode()
	case errors.Is(err, sources.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, sources.ErrConflict):
		code = http.StatusConflict
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("site request route failed")
	}
	http.Error(w, http.StatusText(code), code)
}
