// Package server exposes add-on generation and concept analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/mod/semver"

	"github.com/insushim/iswaddon"
	"github.com/insushim/iswaddon/internal/concept"
	"github.com/insushim/iswaddon/internal/store"
)

type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	// ConceptRate and AddonRate are limiter formatted rates, e.g. "10-M".
	// Empty disables the limit.
	ConceptRate string
	AddonRate   string
}

type Option func(*Server)

// WithExpander enables the concept analysis endpoint.
func WithExpander(e *concept.Expander) Option {
	return func(s *Server) { s.expander = e }
}

// WithStore records every generated add-on and enables the download
// endpoints.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

type Server struct {
	cfg      Config
	logger   *log.Logger
	expander *concept.Expander
	store    *store.Store
	validate *validator.Validate
	upgrader websocket.Upgrader
	newID    func() string
	handler  http.Handler
}

func New(cfg Config, logger *log.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		validate: newValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	conceptLimit, err := rateLimit(cfg.ConceptRate, logger)
	if err != nil {
		return nil, fmt.Errorf("concept rate: %w", err)
	}
	addonLimit, err := rateLimit(cfg.AddonRate, logger)
	if err != nil {
		return nil, fmt.Errorf("addon rate: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger.StandardLog(), NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	})
	r.Route("/api", func(r chi.Router) {
		r.With(addonLimit).Post("/generate/addon", s.handleGenerate)
		r.With(addonLimit).Get("/generate/addon/ws", s.handleGenerateStream)
		r.With(conceptLimit).Post("/generate/ai-concept", s.handleConcept)
		r.Get("/addons", s.handleListAddons)
		r.Get("/addons/{id}/{part}", s.handleDownload)
	})
	s.handler = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		Addr:              s.cfg.Addr,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type errorResponse struct {
	Error      string    `json:"error"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"requestId"`
	Field      string    `json:"field,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Failures   []Failure `json:"failures,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error(resp.Error, "details", resp.Details, "requestId", resp.RequestID)
	}
	writeJSON(w, status, resp)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("namespace", func(fl validator.FieldLevel) bool {
		return iswaddon.ValidNamespace(fl.Field().String())
	})
	_ = v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
		return semver.IsValid("v" + strings.TrimPrefix(fl.Field().String(), "v"))
	})
	return v
}

// validationError describes the first failed field of a validator error.
func validationError(err error) errorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errorResponse{Error: "invalid request", Details: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	var details string
	switch fe.Tag() {
	case "required":
		details = field + " is required"
	case "namespace":
		details = "namespace must start with a lowercase letter and contain only lowercase letters, digits and underscores"
	case "version":
		details = field + " must be a version like 1.0.0"
	default:
		details = fmt.Sprintf("%s failed %s %s", field, fe.Tag(), fe.Param())
	}
	return errorResponse{Error: "invalid request", Details: strings.TrimSpace(details), Field: field}
}
