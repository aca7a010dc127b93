package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sqlgate/sqlgate/pkg/httputil"
	"github.com/sqlgate/sqlgate/pkg/metrics"
)

// DefaultPrimaryKeyColumn is the record-id column used for single-record
// GET/PATCH/DELETE unless configured otherwise.
const DefaultPrimaryKeyColumn = "id"

// Server translates REST requests into parameterized SQL and executes them
// against named backends supplied by a Resolver.
type Server struct {
	router   *httputil.Router
	resolver Resolver
	logger   *zap.Logger
	pkColumn string
	version  string
}

// Option configures a Server.
type Option func(*Server)

// WithPrimaryKeyColumn overrides the primary-key column convention.
func WithPrimaryKeyColumn(column string) Option {
	return func(s *Server) { s.pkColumn = column }
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version reported by the capability descriptor.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// NewServer creates a gateway server over the given resolver.
func NewServer(resolver Resolver, opts ...Option) (*Server, error) {
	s := &Server{
		router:   httputil.NewRouter(),
		resolver: resolver,
		logger:   zap.NewNop(),
		pkColumn: DefaultPrimaryKeyColumn,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := sanitizeIdent(s.pkColumn); err != nil {
		return nil, fmt.Errorf("primary key column: %w", err)
	}

	s.registerHandlers()
	return s, nil
}

// AddMiddleware registers middleware on the underlying router. The auth gate
// belongs here so it runs before any translation.
func (s *Server) AddMiddleware(mw httputil.Middleware, additional ...httputil.Middleware) {
	s.router.Use(mw, additional...)
}

func (s *Server) registerHandlers() {
	s.router.Handle("GET /{$}", http.HandlerFunc(s.handleRoot))
	s.router.Handle("GET /healthz", http.HandlerFunc(s.handleHealthz))
	s.router.Handle("GET /databases", http.HandlerFunc(s.handleDatabases))

	s.router.Handle("GET /db/{database}/rest/{table}", http.HandlerFunc(s.handleList))
	s.router.Handle("GET /db/{database}/rest/{table}/{id}", http.HandlerFunc(s.handleGet))
	s.router.Handle("POST /db/{database}/rest/{table}", http.HandlerFunc(s.handleCreate))
	s.router.Handle("PATCH /db/{database}/rest/{table}/{id}", http.HandlerFunc(s.handleUpdate))
	s.router.Handle("PATCH /db/{database}/rest/{table}", http.HandlerFunc(s.handleMissingID))
	s.router.Handle("DELETE /db/{database}/rest/{table}/{id}", http.HandlerFunc(s.handleDelete))
	s.router.Handle("DELETE /db/{database}/rest/{table}", http.HandlerFunc(s.handleMissingID))

	s.router.Handle("POST /db/{database}/query", http.HandlerFunc(s.handleRawQuery))

	// Anything else under /db/ is missing a database or table segment.
	for _, method := range []string{"GET", "POST", "PATCH", "DELETE"} {
		s.router.Handle(method+" /db/", http.HandlerFunc(s.handleBadDBPath))
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"name":    "sqlgate",
		"version": s.version,
		"endpoints": []string{
			"GET /databases",
			"GET|POST|PATCH|DELETE /db/{database}/rest/{table}[/{id}]",
			"POST /db/{database}/query",
		},
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"databases": s.resolver.Names(),
	})
}

func (s *Server) handleBadDBPath(w http.ResponseWriter, r *http.Request) {
	httputil.Error(w, http.StatusBadRequest, "database and table name required")
}

func (s *Server) handleMissingID(w http.ResponseWriter, r *http.Request) {
	httputil.Error(w, http.StatusBadRequest, "record id required")
}

// resolveBackend binds the request's database name to a configured backend.
// A miss answers 404 with the full list of configured names.
func (s *Server) resolveBackend(w http.ResponseWriter, r *http.Request) (Backend, string, bool) {
	name := r.PathValue("database")
	if name == "" {
		httputil.Error(w, http.StatusBadRequest, "database name required")
		return nil, "", false
	}

	backend, err := s.resolver.Resolve(name)
	if err != nil {
		httputil.JSON(w, http.StatusNotFound, map[string]any{
			"error":               fmt.Sprintf("database %q not found", name),
			"available_databases": s.resolver.Names(),
		})
		return nil, "", false
	}
	return backend, name, true
}

// execute runs the statement and writes the envelope. Backend failures are
// the only 500s the gateway produces.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, backend Backend, database, operation string, stmt *Statement) {
	start := time.Now()
	result, err := backend.Execute(r.Context(), stmt.SQL, stmt.Args)
	metrics.QueryDuration.WithLabelValues(database, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(database).Inc()
		s.logger.Error("backend execution failed",
			zap.String("database", database),
			zap.String("operation", operation),
			zap.Error(err))
		httputil.JSON(w, http.StatusInternalServerError, formatError(err))
		return
	}

	status := http.StatusOK
	if operation == "create" {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, formatResult(result))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	params, err := parseQueryParams(r.URL.RawQuery)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	stmt, err := buildList(r.PathValue("table"), params)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s.execute(w, r, backend, database, "list", stmt)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	stmt, err := buildGet(r.PathValue("table"), s.pkColumn, r.PathValue("id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s.execute(w, r, backend, database, "get", stmt)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	b, err := decodeBody(r.Body)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	stmt, err := buildInsert(r.PathValue("table"), b)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s.execute(w, r, backend, database, "create", stmt)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	b, err := decodeBody(r.Body)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	stmt, err := buildUpdate(r.PathValue("table"), s.pkColumn, r.PathValue("id"), b)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s.execute(w, r, backend, database, "update", stmt)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	stmt, err := buildDelete(r.PathValue("table"), s.pkColumn, r.PathValue("id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	s.execute(w, r, backend, database, "delete", stmt)
}

// rawQueryRequest is the body of the escape-hatch endpoint.
type rawQueryRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// handleRawQuery executes caller-supplied SQL text verbatim against the
// resolved backend. The statement is deliberately not sanitized or
// translated; the bearer token is the only protection on this path. The
// result is returned directly, without the CRUD envelope.
func (s *Server) handleRawQuery(w http.ResponseWriter, r *http.Request) {
	backend, database, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	var req rawQueryRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	if req.Query == "" {
		httputil.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	result, err := backend.Execute(r.Context(), req.Query, req.Params)
	metrics.QueryDuration.WithLabelValues(database, "raw").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(database).Inc()
		s.logger.Error("raw query failed", zap.String("database", database), zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Start serves HTTP on addr until the process is signalled or Shutdown is
// called.
func (s *Server) Start(addr string) error {
	s.logger.Info("server starting", zap.String("addr", addr))
	return s.router.ListenAndServe(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.router.Shutdown(ctx)
}

// ServeHTTP dispatches through the router with all middleware applied.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
