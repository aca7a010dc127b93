package httputil

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
)

// Middleware defines a function type that represents a middleware. Middleware
// functions wrap an http.Handler to modify or enhance its behavior.
type Middleware func(http.Handler) http.Handler

// RouterOptions is a function type that represents options to configure a Router.
type RouterOptions func(*Router)

// Router is the main structure for handling HTTP routing and middleware.
// Middleware is router-wide: it wraps the whole mux once at serve time, so
// middleware registered on a sub-router applies to every route.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	parent     *Router
	prefix     string
	middleware []Middleware
	mu         sync.RWMutex
}

// NewRouter creates a new instance of Router with the given options.
func NewRouter(opts ...RouterOptions) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithServerOptions returns a RouterOptions function that sets custom http.Server options.
func WithServerOptions(opts ...func(*http.Server)) RouterOptions {
	return func(r *Router) {
		for _, opt := range opts {
			opt(r.server)
		}
	}
}

// Use adds one or more middleware to the router. Middleware functions are
// applied in the order they are added.
func (r *Router) Use(mw Middleware, additional ...Middleware) {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.middleware = append(root.middleware, mw)
	if len(additional) > 0 {
		root.middleware = append(root.middleware, additional...)
	}
}

// Group creates a new sub-router with a specified prefix. The sub-router
// shares the parent's mux, server, and middleware chain.
func (r *Router) Group(prefix string) *Router {
	return &Router{
		mux:    r.mux,
		server: r.server,
		parent: r,
		prefix: r.prefix + prefix,
	}
}

func (r *Router) root() *Router {
	root := r
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Handle registers an HTTP handler function for a given method and pattern as
// introduced in [Routing Enhancements for Go 1.22](https://go.dev/blog/routing-enhancements).
// The handler `METHOD /pattern` on a route group with a /prefix resolves to
// `METHOD /prefix/pattern`.
func (r *Router) Handle(methodPattern string, handler http.Handler) {
	parts := strings.SplitN(methodPattern, " ", 2)
	if len(parts) != 2 {
		log.Fatalf("invalid method pattern: %s", methodPattern)
	}
	method, pattern := parts[0], parts[1]

	r.mu.RLock()
	defer r.mu.RUnlock()

	r.mux.Handle(fmt.Sprintf("%s %s%s", method, r.prefix, pattern), handler)
}

// ListenAndServe starts the HTTP server on addr with all registered
// middleware applied.
func (r *Router) ListenAndServe(addr string) error {
	r.server.Addr = addr
	r.server.Handler = r.applyMiddleware()
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// ServeHTTP makes the router usable directly as an http.Handler, mainly for
// tests.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.applyMiddleware().ServeHTTP(w, req)
}

// applyMiddleware applies middleware to the http.Handler and returns a new http.Handler.
func (r *Router) applyMiddleware() http.Handler {
	root := r.root()
	root.mu.RLock()
	defer root.mu.RUnlock()

	var handler http.Handler = root.mux
	for i := len(root.middleware) - 1; i >= 0; i-- {
		handler = root.middleware[i](handler)
	}
	return handler
}
