package pgx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlgate/sqlgate/pkg/rest"
)

// Registry manages the named connection pools the gateway can route to. It
// is populated once at startup and read-only afterwards; concurrent request
// handling needs no further coordination.
type Registry struct {
	backends map[string]*Backend
	mu       sync.RWMutex
}

// Database describes one named connection configuration.
type Database struct {
	Config     *pgxpool.Config // Takes precedence over ConnString
	Name       string
	ConnString string // Used if Config is nil
}

var (
	ErrDatabaseNotFound      = errors.New("database not found")
	ErrDatabaseAlreadyExists = errors.New("database already exists")
)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]*Backend)}
}

// Add creates a connection pool for cfg and registers it under cfg.Name.
// The pool is pinged so misconfigured databases fail at startup, not on the
// first request.
func (r *Registry) Add(ctx context.Context, cfg Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Name == "" {
		return errors.New("database name must not be empty")
	}
	if _, ok := r.backends[cfg.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDatabaseAlreadyExists, cfg.Name)
	}

	pool, err := r.createPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database %q: %w", cfg.Name, err)
	}

	r.backends[cfg.Name] = NewBackend(pool)
	return nil
}

// Resolve returns the backend registered under name. It implements
// rest.Resolver.
func (r *Registry) Resolve(name string) (rest.Backend, error) {
	r.mu.RLock()
	backend, ok := r.backends[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDatabaseNotFound, name)
	}
	return backend, nil
}

// Names returns all configured database names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes all connection pools.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.backends {
		b.pool.Close()
	}
	r.backends = make(map[string]*Backend)
}

func (r *Registry) createPool(ctx context.Context, cfg Database) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	switch {
	case cfg.Config != nil:
		pool, err = pgxpool.NewWithConfig(ctx, cfg.Config)
	case cfg.ConnString != "":
		pool, err = pgxpool.New(ctx, cfg.ConnString)
	default:
		return nil, errors.New("either Config or ConnString must be provided")
	}

	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping connection: %w", err)
	}

	return pool, nil
}
