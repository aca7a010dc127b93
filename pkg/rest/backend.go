package rest

import "context"

// Backend executes a single parameterized statement against one configured
// database. Statements use ? placeholders; implementations rebind to their
// driver's placeholder syntax if needed.
type Backend interface {
	Execute(ctx context.Context, sql string, args []any) (*Result, error)
}

// Result is the outcome of one statement execution.
type Result struct {
	Rows []map[string]any `json:"results"`
	Meta Meta             `json:"meta"`
}

// Meta carries backend-reported execution metadata, passed through to clients
// opaquely.
type Meta struct {
	Duration     float64 `json:"duration_ms"`
	RowsAffected int64   `json:"rows_affected"`
	Command      string  `json:"command,omitempty"`
}

// Resolver looks up a named backend. A miss reports the full set of
// configured names so clients can discover what exists.
type Resolver interface {
	Resolve(name string) (Backend, error)
	Names() []string
}
