package rest

// Envelope is the normalized response shape for translated CRUD endpoints.
// Exactly one of Results/Error is populated per outcome.
type Envelope struct {
	Success            bool             `json:"success"`
	Results            []map[string]any `json:"results,omitempty"`
	Meta               *Meta            `json:"meta,omitempty"`
	Error              string           `json:"error,omitempty"`
	AvailableDatabases []string         `json:"available_databases,omitempty"`
}

// successEnvelope always carries a results array, even when empty, so
// clients can iterate unconditionally.
type successEnvelope struct {
	Success bool             `json:"success"`
	Results []map[string]any `json:"results"`
	Meta    *Meta            `json:"meta,omitempty"`
}

// formatResult wraps a backend result in the success envelope.
func formatResult(res *Result) successEnvelope {
	rows := res.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return successEnvelope{
		Success: true,
		Results: rows,
		Meta:    &res.Meta,
	}
}

// formatError wraps a failure. Only the message crosses the boundary; raw
// backend internals stay server-side.
func formatError(err error) Envelope {
	return Envelope{
		Success: false,
		Error:   err.Error(),
	}
}
