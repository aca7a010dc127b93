package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/sqlgate/sqlgate/pkg/httputil/middleware"
)

const testToken = "s3cret"

type fakeBackend struct {
	lastSQL  string
	lastArgs []any
	called   int
	result   *Result
	err      error
}

func (f *fakeBackend) Execute(ctx context.Context, sql string, args []any) (*Result, error) {
	f.called++
	f.lastSQL = sql
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Result{Rows: []map[string]any{}, Meta: Meta{Command: "SELECT"}}, nil
}

type fakeResolver struct {
	backends map[string]*fakeBackend
}

func (f *fakeResolver) Resolve(name string) (Backend, error) {
	b, ok := f.backends[name]
	if !ok {
		return nil, assert.AnError
	}
	return b, nil
}

func (f *fakeResolver) Names() []string {
	names := make([]string, 0, len(f.backends))
	for name := range f.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newTestServer(t *testing.T, backends map[string]*fakeBackend) *Server {
	t.Helper()
	server, err := NewServer(&fakeResolver{backends: backends})
	require.NoError(t, err)
	server.AddMiddleware(mw.VerifyBearerToken(&mw.BearerAuthConfig{Token: testToken}))
	return server
}

func doRequest(server *Server, method, target, body string, authorized bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestAuthGate(t *testing.T) {
	backend := &fakeBackend{}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	t.Run("missing header is rejected before translation", func(t *testing.T) {
		w := doRequest(server, "GET", "/db/DB_USERS/rest/users", "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Unauthorized", body["error"])
		assert.Zero(t, backend.called, "backend must not run without auth")
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/db/DB_USERS/rest/users", nil)
		req.Header.Set("Authorization", "Bearer "+testToken+"x")
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, backend.called)
	})

	t.Run("databases endpoint requires auth too", func(t *testing.T) {
		w := doRequest(server, "GET", "/databases", "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleDatabases(t *testing.T) {
	server := newTestServer(t, map[string]*fakeBackend{
		"DB_USERS":  {},
		"DB_ORDERS": {},
	})

	w := doRequest(server, "GET", "/databases", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success   bool     `json:"success"`
		Databases []string `json:"databases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []string{"DB_ORDERS", "DB_USERS"}, body.Databases)
}

func TestUnknownDatabase(t *testing.T) {
	server := newTestServer(t, map[string]*fakeBackend{
		"DB_USERS":  {},
		"DB_ORDERS": {},
	})

	w := doRequest(server, "GET", "/db/DB_NOPE/rest/users", "", true)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error              string   `json:"error"`
		AvailableDatabases []string `json:"available_databases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "DB_NOPE")
	assert.Equal(t, []string{"DB_ORDERS", "DB_USERS"}, body.AvailableDatabases)
}

func TestHandleList(t *testing.T) {
	backend := &fakeBackend{result: &Result{
		Rows: []map[string]any{{"id": float64(1), "name": "John"}},
		Meta: Meta{RowsAffected: 1, Command: "SELECT"},
	}}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	w := doRequest(server, "GET", "/db/DB_USERS/rest/users?age=25&sort_by=name&order=desc&limit=10&offset=20", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "SELECT * FROM users WHERE age = ? ORDER BY name DESC LIMIT 10 OFFSET 20", backend.lastSQL)
	assert.Equal(t, []any{"25"}, backend.lastArgs)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	require.Len(t, envelope.Results, 1)
	assert.Equal(t, "John", envelope.Results[0]["name"])
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, int64(1), envelope.Meta.RowsAffected)
}

func TestHandleListBadQuery(t *testing.T) {
	backend := &fakeBackend{}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	for _, target := range []string{
		"/db/DB_USERS/rest/users?limit=ten",
		"/db/DB_USERS/rest/users?sort_by=name&order=sideways",
		"/db/DB_USERS/rest/users?sort_by=name%3B--",
	} {
		w := doRequest(server, "GET", target, "", true)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.Zero(t, backend.called)
}

func TestHandleGet(t *testing.T) {
	backend := &fakeBackend{}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	w := doRequest(server, "GET", "/db/DB_USERS/rest/users/123", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", backend.lastSQL)
	assert.Equal(t, []any{"123"}, backend.lastArgs)
}

func TestHandleCreate(t *testing.T) {
	backend := &fakeBackend{result: &Result{Meta: Meta{RowsAffected: 1, Command: "INSERT"}}}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	t.Run("translates body to insert", func(t *testing.T) {
		w := doRequest(server, "POST", "/db/DB_USERS/rest/users", `{"name": "John", "age": 30}`, true)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "INSERT INTO users (name, age) VALUES (?, ?)", backend.lastSQL)
		assert.Equal(t, []any{"John", int64(30)}, backend.lastArgs)
	})

	t.Run("empty body is a client error", func(t *testing.T) {
		called := backend.called
		w := doRequest(server, "POST", "/db/DB_USERS/rest/users", `{}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, called, backend.called, "backend must not be touched")
	})

	t.Run("bad body column is a client error", func(t *testing.T) {
		w := doRequest(server, "POST", "/db/DB_USERS/rest/users", `{"na me": 1}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleUpdate(t *testing.T) {
	backend := &fakeBackend{}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	t.Run("translates body to update", func(t *testing.T) {
		w := doRequest(server, "PATCH", "/db/DB_USERS/rest/users/123", `{"name": "Jane"}`, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "UPDATE users SET name = ? WHERE id = ?", backend.lastSQL)
		assert.Equal(t, []any{"Jane", "123"}, backend.lastArgs)
	})

	t.Run("empty body is a client error before the backend", func(t *testing.T) {
		called := backend.called
		w := doRequest(server, "PATCH", "/db/DB_USERS/rest/users/123", `{}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, called, backend.called)
	})

	t.Run("missing id is a client error", func(t *testing.T) {
		w := doRequest(server, "PATCH", "/db/DB_USERS/rest/users", `{"name": "Jane"}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	backend := &fakeBackend{}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	w := doRequest(server, "DELETE", "/db/DB_USERS/rest/users/123", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DELETE FROM users WHERE id = ?", backend.lastSQL)
	assert.Equal(t, []any{"123"}, backend.lastArgs)

	w = doRequest(server, "DELETE", "/db/DB_USERS/rest/users", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackendFailure(t *testing.T) {
	backend := &fakeBackend{err: assert.AnError}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	w := doRequest(server, "GET", "/db/DB_USERS/rest/users", "", true)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.NotEmpty(t, envelope.Error)
	assert.Nil(t, envelope.Results)
}

func TestHandleRawQuery(t *testing.T) {
	backend := &fakeBackend{result: &Result{
		Rows: []map[string]any{{"count": float64(42)}},
		Meta: Meta{Command: "SELECT"},
	}}
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": backend})

	t.Run("executes statement verbatim", func(t *testing.T) {
		w := doRequest(server, "POST", "/db/DB_USERS/query",
			`{"query": "SELECT count(*) FROM users WHERE age > ?", "params": [21]}`, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "SELECT count(*) FROM users WHERE age > ?", backend.lastSQL)
		assert.Equal(t, []any{float64(21)}, backend.lastArgs)

		var result Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		require.Len(t, result.Rows, 1)
	})

	t.Run("missing query is a client error", func(t *testing.T) {
		w := doRequest(server, "POST", "/db/DB_USERS/query", `{"params": []}`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid JSON is a client error", func(t *testing.T) {
		w := doRequest(server, "POST", "/db/DB_USERS/query", `{`, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleRoot(t *testing.T) {
	server := newTestServer(t, map[string]*fakeBackend{"DB_USERS": {}})

	w := doRequest(server, "GET", "/", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sqlgate", body["name"])
}

func TestCustomPrimaryKeyColumn(t *testing.T) {
	backend := &fakeBackend{}
	server, err := NewServer(
		&fakeResolver{backends: map[string]*fakeBackend{"DB_USERS": backend}},
		WithPrimaryKeyColumn("user_id"),
	)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/db/DB_USERS/rest/users/7", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SELECT * FROM users WHERE user_id = ?", backend.lastSQL)
}

func TestInvalidPrimaryKeyColumn(t *testing.T) {
	_, err := NewServer(
		&fakeResolver{backends: map[string]*fakeBackend{}},
		WithPrimaryKeyColumn("id; DROP TABLE x"),
	)
	assert.Error(t, err)
}
