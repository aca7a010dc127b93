package pgx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no placeholders",
			in:   "SELECT * FROM users",
			want: "SELECT * FROM users",
		},
		{
			name: "single placeholder",
			in:   "SELECT * FROM users WHERE id = ?",
			want: "SELECT * FROM users WHERE id = $1",
		},
		{
			name: "multiple placeholders number sequentially",
			in:   "INSERT INTO users (name, age) VALUES (?, ?)",
			want: "INSERT INTO users (name, age) VALUES ($1, $2)",
		},
		{
			name: "update with trailing where",
			in:   "UPDATE users SET name = ?, age = ? WHERE id = ?",
			want: "UPDATE users SET name = $1, age = $2 WHERE id = $3",
		},
		{
			name: "question mark inside string literal is untouched",
			in:   "SELECT * FROM faq WHERE question = '?' AND id = ?",
			want: "SELECT * FROM faq WHERE question = '?' AND id = $1",
		},
		{
			name: "empty statement",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(tt.in))
		})
	}
}

func TestRegistryResolveMiss(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("DB_NOPE")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
	assert.Empty(t, r.Names())
}

func TestRegistryAddValidation(t *testing.T) {
	r := NewRegistry()
	ctx := t.Context()

	err := r.Add(ctx, Database{Name: ""})
	assert.Error(t, err)

	err = r.Add(ctx, Database{Name: "main"})
	assert.Error(t, err, "a database without Config or ConnString must be rejected")

	err = r.Add(ctx, Database{Name: "main", ConnString: "not a conn string ;;;"})
	assert.Error(t, err)
}
