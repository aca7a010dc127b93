// Package pgx implements the gateway's database backend and registry on top
// of jackc/pgx connection pools.
package pgx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlgate/sqlgate/pkg/rest"
)

// Backend executes statements against a single pgx pool. It implements
// rest.Backend.
type Backend struct {
	pool *pgxpool.Pool
}

func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Execute runs one parameterized statement and collects all rows plus
// execution metadata. The statement arrives with ? placeholders per the
// gateway's SQL contract and is rebound to Postgres $n syntax first.
func (b *Backend) Execute(ctx context.Context, sql string, args []any) (*rest.Result, error) {
	start := time.Now()

	rows, err := b.pool.Query(ctx, Rebind(sql), args...)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("read rows: %w", rows.Err())
	}

	tag := rows.CommandTag()
	command := ""
	if fields := strings.Fields(tag.String()); len(fields) > 0 {
		command = fields[0]
	}
	return &rest.Result{
		Rows: results,
		Meta: rest.Meta{
			Duration:     float64(time.Since(start).Microseconds()) / 1000.0,
			RowsAffected: tag.RowsAffected(),
			Command:      command,
		},
	}, nil
}

// Rebind rewrites ? placeholders into Postgres positional $n placeholders.
// Question marks inside single-quoted string literals are left alone.
func Rebind(sql string) string {
	var out strings.Builder
	out.Grow(len(sql) + 8)

	n := 0
	inString := false
	for _, r := range sql {
		switch {
		case r == '\'':
			inString = !inString
			out.WriteRune(r)
		case r == '?' && !inString:
			n++
			fmt.Fprintf(&out, "$%d", n)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fieldDescriptions := rows.FieldDescriptions()
	columnNames := make([]string, len(fieldDescriptions))
	for i, fd := range fieldDescriptions {
		columnNames[i] = string(fd.Name)
	}

	var result []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			rowMap[name] = values[i]
		}
		result = append(result, rowMap)
	}

	return result, nil
}
