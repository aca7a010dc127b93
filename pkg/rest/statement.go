package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Statement is a parameterized SQL statement. SQL contains ? placeholders,
// one per element of Args; user-supplied values are never interpolated into
// SQL, only sanitized identifiers are.
type Statement struct {
	SQL  string
	Args []any
}

// body holds a decoded JSON request body with column order preserved.
type body struct {
	Columns []string
	Values  []any
}

// decodeBody reads a flat JSON object keeping key order, which a plain
// map[string]any decode would randomize. Column order drives the generated
// INSERT/UPDATE column list, so it has to be stable. Every key is sanitized
// as a column name.
func decodeBody(r io.Reader) (*body, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("request body must be a JSON object")
	}

	var b body
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		key := tok.(string)
		column, err := sanitizeIdent(key)
		if err != nil {
			return nil, fmt.Errorf("body column: %w", err)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		b.Columns = append(b.Columns, column)
		b.Values = append(b.Values, normalizeNumber(value))
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	return &b, nil
}

// normalizeNumber converts json.Number into int64 where the value is
// integral, float64 otherwise, so drivers bind numerics instead of strings.
func normalizeNumber(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}

// buildList builds SELECT * FROM table with the translated filter clause.
func buildList(table string, params QueryParams) (*Statement, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	clause, args := params.translate()
	return &Statement{
		SQL:  fmt.Sprintf("SELECT * FROM %s%s", tbl, clause),
		Args: args,
	}, nil
}

// buildGet builds a single-row SELECT keyed on the primary-key column.
func buildGet(table, pkColumn, id string) (*Statement, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	return &Statement{
		SQL:  fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", tbl, pkColumn),
		Args: []any{id},
	}, nil
}

// buildInsert builds INSERT INTO table (cols...) VALUES (?...) with values
// bound in body key order. An empty body is an error: there is nothing to
// insert and the SQL would be malformed.
func buildInsert(table string, b *body) (*Statement, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if len(b.Columns) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}
	placeholders := make([]string, len(b.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return &Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tbl,
			strings.Join(b.Columns, ", "),
			strings.Join(placeholders, ", ")),
		Args: b.Values,
	}, nil
}

// buildUpdate builds UPDATE table SET col = ?, ... WHERE pk = ?, binding body
// values first and the record id last.
func buildUpdate(table, pkColumn, id string, b *body) (*Statement, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if len(b.Columns) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}
	setClauses := make([]string, len(b.Columns))
	for i, col := range b.Columns {
		setClauses[i] = fmt.Sprintf("%s = ?", col)
	}
	args := append(append([]any{}, b.Values...), id)
	return &Statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			tbl,
			strings.Join(setClauses, ", "),
			pkColumn),
		Args: args,
	}, nil
}

// buildDelete builds DELETE FROM table WHERE pk = ?.
func buildDelete(table, pkColumn, id string) (*Statement, error) {
	tbl, err := sanitizeIdent(table)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	return &Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", tbl, pkColumn),
		Args: []any{id},
	}, nil
}
