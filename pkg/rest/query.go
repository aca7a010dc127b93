package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QueryParams holds parsed query parameters in a structured way.
type QueryParams struct {
	Filters []Filter // equality filters, in first-seen query-string order
	Sort    *OrderParam
	Limit   *int
	Offset  *int
}

// Filter is a single column = value constraint. Filters combine with AND.
type Filter struct {
	Column string
	Value  string
}

type OrderParam struct {
	Column    string
	Direction string // ASC or DESC
}

// Control parameters that are never treated as column filters.
const (
	paramSortBy = "sort_by"
	paramOrder  = "order"
	paramLimit  = "limit"
	paramOffset = "offset"
)

// parseQueryParams parses the raw query string into QueryParams. It walks the
// raw string instead of url.Values because filter order must follow the
// first-seen key order to keep generated SQL deterministic; url.Values is a
// map and would randomize it. For duplicate keys the first occurrence wins.
func parseQueryParams(rawQuery string) (QueryParams, error) {
	var params QueryParams
	var sortBy, sortDir string

	seen := make(map[string]bool)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return params, fmt.Errorf("malformed query parameter %q", pair)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return params, fmt.Errorf("malformed query parameter %q", pair)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		switch key {
		case paramSortBy:
			sortBy = value
		case paramOrder:
			sortDir = value
		case paramLimit:
			n, err := parseNonNegativeInt(key, value)
			if err != nil {
				return params, err
			}
			params.Limit = &n
		case paramOffset:
			n, err := parseNonNegativeInt(key, value)
			if err != nil {
				return params, err
			}
			params.Offset = &n
		default:
			column, err := sanitizeIdent(key)
			if err != nil {
				return params, fmt.Errorf("filter column: %w", err)
			}
			params.Filters = append(params.Filters, Filter{Column: column, Value: value})
		}
	}

	if sortDir != "" && sortBy == "" {
		return params, fmt.Errorf("order specified without sort_by")
	}
	if sortBy != "" {
		sort, err := parseOrderParam(sortBy, sortDir)
		if err != nil {
			return params, err
		}
		params.Sort = sort
	}

	return params, nil
}

// parseOrderParam validates the sort column and direction. Direction is
// case-insensitive and defaults to ASC; any token other than asc/desc is
// rejected.
func parseOrderParam(column, direction string) (*OrderParam, error) {
	col, err := sanitizeIdent(column)
	if err != nil {
		return nil, fmt.Errorf("sort column: %w", err)
	}
	dir := "ASC"
	if direction != "" {
		switch strings.ToUpper(direction) {
		case "ASC":
			dir = "ASC"
		case "DESC":
			dir = "DESC"
		default:
			return nil, fmt.Errorf("invalid sort direction %q", direction)
		}
	}
	return &OrderParam{Column: col, Direction: dir}, nil
}

func parseNonNegativeInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}

// translate renders the WHERE / ORDER BY / LIMIT / OFFSET tail of a SELECT
// from the parsed parameters. Filter values become bound parameters, one ?
// placeholder per filter; limit and offset are interpolated directly since
// they already parsed as non-negative integers.
func (p QueryParams) translate() (string, []any) {
	var clause strings.Builder
	var args []any

	if len(p.Filters) > 0 {
		conditions := make([]string, 0, len(p.Filters))
		for _, f := range p.Filters {
			conditions = append(conditions, fmt.Sprintf("%s = ?", f.Column))
			args = append(args, f.Value)
		}
		clause.WriteString(" WHERE ")
		clause.WriteString(strings.Join(conditions, " AND "))
	}

	if p.Sort != nil {
		fmt.Fprintf(&clause, " ORDER BY %s %s", p.Sort.Column, p.Sort.Direction)
	}
	if p.Limit != nil {
		fmt.Fprintf(&clause, " LIMIT %d", *p.Limit)
	}
	if p.Offset != nil {
		fmt.Fprintf(&clause, " OFFSET %d", *p.Offset)
	}

	return clause.String(), args
}
