// Package rest translates CRUD-style HTTP requests into parameterized SQL
// statements and executes them against named database backends.
//
// Tables are exposed at /db/{database}/rest/{table} with an optional /{id}
// path segment. Standard HTTP methods map onto SQL verbs: GET selects, POST
// inserts, PATCH updates, DELETE deletes.
//
// Query parameters control filtering, ordering, and pagination on list
// requests:
//
//	Parameter      | Description
//	---------------|------------------------------------------------
//	?col=value     | Equality filter on column col (ANDed, in order)
//	?sort_by=col   | ORDER BY column
//	?order=desc    | Sort direction, asc (default) or desc
//	?limit=100     | Limit number of results
//	?offset=0      | Pagination offset
//
// Every table and column name from user input passes an allow-list
// sanitizer; values are always bound parameters and never interpolated. The
// generated SQL uses ? placeholders which backends rebind to their driver
// syntax.
//
// POST /db/{database}/query executes caller-supplied SQL directly and exists
// as a trusted escape hatch; GET /databases lists the configured backends.
//
// Example usage:
//
//	registry := pgx.NewRegistry()
//	_ = registry.Add(ctx, pgx.Database{Name: "DB_USERS", ConnString: connString})
//	server, err := rest.NewServer(registry)
//	if err != nil {
//		log.Fatal(err)
//	}
//	server.AddMiddleware(middleware.VerifyBearerToken(&middleware.BearerAuthConfig{Token: secret}))
//	log.Fatal(server.Start(":8080"))
package rest
