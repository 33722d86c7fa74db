// Package query provides SQL parsing, binding and streaming execution over
// Paradox table catalogs.
//
// The dialect is read-only and supports:
//   - SELECT [DISTINCT] with column projection, t.* and aliases
//   - FROM lists with CROSS, INNER and LEFT [OUTER] joins
//   - WHERE with AND, OR, XOR, NOT under three-valued logic
//   - comparisons, BETWEEN, IN (list), LIKE ... ESCAPE, IS [NOT] NULL
//   - [NOT] EXISTS (SELECT ...) including correlated references
//   - GROUP BY and HAVING with COUNT, SUM, AVG, MIN, MAX
//   - ORDER BY expressions, aliases or ordinals, LIMIT and OFFSET
//   - CAST(expr AS type) and ? positional parameters
//
// # Basic Usage
//
//	catalog, err := reader.OpenCatalog("/data/paradox", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := query.NewSession(catalog, &query.SessionOptions{MaxRows: 1000})
//	rows, err := session.Query(ctx, "SELECT state, COUNT(*) FROM areacodes GROUP BY state")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rows.Close()
//
//	for rows.Next() {
//	    fmt.Println(rows.Values())
//	}
//	if err := rows.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Pipeline
//
// Parse builds a *Select from text. Bind resolves tables, columns and
// functions against a catalog and produces a *Plan. A Statement executes the
// plan as a pipeline of row iterators: scan, join, filter, then either
// projection or grouping, then DISTINCT, ORDER BY and LIMIT. Only grouping
// and sorting hold rows in memory; everything else streams.
//
// # Cancellation
//
// Rows.Cancel and the context passed to Query are checked for every scanned
// and every returned row. A cancelled cursor fails with code 57014.
//
// # Errors
//
// Every failure is a *pxerr.Error carrying a stable code; syntax errors also
// carry the byte offset of the offending token.
package query
