// Package sqlite is a thin layer over an embedded SQLite connection.
//
// It provides:
//   - Value: a tagged value (Null, Int64, Double, Text, Blob) used both for bound
//     parameters and for decoded column data
//   - ResultSet / Iterator: a lazy, single-pass cursor over one prepared statement
//   - Conn: the connection handle with named-parameter Execute and LastInsertID
//   - Savepoint: a named, nestable transaction scope
//   - Lock: a scoped guard serializing a unit of work on a shared Conn
//
// # Statement Lifecycle
//
// Execute prepares the statement, binds every named parameter and steps the
// statement once before returning. When that first step produces no row the
// statement is finalized immediately, so DDL and DML never hold engine state.
// Otherwise the ResultSet owns the statement until it is exhausted, fails, or is
// closed. Finalize happens exactly once; repeated Close calls are no-ops.
//
// Iterators borrow the ResultSet and share its single forward position. Each
// iterator materializes its row when it is created or advanced, so a row read
// from an iterator stays valid after the cursor moves on.
//
// # Concurrency
//
// Conn does NOT serialize engine access on its own. A Conn shared between
// goroutines must be used inside a Lock for the whole logical unit of work,
// including iteration of any ResultSet it produced:
//
//	l := conn.Lock()
//	defer l.Unlock()
//	sp, err := conn.Savepoint(ctx, "transfer")
//	...
//
// Execute never takes the Lock itself, which keeps it composable with
// Savepoints spanning several statements.
//
// # Database Configuration
//
//   - WAL journal mode by default
//   - synchronous=NORMAL
//   - busy_timeout=5000: contended access fails with ENGINE_BUSY instead of hanging
//   - foreign_keys=ON
package sqlite
