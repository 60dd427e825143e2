package sqlite

import (
	"database/sql/driver"
	"errors"
	"io"
)

// cursorState tracks where a prepared statement is in its single pass.
type cursorState int

const (
	stateFresh     cursorState = iota // prepared, not yet stepped
	stateHasRow                       // last step produced a row
	stateDone                         // no more rows
	stateFailed                       // a step reported an engine fault
	stateFinalized                    // statement released
)

func (s cursorState) String() string {
	switch s {
	case stateFresh:
		return "fresh"
	case stateHasRow:
		return "has-row"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	case stateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// cursor exclusively owns one prepared statement and its engine-side position.
// It is never copied; the ResultSet holds the only pointer.
type cursor struct {
	conn *Conn
	sql  string
	stmt driver.Stmt
	rows driver.Rows

	state cursorState
	cols  []string
	buf   []driver.Value
	row   Row
	err   error
}

// step advances the statement once. It returns true when a row is available.
// Stepping a cursor that already ended is a no-op and never re-executes the
// statement.
func (c *cursor) step() bool {
	switch c.state {
	case stateFresh, stateHasRow:
	default:
		return false
	}

	if c.cols == nil {
		c.cols = c.rows.Columns()
		c.buf = make([]driver.Value, len(c.cols))
	}

	err := c.rows.Next(c.buf)
	if errors.Is(err, io.EOF) {
		c.state = stateDone
		c.row = nil
		c.finalize()
		return false
	}
	if err != nil {
		c.fail(engineError(ErrCodeStep, "step", err))
		return false
	}

	row := make(Row, len(c.buf))
	for i, dv := range c.buf {
		v, err := valueFromDriver(dv)
		if err != nil {
			c.fail(newError(ErrCodeStep, "step", "column %q: %v", c.cols[i], err))
			return false
		}
		row[i] = v
	}
	c.row = row
	c.state = stateHasRow
	return true
}

// declTyper is implemented by the engine's rows.
type declTyper interface {
	DeclTypes() []string
}

// decodeByStorageClass stops the engine from converting INTEGER and TEXT
// columns declared BOOLEAN, DATE, DATETIME or TIMESTAMP into bool and
// time.Time. The engine consults the slice DeclTypes returns on every step,
// so blanking it leaves each column decoded by its storage class alone.
// Must run before the first step.
func decodeByStorageClass(rows driver.Rows) {
	if dt, ok := rows.(declTyper); ok {
		clear(dt.DeclTypes())
	}
}

func (c *cursor) fail(err *Error) {
	c.err = err
	c.row = nil
	c.state = stateFailed
	c.finalize()
}

// ended reports whether the single pass is over, for any reason.
func (c *cursor) ended() bool {
	return c.state != stateFresh && c.state != stateHasRow
}

// finalize releases the statement exactly once. Failures are logged, never
// returned, so finalize is safe from Close and from the end of iteration.
func (c *cursor) finalize() {
	if c.state == stateFinalized {
		return
	}
	c.state = stateFinalized
	c.row = nil

	if c.rows != nil {
		if err := c.rows.Close(); err != nil {
			c.conn.log.Debug("reset after pass", "sql", c.sql, "error", err)
		}
	}
	if err := c.stmt.Close(); err != nil {
		c.conn.log.Warn("finalize failed", "sql", c.sql, "error", err)
	}
	c.conn.forget(c)
	c.conn.log.Debug("statement finalized", "sql", c.sql)
}
