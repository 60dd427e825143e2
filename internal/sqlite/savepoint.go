package sqlite

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Savepoint is a named, nestable transaction scope on a Conn.
//
// Savepoints must be released in the reverse order of acquisition. Conn keeps
// the stack; releasing anything but the innermost open savepoint fails with
// SAVEPOINT_ERROR and issues no SQL. A Savepoint never rolls back implicitly:
// call RollbackTo before Release to discard its changes.
//
//	sp, err := conn.Savepoint(ctx, "batch")
//	if err != nil {
//		return err
//	}
//	defer sp.Release(ctx)
type Savepoint struct {
	conn     *Conn
	name     string
	released bool
	lost     bool // ended by the engine rather than by Release
}

// Savepoint issues SAVEPOINT name. An empty name gets a generated unique name.
func (c *Conn) Savepoint(ctx context.Context, name string) (*Savepoint, error) {
	if name == "" {
		name = "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := c.checkOpen("savepoint"); err != nil {
		return nil, err
	}
	c.syncSavepoints()
	if err := c.Exec(ctx, "SAVEPOINT "+quoteIdent(name), nil); err != nil {
		return nil, savepointError("savepoint", err)
	}

	sp := &Savepoint{conn: c, name: name}
	c.mu.Lock()
	c.savepoints = append(c.savepoints, sp)
	c.mu.Unlock()
	c.log.Debug("savepoint opened", "name", name)
	return sp, nil
}

// Name returns the savepoint name.
func (sp *Savepoint) Name() string {
	return sp.name
}

// Release issues RELEASE for the savepoint. Releasing twice is a no-op.
//
// A savepoint that the engine already ended, through a raw COMMIT, ROLLBACK
// or RELEASE or an automatic rollback, fails with SAVEPOINT_ERROR and is
// dropped from the stack together with everything opened after it.
func (sp *Savepoint) Release(ctx context.Context) error {
	c := sp.conn
	if err := c.checkOpen("release"); err != nil {
		return err
	}
	c.syncSavepoints()

	c.mu.Lock()
	if sp.lost {
		c.mu.Unlock()
		return newError(ErrCodeSavepoint, "release", "savepoint %q was ended by the engine", sp.name)
	}
	if sp.released {
		c.mu.Unlock()
		return nil
	}
	depth := len(c.savepoints)
	if depth == 0 || c.savepoints[depth-1] != sp {
		c.mu.Unlock()
		return newError(ErrCodeSavepoint, "release", "savepoint %q is not the innermost open savepoint", sp.name)
	}
	c.mu.Unlock()

	if err := c.Exec(ctx, "RELEASE SAVEPOINT "+quoteIdent(sp.name), nil); err != nil {
		if isNoSuchSavepoint(err) {
			c.dropSavepoints(depth - 1)
		}
		return savepointError("release", err)
	}

	c.mu.Lock()
	c.savepoints = c.savepoints[:depth-1]
	sp.released = true
	c.mu.Unlock()
	c.log.Debug("savepoint released", "name", sp.name)
	return nil
}

// RollbackTo issues ROLLBACK TO for the savepoint. Savepoints opened after it
// are discarded; the savepoint itself stays open and must still be released.
func (sp *Savepoint) RollbackTo(ctx context.Context) error {
	c := sp.conn
	if err := c.checkOpen("rollback"); err != nil {
		return err
	}
	c.syncSavepoints()

	c.mu.Lock()
	idx := slices.Index(c.savepoints, sp)
	lost := sp.lost
	c.mu.Unlock()
	if lost {
		return newError(ErrCodeSavepoint, "rollback", "savepoint %q was ended by the engine", sp.name)
	}
	if idx < 0 {
		return newError(ErrCodeSavepoint, "rollback", "savepoint %q is not open", sp.name)
	}

	if err := c.Exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(sp.name), nil); err != nil {
		if isNoSuchSavepoint(err) {
			c.dropSavepoints(idx)
		}
		return savepointError("rollback", err)
	}

	c.mu.Lock()
	for _, inner := range c.savepoints[idx+1:] {
		inner.released = true
	}
	c.savepoints = c.savepoints[:idx+1]
	c.mu.Unlock()
	c.log.Debug("savepoint rolled back", "name", sp.name)
	return nil
}

// syncSavepoints drops the whole stack when the engine has no transaction
// open. Every open savepoint implies one, so autocommit mode means they were
// all ended behind the Conn's back.
func (c *Conn) syncSavepoints() {
	if !c.raw.AutoCommit() {
		return
	}
	c.dropSavepoints(0)
}

// dropSavepoints marks the savepoints from index from upward as lost and
// truncates the stack.
func (c *Conn) dropSavepoints(from int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if from >= len(c.savepoints) {
		return
	}
	for _, sp := range c.savepoints[from:] {
		sp.released = true
		sp.lost = true
		c.log.Debug("savepoint ended by engine", "name", sp.name)
	}
	c.savepoints = c.savepoints[:from]
}

// isNoSuchSavepoint reports whether the engine rejected a savepoint name it
// no longer knows.
func isNoSuchSavepoint(err error) bool {
	var e *Error
	return errors.As(err, &e) && strings.Contains(e.Message, "no such savepoint")
}

// InSavepoint runs fn inside a savepoint. When fn fails the savepoint is
// rolled back before it is released, and fn's error is returned.
func (c *Conn) InSavepoint(ctx context.Context, name string, fn func() error) error {
	sp, err := c.Savepoint(ctx, name)
	if err != nil {
		return err
	}
	if fnErr := fn(); fnErr != nil {
		if err := sp.RollbackTo(ctx); err != nil {
			c.log.Warn("rollback failed", "name", sp.name, "error", err)
		}
		if err := sp.Release(ctx); err != nil {
			c.log.Warn("release after rollback failed", "name", sp.name, "error", err)
		}
		return fnErr
	}
	return sp.Release(ctx)
}

// savepointError re-labels engine failures, keeping busy/locked codes.
func savepointError(op string, err error) error {
	e := engineError(ErrCodeSavepoint, op, err)
	if e.Code == ErrCodeEngineBusy || e.Code == ErrCodeEngineLocked || e.Code == ErrCodeClosed {
		return e
	}
	cp := *e
	cp.Code = ErrCodeSavepoint
	cp.Op = op
	return &cp
}

// quoteIdent quotes name as an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
