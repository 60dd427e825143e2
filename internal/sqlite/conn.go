package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"
)

// NFCCollation is the name of the collation registered when
// Options.NFCCollation is set. It compares TEXT after Unicode NFC
// normalization, so composed and decomposed spellings sort together.
const NFCCollation = "NFC"

// Options configures a Conn. The zero value is usable; DefaultOptions
// returns the recommended settings.
type Options struct {
	// BusyTimeout bounds how long a step waits on a locked database file
	// before failing with ENGINE_BUSY. Zero fails immediately.
	BusyTimeout time.Duration

	// JournalMode is applied with PRAGMA journal_mode when non-empty.
	JournalMode string

	// Synchronous is applied with PRAGMA synchronous when non-empty.
	Synchronous string

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool

	// NFCCollation registers the NFC collation on the connection.
	NFCCollation bool

	// Logger receives statement lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns WAL mode, NORMAL sync, a 5 second busy timeout and
// foreign key enforcement.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		ForeignKeys: true,
	}
}

// Conn owns one engine connection handle.
//
// Conn performs no serialization of engine access: callers sharing a Conn
// across goroutines must hold a Lock around each unit of work.
type Conn struct {
	raw  *sqlite3.SQLiteConn
	path string
	log  *slog.Logger

	// lockMu is the connection-scoped mutex behind Lock.
	lockMu sync.Mutex

	// mu guards the bookkeeping below, never engine access.
	mu         sync.Mutex
	closed     bool
	live       map[*cursor]struct{}
	savepoints []*Savepoint
}

// Open opens or creates the database at path (":memory:" for an in-memory
// database) and applies opts. Any failure is reported as OPEN_ERROR, or
// ENGINE_BUSY/ENGINE_LOCKED when the file is contended.
func Open(path string, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	drv := &sqlite3.SQLiteDriver{}
	dc, err := drv.Open(path)
	if err != nil {
		return nil, engineError(ErrCodeOpen, "open", err)
	}
	raw, ok := dc.(*sqlite3.SQLiteConn)
	if !ok {
		dc.Close()
		return nil, newError(ErrCodeOpen, "open", "unexpected driver connection %T", dc)
	}

	c := &Conn{
		raw:  raw,
		path: path,
		log:  logger.With("db", path),
		live: make(map[*cursor]struct{}),
	}

	if opts.NFCCollation {
		err := raw.RegisterCollation(NFCCollation, func(a, b string) int {
			return strings.Compare(norm.NFC.String(a), norm.NFC.String(b))
		})
		if err != nil {
			c.Close()
			return nil, engineError(ErrCodeOpen, "register collation", err)
		}
	}

	if err := c.applyPragmas(opts); err != nil {
		c.Close()
		return nil, asOpenError(err)
	}

	// Reading the schema forces the file header to be read, so a path that is
	// not a database fails here rather than on first use.
	if err := c.Exec(context.Background(), "SELECT count(*) FROM sqlite_master", nil); err != nil {
		c.Close()
		return nil, asOpenError(err)
	}

	c.log.Debug("connection opened")
	return c, nil
}

// asOpenError re-labels a failure during Open, keeping busy/locked codes.
func asOpenError(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return engineError(ErrCodeOpen, "open", err)
	}
	if e.Code == ErrCodeEngineBusy || e.Code == ErrCodeEngineLocked {
		return e
	}
	cp := *e
	cp.Code = ErrCodeOpen
	return &cp
}

// applyPragmas sets connection configuration.
func (c *Conn) applyPragmas(opts Options) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
	}
	if opts.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+opts.JournalMode)
	}
	if opts.Synchronous != "" {
		pragmas = append(pragmas, "PRAGMA synchronous = "+opts.Synchronous)
	}
	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	} else {
		pragmas = append(pragmas, "PRAGMA foreign_keys = OFF")
	}

	for _, pragma := range pragmas {
		if err := c.Exec(context.Background(), pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the path the connection was opened with.
func (c *Conn) Path() string {
	return c.path
}

// Close finalizes any statement still owned by a live ResultSet and releases
// the handle. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := make([]*cursor, 0, len(c.live))
	for cur := range c.live {
		live = append(live, cur)
	}
	c.savepoints = nil
	c.mu.Unlock()

	for _, cur := range live {
		cur.finalize()
	}

	if err := c.raw.Close(); err != nil {
		return engineError(ErrCodeOpen, "close", err)
	}
	c.log.Debug("connection closed")
	return nil
}

// Execute prepares sql, binds params by placeholder name and performs the
// first step.
//
// Only the first statement in sql runs; anything after it is ignored, and a
// placeholder that appears only in that ignored tail is a PREPARE_ERROR.
// Prepare and bind failures return no ResultSet and leave the Conn usable.
// A failure of the first step is returned as STEP_ERROR (or ENGINE_BUSY /
// ENGINE_LOCKED); later step failures are reported by ResultSet.Err.
// Statements that produce no rows come back already finalized.
//
// Execute does not take the Lock; see the package documentation.
func (c *Conn) Execute(ctx context.Context, sql string, params Params) (*ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.checkOpen("execute"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sql) == "" {
		return nil, newError(ErrCodePrepare, "prepare", "empty statement")
	}

	stmt, err := c.raw.Prepare(sql)
	if err != nil {
		return nil, engineError(ErrCodePrepare, "prepare", err)
	}
	if names := len(placeholders(sql)); names > stmt.NumInput() {
		stmt.Close()
		return nil, newError(ErrCodePrepare, "prepare",
			"%d named parameters in text but %d in the first statement: only one statement may be executed", names, stmt.NumInput())
	}

	args, err := bindArgs(sql, params)
	if err != nil {
		stmt.Close()
		return nil, err
	}

	sq, ok := stmt.(driver.StmtQueryContext)
	if !ok {
		stmt.Close()
		return nil, newError(ErrCodePrepare, "prepare", "statement does not support queries")
	}
	// The engine runs the query unbound from ctx: cancellation is not
	// supported mid-step.
	rows, err := sq.QueryContext(context.Background(), args)
	if err != nil {
		stmt.Close()
		return nil, engineError(ErrCodeBind, "bind", err)
	}
	decodeByStorageClass(rows)
	cur := &cursor{conn: c, sql: sql, stmt: stmt, rows: rows}

	c.track(cur)
	c.log.Debug("statement prepared", "sql", sql, "params", len(args))

	rs := newResultSet(cur)
	if cur.err != nil {
		return nil, cur.err
	}
	return rs, nil
}

// Exec runs sql to completion, discarding any rows.
func (c *Conn) Exec(ctx context.Context, sql string, params Params) error {
	rs, err := c.Execute(ctx, sql, params)
	if err != nil {
		return err
	}
	defer rs.Close()
	_, err = rs.Rows()
	return err
}

// QueryRow executes sql and returns its first row, or nil when it produced
// none. The statement is finalized before returning.
func (c *Conn) QueryRow(ctx context.Context, sql string, params Params) (Row, error) {
	rs, err := c.Execute(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	if !rs.HaveRows() {
		return nil, nil
	}
	return rs.Begin().Row(), nil
}

// LastInsertID returns the rowid of the most recent successful INSERT on this
// connection. It fails with NO_PRIOR_INSERT when the engine reports rowid 0,
// which is the case before any insert; an explicit insert of rowid 0 is
// therefore indistinguishable from no insert.
func (c *Conn) LastInsertID(ctx context.Context) (int64, error) {
	row, err := c.QueryRow(ctx, "SELECT last_insert_rowid()", nil)
	if err != nil {
		return 0, err
	}
	id, err := row[0].Int64()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, newError(ErrCodeNoPriorInsert, "last_insert_id", "no insert on this connection")
	}
	return id, nil
}

// BackupTo copies the live database into a new database file at path using
// the engine's online backup.
func (c *Conn) BackupTo(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.checkOpen("backup"); err != nil {
		return err
	}

	dc, err := (&sqlite3.SQLiteDriver{}).Open(path)
	if err != nil {
		return engineError(ErrCodeOpen, "backup", err)
	}
	defer dc.Close()
	dst, ok := dc.(*sqlite3.SQLiteConn)
	if !ok {
		return newError(ErrCodeOpen, "backup", "unexpected driver connection %T", dc)
	}

	bk, err := dst.Backup("main", c.raw, "main")
	if err != nil {
		return engineError(ErrCodeStep, "backup", err)
	}
	for {
		done, err := bk.Step(-1)
		if err != nil {
			bk.Finish()
			return engineError(ErrCodeStep, "backup", err)
		}
		if done {
			break
		}
	}
	if err := bk.Finish(); err != nil {
		return engineError(ErrCodeStep, "backup", err)
	}
	c.log.Debug("backup written", "dest", path)
	return nil
}

func (c *Conn) checkOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newError(ErrCodeClosed, op, "connection is closed")
	}
	return nil
}

func (c *Conn) track(cur *cursor) {
	c.mu.Lock()
	c.live[cur] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) forget(cur *cursor) {
	c.mu.Lock()
	delete(c.live, cur)
	c.mu.Unlock()
}

// EngineVersion returns the linked SQLite library version and source id.
func EngineVersion() (version, sourceID string) {
	version, _, sourceID = sqlite3.Version()
	return version, sourceID
}
