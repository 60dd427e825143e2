package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

// createTestConn opens a fresh file-backed database for testing.
func createTestConn(t *testing.T) *Conn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// mustExec runs sql and fails the test on error.
func mustExec(t *testing.T, c *Conn, sql string, params Params) {
	t.Helper()
	if err := c.Exec(context.Background(), sql, params); err != nil {
		t.Fatalf("Exec(%q) failed: %v", sql, err)
	}
}
