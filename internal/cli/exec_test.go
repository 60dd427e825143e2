package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "test.db")
	_, err := runCLI(t, "exec", "--db", db, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)")
	require.NoError(t, err)
	return db
}

func TestExecCreateTable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "test.db")
	out, err := runCLI(t, "exec", "--db", db, "CREATE TABLE t (x)")
	require.NoError(t, err)
	assert.Equal(t, "(0 rows)\n", out)
}

func TestExecInsertAndSelect(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, "exec", "--db", db,
		"INSERT INTO users (name, age) VALUES (:name, :age)",
		"-p", "name=alice", "-p", "age=int:30", "--last-insert-id")
	require.NoError(t, err)
	assert.Contains(t, out, "last insert id: 1")

	out, err = runCLI(t, "exec", "--db", db, "SELECT name, age FROM users WHERE id = :id", "-p", "id=int:1")
	require.NoError(t, err)
	assert.Equal(t, "name\tage\nalice\t30\n(1 row)\n", out)
}

func TestExecJSON(t *testing.T) {
	db := testDB(t)
	_, err := runCLI(t, "exec", "--db", db, "INSERT INTO users (name, age) VALUES ('bob', NULL)")
	require.NoError(t, err)

	out, err := runCLI(t, "--format", "json", "exec", "--db", db, "SELECT id, name, age FROM users")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ResultView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"id", "name", "age"}, resp.Data.Columns)
	require.Len(t, resp.Data.Rows, 1)
	// JSON numbers decode as float64.
	assert.Equal(t, []any{float64(1), "bob", nil}, resp.Data.Rows[0])
}

func TestExecUnknownParameter(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, "exec", "--db", db, "SELECT * FROM users WHERE id = :id", "-p", "nope=1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [BIND_ERROR]")
}

func TestExecPrepareErrorJSON(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, "--format", "json", "exec", "--db", db, "SELEC 1")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "PREPARE_ERROR", resp.Error.Code)
}

func TestExecMultipleStatementsRollBackTogether(t *testing.T) {
	db := testDB(t)

	_, err := runCLI(t, "exec", "--db", db,
		"INSERT INTO users (id, name) VALUES (1, :name)",
		"INSERT INTO users (id, name) VALUES (1, :name)",
		"-p", "name=dup")
	require.Error(t, err)

	out, err := runCLI(t, "exec", "--db", db, "SELECT count(*) AS n FROM users")
	require.NoError(t, err)
	assert.Equal(t, "n\n0\n(1 row)\n", out)
}

func TestExecMultipleStatementsShareParams(t *testing.T) {
	db := testDB(t)

	out, err := runCLI(t, "exec", "--db", db,
		"INSERT INTO users (name, age) VALUES (:name, :age)",
		"SELECT name FROM users WHERE name = :name",
		"-p", "name=carol", "-p", "age=int:41")
	require.NoError(t, err)
	assert.Equal(t, "name\ncarol\n(1 row)\n", out)
}

func TestExecParamsFile(t *testing.T) {
	db := testDB(t)
	file := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: dave\nage: 22\n"), 0o644))

	_, err := runCLI(t, "exec", "--db", db,
		"INSERT INTO users (name, age) VALUES (:name, :age)", "--params-file", file)
	require.NoError(t, err)

	out, err := runCLI(t, "exec", "--db", db, "SELECT typeof(age), age FROM users")
	require.NoError(t, err)
	assert.Equal(t, "typeof(age)\tage\ninteger\t22\n(1 row)\n", out)
}

func TestExecFlagOverridesParamsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(file, []byte("v: from-file\n"), 0o644))

	out, err := runCLI(t, "exec", "--db", ":memory:", "SELECT :v AS v", "--params-file", file, "-p", "v=from-flag")
	require.NoError(t, err)
	assert.Equal(t, "v\nfrom-flag\n(1 row)\n", out)
}

func TestExecInvalidParamFlag(t *testing.T) {
	_, err := runCLI(t, "exec", "--db", ":memory:", "SELECT :v", "-p", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExecOpenError(t *testing.T) {
	out, err := runCLI(t, "exec", "--db", filepath.Join(t.TempDir(), "missing", "dir", "x.db"), "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "OPEN_ERROR")
}

func TestExecLastInsertIDWithoutInsert(t *testing.T) {
	out, err := runCLI(t, "exec", "--db", ":memory:", "SELECT 1", "--last-insert-id")
	require.Error(t, err)
	assert.Contains(t, out, "NO_PRIOR_INSERT")
}

func TestExecRequiresStatement(t *testing.T) {
	_, err := runCLI(t, "exec", "--db", ":memory:")
	require.Error(t, err)
}

func TestExecJSONInfinity(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "exec", "--db", ":memory:", "SELECT 1e999 AS big")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok","data":{"columns":["big"],"rows":[["+Inf"]]}}`+"\n", out)
}
