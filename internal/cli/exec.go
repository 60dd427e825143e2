package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GamePad64/lvsqlite3/internal/params"
	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	DB           string
	Params       []string
	ParamsFile   string
	LastInsertID bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql>...",
		Short: "Execute SQL statements",
		Long: `Execute one or more SQL statements against a database.

Named parameters (:name, @name, $name) are bound from --param flags and
--params-file. Values take an optional type prefix: int:, float:, text:,
blob: (hex). The literal null binds NULL.

With more than one statement, all of them run inside a single savepoint and
are rolled back together if any fails. Only the rows of the last statement
are printed.`,
		Example: `  lvsqlite exec --db app.db "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"
  lvsqlite exec --db app.db "INSERT INTO t (name) VALUES (:name)" -p name=alice --last-insert-id
  lvsqlite exec --db app.db "SELECT * FROM t WHERE id = :id" -p id=int:1 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (defaults to database.path from config)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "named parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.ParamsFile, "params-file", "", "YAML file mapping parameter names to values")
	cmd.Flags().BoolVar(&opts.LastInsertID, "last-insert-id", false, "print the rowid of the last insert")

	return cmd
}

func runExec(cmd *cobra.Command, opts *ExecOptions, statements []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	bound, err := collectParams(opts)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	conn, err := openDatabase(opts.RootOptions, opts.DB)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var view ResultView
	err = conn.WithLock(func() error {
		run := func() error {
			for i, sql := range statements {
				formatter.VerboseLog("executing statement %d: %s", i+1, sql)
				v, err := executeStatement(ctx, conn, sql, bound)
				if err != nil {
					return err
				}
				view = v
			}
			return nil
		}

		var runErr error
		if len(statements) > 1 {
			runErr = conn.InSavepoint(ctx, "", run)
		} else {
			runErr = run()
		}
		if runErr != nil {
			return runErr
		}

		if opts.LastInsertID {
			id, err := conn.LastInsertID(ctx)
			if err != nil {
				return err
			}
			view.LastInsertID = &id
		}
		return nil
	})
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "execution failed", err)
	}

	if err := formatter.Result(view); err != nil {
		return WrapExitError(ExitFailure, "failed to write result", err)
	}
	return nil
}

// executeStatement runs one statement and drains its rows. Parameters the
// statement does not reference are dropped so that a shared parameter set
// can feed several statements.
func executeStatement(ctx context.Context, conn *sqlite.Conn, sql string, bound sqlite.Params) (ResultView, error) {
	rs, err := conn.Execute(ctx, sql, sqlite.Restrict(sql, bound))
	if err != nil {
		return ResultView{}, err
	}
	defer rs.Close()

	rows, err := rs.Rows()
	if err != nil {
		return ResultView{}, err
	}
	return NewResultView(rs.Columns(), rows), nil
}

// collectParams merges --params-file with --param flags; flags win.
func collectParams(opts *ExecOptions) (sqlite.Params, error) {
	merged := sqlite.Params{}
	if opts.ParamsFile != "" {
		fromFile, err := params.LoadFile(opts.ParamsFile)
		if err != nil {
			return nil, err
		}
		for name, v := range fromFile {
			merged[name] = v
		}
	}

	fromFlags, err := params.ParseFlags(opts.Params)
	if err != nil {
		return nil, err
	}
	for name, v := range fromFlags {
		merged[name] = v
	}
	return merged, nil
}

// openDatabase opens path, or the configured database when path is empty.
func openDatabase(opts *RootOptions, path string) (*sqlite.Conn, error) {
	cfg := opts.config()
	if path == "" {
		path = cfg.Database.Path
	}
	if path == "" {
		return nil, errors.New("no database path: use --db or set database.path")
	}

	conn, err := sqlite.Open(path, cfg.ConnOptions(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conn, nil
}
