package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // SQL failed (prepare, bind, step, busy)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, cannot open database)
)

// ErrCodeGeneric is reported for failures that carry no sqlite error code.
const ErrCodeGeneric = "GENERIC"

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode returns the structured sqlite code of err, if it has one.
func errorCode(err error) string {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // sqlite error code, e.g. "PREPARE_ERROR"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// ResultView is the rendered form of one executed statement.
type ResultView struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	LastInsertID *int64   `json:"last_insert_id,omitempty"`
}

// NewResultView converts decoded rows into display form.
func NewResultView(columns []string, rows []sqlite.Row) ResultView {
	view := ResultView{Columns: columns, Rows: make([][]any, 0, len(rows))}
	if view.Columns == nil {
		view.Columns = []string{}
	}
	for _, row := range rows {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = jsonValue(v)
		}
		view.Rows = append(view.Rows, out)
	}
	return view
}

// jsonValue maps a Value onto its natural JSON form. Blobs render as
// x'..' hex literals so they stay distinguishable from text. JSON has no
// infinities or NaN, so non-finite doubles render as strings.
func jsonValue(v sqlite.Value) any {
	switch v.Kind() {
	case sqlite.KindNull:
		return nil
	case sqlite.KindInt64:
		n, _ := v.Int64()
		return n
	case sqlite.KindDouble:
		f, _ := v.Double()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return v.String()
		}
		return f
	default:
		return v.String()
	}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs a ResultView: a JSON response, or a tab-separated table
// followed by a row count.
func (f *OutputFormatter) Result(view ResultView) error {
	if f.Format == "json" {
		return f.Success(view)
	}

	if len(view.Columns) > 0 {
		fmt.Fprintln(f.Writer, strings.Join(view.Columns, "\t"))
	}
	for _, row := range view.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Fprintln(f.Writer, strings.Join(cells, "\t"))
	}

	noun := "rows"
	if len(view.Rows) == 1 {
		noun = "row"
	}
	fmt.Fprintf(f.Writer, "(%d %s)\n", len(view.Rows), noun)
	if view.LastInsertID != nil {
		fmt.Fprintf(f.Writer, "last insert id: %d\n", *view.LastInsertID)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
