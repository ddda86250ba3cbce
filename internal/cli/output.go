package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"pg-graphquery/internal/dbexec"
	"pg-graphquery/internal/request"
	"pg-graphquery/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The database failed to answer or a query failed while running
	ExitCommandError = 2 // Invalid configuration, document or query
)

// Error codes reported in CLIError.Code.
const (
	codeConfig     = "config"
	codeDocument   = "invalid_document"
	codeQuery      = "invalid_query"
	codeRecord     = "unknown_record"
	codeConnection = "connection_failed"
	codeTimeout    = "acquire_timeout"
	codeExecution  = "execution_failed"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Reported reports whether err was already written by an OutputFormatter.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a result. Text output prints data with its String method
// or %v.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error. Text errors go to ErrWriter so that stdout only
// carries results.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	w := f.errWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if list, ok := details.([]string); ok {
		for _, d := range list {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}
	return nil
}

// Notice writes a diagnostic line that is not part of the result.
func (f *OutputFormatter) Notice(format string, args ...any) {
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func fail(f *OutputFormatter, code string, exit int, err error) error {
	return failWithDetails(f, code, exit, err, nil)
}

func failWithDetails(f *OutputFormatter, code string, exit int, err error, details any) error {
	_ = f.Error(code, err.Error(), details)
	return &ExitError{Code: exit, Message: code, Err: err}
}

// failQuery reports an error returned by a reader.
func failQuery(f *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, request.ErrInvalidDocument):
		return fail(f, codeDocument, ExitCommandError, err)
	case store.IsStructural(err):
		return fail(f, codeQuery, ExitCommandError, err)
	case errors.Is(err, dbexec.ErrAcquireTimeout):
		return fail(f, codeTimeout, ExitFailure, err)
	default:
		return fail(f, codeExecution, ExitFailure, err)
	}
}
