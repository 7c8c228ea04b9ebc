package odoo

import (
	"errors"
	"fmt"
)

// Kind classifies client errors for the exit-code contract and for
// structured JSON output.
type Kind string

const (
	KindConnection Kind = "connection"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindServer     Kind = "server"
	KindUsage      Kind = "usage"
	KindUnknown    Kind = "unknown"
)

// Error is a classified client error. Transport failures, rejected
// credentials and read-only policy violations all surface as *Error so
// the CLI layer can map them to exit codes and remediation hints.
type Error struct {
	Kind       Kind
	Message    string
	Details    string
	Suggestion string
	wrapped    error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// ToMap renders the error as the structured payload used in --json mode.
func (e *Error) ToMap() map[string]any {
	out := map[string]any{
		"success":    false,
		"error":      e.Message,
		"error_type": string(e.Kind),
	}
	if e.Details != "" {
		out["details"] = e.Details
	}
	if e.Suggestion != "" {
		out["suggestion"] = e.Suggestion
	}
	return out
}

func connectionError(err error) *Error {
	return &Error{
		Kind:       KindConnection,
		Message:    "cannot reach Odoo server",
		Details:    err.Error(),
		Suggestion: "check that ODOO_URL is correct and the server is running",
		wrapped:    err,
	}
}

func authError(detail string) *Error {
	return &Error{
		Kind:       KindAuth,
		Message:    "authentication failed",
		Details:    detail,
		Suggestion: "check ODOO_USERNAME and ODOO_PASSWORD (or the active profile credentials)",
	}
}

func permissionError(method string) *Error {
	return &Error{
		Kind:    KindPermission,
		Message: fmt.Sprintf("write operation %q blocked: configuration is read-only", method),
		Suggestion: "re-run with --force to override, or use a profile without the " +
			"readonly flag",
	}
}

func serverError(message, detail string) *Error {
	return &Error{
		Kind:    KindServer,
		Message: message,
		Details: detail,
	}
}

// Exit codes consumed by automation wrapping the CLI. Connection problems
// and bad credentials get dedicated codes; everything else is operational.
const (
	ExitOK         = 0
	ExitConnection = 1
	ExitAuth       = 2
	ExitFailure    = 3
)

// ExitCode maps an error to the process exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var oerr *Error
	if errors.As(err, &oerr) {
		switch oerr.Kind {
		case KindConnection:
			return ExitConnection
		case KindAuth:
			return ExitAuth
		}
	}
	return ExitFailure
}
