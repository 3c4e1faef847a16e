// Package apierr centralizes the error taxonomy of spec.md §7 as typed,
// wrappable sentinel errors, grounded in the teacher's coop.ErrNotSupported
// sentinel pattern (internal/coop/backend.go).
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable wire identifier for an error kind.
type Code string

const (
	CodeAuthError         Code = "AuthError"
	CodePermissionDenied  Code = "PermissionDenied"
	CodeNotFound          Code = "NotFound"
	CodeNameConflict      Code = "NameConflict"
	CodeStorageError      Code = "StorageError"
	CodeProtocolError     Code = "ProtocolError"
	CodeLagged            Code = "Lagged"
	CodeConflictDetected  Code = "ConflictDetected"
	CodeDaemonUnreachable Code = "DaemonUnreachable"
)

// Error is a taxonomy error: a stable Code plus an HTTP status and a
// human-readable message. Wrap it with fmt.Errorf("...: %w", err) to add
// context while keeping errors.Is/As working against the sentinels below.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is(err, apierr.ErrNotFound) to match any *Error sharing
// the same Code, including ones constructed with a different Message via
// Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is comparisons; construct richer instances with Wrap.
var (
	ErrAuthError         = &Error{Code: CodeAuthError, Status: http.StatusUnauthorized, Message: "authentication required"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Status: http.StatusForbidden, Message: "not a member of this project or rift"}
	ErrNotFound          = &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: "not found"}
	ErrNameConflict      = &Error{Code: CodeNameConflict, Status: http.StatusConflict, Message: "name already in use"}
	ErrStorageError      = &Error{Code: CodeStorageError, Status: http.StatusInternalServerError, Message: "storage error"}
	ErrProtocolError     = &Error{Code: CodeProtocolError, Status: http.StatusBadRequest, Message: "malformed frame"}
	ErrLagged            = &Error{Code: CodeLagged, Status: http.StatusOK, Message: "subscriber overran queue"}
	ErrConflictDetected  = &Error{Code: CodeConflictDetected, Status: http.StatusOK, Message: "local and remote diverged"}
	ErrDaemonUnreachable = &Error{Code: CodeDaemonUnreachable, Status: http.StatusServiceUnavailable, Message: "daemon unreachable"}
)

// Wrap returns a copy of sentinel with Message replaced, still matching
// errors.Is(wrapped, sentinel).
func Wrap(sentinel *Error, format string, args ...any) *Error {
	return &Error{
		Code:    sentinel.Code,
		Status:  sentinel.Status,
		Message: fmt.Sprintf(format, args...),
	}
}

// HTTPStatus returns the status code to use for err, defaulting to 500 for
// errors outside this package's taxonomy.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// WireCode returns the wire "code" string for err, or "" if err is not in
// this taxonomy.
func WireCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return ""
}
