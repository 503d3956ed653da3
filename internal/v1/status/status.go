// Package status defines the error value relayed to clients over both the
// websocket channel and the REST surface. An operation-level "not found" is a
// nil result, never a status error.
package status

import (
	"fmt"
	"net/http"
)

// HTTP statuses used by the chat core beyond the stdlib set.
const (
	StatusBlocking = 506 // task scheduling failure
	StatusDatabase = 507 // storage failure
)

// Error is relayed to the client verbatim: one "err" frame over the websocket,
// one JSON body (or an array of them, for validation) over REST.
type Error struct {
	Status  int    `json:"err"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// codes maps an HTTP status to the wire code clients switch on.
var codes = map[int]string{
	http.StatusBadRequest:                   "BadRequest",
	http.StatusUnauthorized:                 "Unauthorized",
	http.StatusForbidden:                    "Forbidden",
	http.StatusNotFound:                     "NotFound",
	http.StatusNotAcceptable:                "NotAcceptable",
	http.StatusConflict:                     "Conflict",
	http.StatusRequestedRangeNotSatisfiable: "RangeNotSatisfiable",
	http.StatusExpectationFailed:            "ExpectationFailed",
	StatusBlocking:                          "Blocking",
	StatusDatabase:                          "Database",
}

// CodeFor returns the wire code for an HTTP status, or "Error" for statuses
// outside the table.
func CodeFor(status int) string {
	if code, ok := codes[status]; ok {
		return code
	}
	return "Error"
}

// New builds a status error with the code derived from the status.
func New(statusCode int, message string) *Error {
	return &Error{Status: statusCode, Code: CodeFor(statusCode), Message: message}
}

// Newf is New with a formatted message.
func Newf(statusCode int, format string, args ...any) *Error {
	return New(statusCode, fmt.Sprintf(format, args...))
}

// BadRequest is the 400 presence-check failure for a missing or empty field.
func BadRequest(field string) *Error {
	return Newf(http.StatusBadRequest, "parameter_not_defined; name: '%s'", field)
}

// Database wraps a storage failure as a 507.
func Database(err error) *Error {
	return Newf(StatusDatabase, "database; %v", err)
}

// Blocking wraps a task-scheduling failure as a 506.
func Blocking(err error) *Error {
	return Newf(StatusBlocking, "blocking; %v", err)
}

// From converts any error into a status error, defaulting unknown errors to a
// 507 so infrastructure failures never leak internals to the client.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return Database(err)
}
