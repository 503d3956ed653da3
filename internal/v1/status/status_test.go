package status

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, "BadRequest"},
		{http.StatusUnauthorized, "Unauthorized"},
		{http.StatusForbidden, "Forbidden"},
		{http.StatusNotFound, "NotFound"},
		{http.StatusNotAcceptable, "NotAcceptable"},
		{http.StatusConflict, "Conflict"},
		{http.StatusRequestedRangeNotSatisfiable, "RangeNotSatisfiable"},
		{http.StatusExpectationFailed, "ExpectationFailed"},
		{StatusBlocking, "Blocking"},
		{StatusDatabase, "Database"},
		{http.StatusTeapot, "Error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, CodeFor(tt.status))
	}
}

func TestBadRequest_MessageFormat(t *testing.T) {
	e := BadRequest("echo")

	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "BadRequest", e.Code)
	assert.Equal(t, "parameter_not_defined; name: 'echo'", e.Message)
}

func TestFrom_PassesThroughStatusErrors(t *testing.T) {
	original := New(http.StatusNotFound, "stream_not_found")

	converted := From(original)

	assert.Same(t, original, converted)
}

func TestFrom_WrapsUnknownErrorsAsDatabase(t *testing.T) {
	converted := From(errors.New("connection refused"))

	assert.Equal(t, StatusDatabase, converted.Status)
	assert.Equal(t, "Database", converted.Code)
	assert.Contains(t, converted.Message, "connection refused")
}

func TestFrom_NilIsNil(t *testing.T) {
	assert.Nil(t, From(nil))
}

func TestError_ImplementsError(t *testing.T) {
	var err error = New(http.StatusConflict, "stream_not_active")

	assert.Equal(t, "409 Conflict: stream_not_active", err.Error())
}
