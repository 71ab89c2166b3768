package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidParam:       http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeTotalFailure:       http.StatusServiceUnavailable,
		CodeBackendUnavailable: http.StatusServiceUnavailable,
		CodeGraphQueryError:    http.StatusBadGateway,
		CodeUnknown:            http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	inner := BackendUnavailable("vector", stderrors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("search: %w", inner)

	assert.Equal(t, CodeBackendUnavailable, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeBackendUnavailable))
	assert.Equal(t, "vector", AsAppError(wrapped).Backend)
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))
	assert.False(t, IsCode(nil, CodeUnknown))
}

func TestWithDetailDoesNotMutateShared(t *testing.T) {
	e := ErrInvalidParam.WithDetail("limit")
	assert.Equal(t, "limit", e.Detail)
	assert.Empty(t, ErrInvalidParam.Detail)
}

func TestGraphQueryKeepsFirstMessage(t *testing.T) {
	e := GraphQuery("Neo.ClientError.Statement.SyntaxError", "Invalid input 'X'")
	assert.Equal(t, "Invalid input 'X'", e.Message)
	assert.Equal(t, http.StatusBadGateway, e.HTTPStatus)
	assert.Contains(t, e.Error(), "5002/graph")
}
