package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithInternalKeepsOriginal(t *testing.T) {
	cause := stderrors.New("boom")
	err := ErrUpstream.WithInternal(cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrUpstream.Code, err.Code)
	require.Contains(t, err.Error(), "boom")

	// The shared sentinel must not be mutated.
	require.Nil(t, ErrUpstream.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := New("GROUP_MISMATCH", "caller not in allowed groups", http.StatusForbidden)
	require.Same(t, appErr, FromError(appErr))

	generic := FromError(stderrors.New("unexpected"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("Line 3: invalid email")
	require.Equal(t, ErrBadRequest.Code, err.Code)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "Line 3: invalid email", err.Message)
}
