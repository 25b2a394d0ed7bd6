package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")
	require.Equal(t, "failed: boom", err.Error())
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test")
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New("credential.expired", "Credential expired")
	wrapped := fmt.Errorf("validator: %w", sentinel.WithInternal(stdErrors.New("cause")))

	require.ErrorIs(t, wrapped, sentinel)
	require.NotErrorIs(t, wrapped, ErrNotFound)
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrNotFound, FromError(ErrNotFound))
	require.Nil(t, FromError(nil))

	out := FromError(stdErrors.New("raw"))
	require.Equal(t, ErrInternal.Code, out.Code)
	require.EqualError(t, out.Internal, "raw")
}

func TestNilAppError(t *testing.T) {
	var e *AppError
	require.Equal(t, "<nil>", e.Error())
	require.Nil(t, e.Unwrap())
	require.Nil(t, e.WithInternal(stdErrors.New("x")))
}
