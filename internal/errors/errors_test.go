package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeNetwork, "reach backend")

	require.Error(t, err)
	assert.Equal(t, "reach backend: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsNetwork(err))
	assert.False(t, IsNotFound(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Wrap(nil, ErrCodeInternal, "no-op"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "no-op %d", 1))
}

func TestCodePredicatesThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := InvalidCredentials("sign-in rejected")
	outer := fmt.Errorf("login handler: %w", inner)

	assert.True(t, IsInvalidCredentials(outer))
	assert.Equal(t, ErrCodeInvalidCredentials, GetCode(outer))
	assert.Equal(t, ErrorCode(""), GetCode(stderrors.New("plain")))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NotFoundf("user %q", "a@b.c")))
	assert.True(t, IsValidation(Validation("email required")))
	assert.True(t, IsUnauthenticated(Unauthenticated("no session")))
	assert.True(t, IsForbidden(Forbidden("admins only")))
}
