package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewUserError("failed to store document", cause)

	assert.Equal(t, "failed to store document: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	var userErr *UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "failed to store document", userErr.UserMessage)
}

func TestUserError_NoCause(t *testing.T) {
	err := &UserError{UserMessage: "nothing to export"}
	assert.Equal(t, "nothing to export", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
