package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := Invalid("age", "age must be positive")
	assert.Equal(t, "age must be positive", err.Error())
	assert.Equal(t, "age", err.Field)

	wrapped := fmt.Errorf("advance: %w", err)
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestStoreError(t *testing.T) {
	err := &StoreError{Op: "update profile", Err: ErrNotFound, Retryable: false}
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "update profile: not found", err.Error())
	assert.False(t, IsRetryable(err))

	timeout := &StoreError{Op: "update profile", Err: errors.New("deadline exceeded"), Retryable: true}
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", timeout)))
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Op: "sign in", Err: ErrUnauthorized}
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "sign in: unauthorized", err.Error())
}
