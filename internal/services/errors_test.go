package services

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewNotFoundError("missing"), http.StatusNotFound},
		{NewAuthError("nope"), http.StatusUnauthorized},
		{NewStorageError("db", errors.New("conn reset")), http.StatusInternalServerError},
		{ErrAccountNotValidated, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestAsError(t *testing.T) {
	t.Run("keeps service errors through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("history: %w", ErrAccountNotValidated)

		got := AsError(wrapped)
		assert.Same(t, ErrAccountNotValidated, got)
		assert.Equal(t, CodeAccountNotValidated, got.Code)
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		got := AsError(errors.New("pq: password authentication failed"))

		assert.Equal(t, KindStorage, got.Kind)
		assert.Equal(t, "An Internal Error Occurred", got.Message)
	})
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("Failed to load account", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, IsKind(err, KindStorage))
	assert.False(t, IsKind(err, KindValidation))
}

func TestNotFoundOr(t *testing.T) {
	assert.True(t, IsKind(notFoundOr(sql.ErrNoRows, "Account not found", "x"), KindNotFound))
	assert.True(t, IsKind(notFoundOr(errors.New("boom"), "x", "Failed"), KindStorage))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
}

func TestIsNumericOverflow(t *testing.T) {
	assert.True(t, isNumericOverflow(fmt.Errorf("update: %w", &pq.Error{Code: "22003"})))
	assert.False(t, isNumericOverflow(&pq.Error{Code: "23505"}))
	assert.False(t, isNumericOverflow(errors.New("22003")))
}
