package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterRequest() RegisterRequest {
	return RegisterRequest{
		FirstName:  "Juan",
		LastName:   "Dela Cruz",
		LRN:        "123456789012",
		GradeLevel: "7",
		Section:    "St. Joseph",
		Email:      "juan@example.com",
		Password:   "password123",
	}
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid registration", func(t *testing.T) {
		req := validRegisterRequest()
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("invalid registration fields", func(t *testing.T) {
		req := validRegisterRequest()
		req.LRN = "12-34"
		req.GradeLevel = "13"
		req.Password = "123"

		err := vh.ValidateStruct(&req)
		require.Error(t, err)

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 3)
	})

	t.Run("invalid email format", func(t *testing.T) {
		req := validRegisterRequest()
		req.Email = "invalid-email"

		err := vh.ValidateStruct(&req)
		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Email", validationErrors[0].Field())
		assert.Equal(t, "email", validationErrors[0].Tag())
	})
}

func TestValidationHelper_Validate(t *testing.T) {
	vh := NewValidationHelper()

	req := validRegisterRequest()
	req.GradeLevel = "0"

	err := vh.Validate(&req)
	require.Error(t, err)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, KindValidation, svcErr.Kind)
	assert.Equal(t, "Validation failed", svcErr.Message)
	assert.Equal(t, "Field Validation Failed on 'oneof' tag", svcErr.Details["GradeLevel"])
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Success)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		req := LoginRequest{}

		validationErr := vh.ValidateStruct(&req)
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "LRN")
		assert.Contains(t, response.Details, "Password")
	})
}

func TestSendError(t *testing.T) {
	t.Run("pending verification carries a code", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendError(w, ErrAccountNotValidated)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Account is pending verification", body["error"])
		assert.Equal(t, CodeAccountNotValidated, body["code"])
		assert.NotContains(t, body, "details")
	})

	t.Run("storage cause is not leaked", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendError(w, NewStorageError("Failed to record payment", errors.New("pq: deadlock detected")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "deadlock")
		assert.Contains(t, w.Body.String(), "Failed to record payment")
	})
}

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSON(w, http.StatusCreated, map[string]any{"success": true})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}
