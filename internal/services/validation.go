package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Success bool              `json:"success"`           // Always false
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Machine readable code
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// Validate runs struct validation and wraps failures as a validation error
// carrying per-field details.
func (vh *ValidationHelper) Validate(s any) error {
	err := vh.ValidateStruct(s)
	if err == nil {
		return nil
	}
	svcErr := NewValidationError("Validation failed")
	svcErr.Details = validationDetails(err)
	return svcErr
}

func validationDetails(validationErr error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(validationErr, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, err := range fieldErrs {
		details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
	}
	return details
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = validationDetails(validationErr)
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendError writes any service error using its kind for the status code.
func SendError(w http.ResponseWriter, err error) {
	svcErr := AsError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.StatusCode())

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   svcErr.Message,
		Code:    svcErr.Code,
		Details: svcErr.Details,
	})
}

// SendJSON writes a JSON success payload
func SendJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
