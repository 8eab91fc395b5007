package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrorResponse represents the JSON error envelope. Code is one of the
// stable error codes from the models package.
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Stable error code
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

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if verrs, ok := validationErr.(validator.ValidationErrors); ok {
		errorResp.Code = models.ErrCodeInvalidCardField
		errorResp.Details = make(map[string]string)
		for _, err := range verrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendStoreError maps a business failure to its HTTP status and writes the
// standard error envelope with the stable code.
func SendStoreError(w http.ResponseWriter, err error) {
	code := models.ErrorCode(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(code))
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
}

func statusForCode(code string) int {
	switch code {
	case models.ErrCodeAccountNotFound, models.ErrCodeUnknownTier, models.ErrCodePriceUnresolved:
		return http.StatusNotFound
	case models.ErrCodeCardUnavailable, models.ErrCodeDuplicateCard,
		models.ErrCodeDuplicateUsername, models.ErrCodeConflict:
		return http.StatusConflict
	case models.ErrCodeInvalidAmount, models.ErrCodeInvalidPrice, models.ErrCodeInvalidCardField:
		return http.StatusBadRequest
	case models.ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// newID is the single ID-generation strategy for accounts, cards and ledger
// entries.
func newID() string {
	return uuid.NewString()
}
