package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid card input", func(t *testing.T) {
		input := validCardInput()

		err := vh.ValidateStruct(&input)
		assert.NoError(t, err)
	})

	t.Run("invalid card input collects all failures", func(t *testing.T) {
		input := validCardInput()
		input.Number = "4111"      // Too short
		input.CVV = "12a"          // Not numeric
		input.HolderTaxID = "1234" // Too short

		err := vh.ValidateStruct(&input)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation details", func(t *testing.T) {
		vh := NewValidationHelper()
		input := validCardInput()
		input.Number = "4111"
		input.CVV = "12a"

		validationErr := vh.ValidateStruct(&input)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Equal(t, models.ErrCodeInvalidCardField, response.Code)
		assert.Contains(t, response.Details, "Number")
		assert.Contains(t, response.Details, "CVV")
	})
}

func TestSendStoreError(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		status int
	}{
		{"account not found", models.ErrCodeAccountNotFound, http.StatusNotFound},
		{"unknown tier", models.ErrCodeUnknownTier, http.StatusNotFound},
		{"card unavailable", models.ErrCodeCardUnavailable, http.StatusConflict},
		{"duplicate username", models.ErrCodeDuplicateUsername, http.StatusConflict},
		{"conflict", models.ErrCodeConflict, http.StatusConflict},
		{"invalid amount", models.ErrCodeInvalidAmount, http.StatusBadRequest},
		{"invalid price", models.ErrCodeInvalidPrice, http.StatusBadRequest},
		{"insufficient balance", models.ErrCodeInsufficientBalance, http.StatusPaymentRequired},
		{"unauthorized", models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{"internal error", models.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			SendStoreError(w, models.NewStoreError(tc.code, tc.name))

			assert.Equal(t, tc.status, w.Code)

			var response ErrorResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)
			assert.Equal(t, tc.code, response.Code)
		})
	}

	t.Run("plain error maps to 500", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendStoreError(w, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNewID(t *testing.T) {
	a := newID()
	b := newID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
