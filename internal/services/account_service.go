package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/cardmart/backend/internal/models"
)

// AccountService serves the authenticated user's balance, deposits,
// transaction history and push-token registration. All balance writes go
// through the ledger service.
type AccountService struct {
	db        *sql.DB
	ledger    *AccountLedgerService
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, ledger *AccountLedgerService) *AccountService {
	return &AccountService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// GetBalance returns the current balance
// @Summary Get balance
// @Description Get the authenticated account's balance in cents
// @Tags account
// @Produce json
// @Success 200 {object} object{accountId=string,balance=int64}
// @Failure 401 {object} ErrorResponse
// @Router /balance [get]
func (s *AccountService) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var balance int64
	err := s.db.QueryRowContext(r.Context(), `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			SendStoreError(w, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found"))
		} else {
			log.Printf("[ACCOUNT] Balance query failed for %s: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountId": accountID,
		"balance":   balance,
	})
}

// Deposit credits the account
// @Summary Deposit funds
// @Description Credit the authenticated account; amount is in cents and must be positive
// @Tags account
// @Accept json
// @Produce json
// @Param request body object{amount=int64} true "Deposit amount in cents"
// @Success 200 {object} object{newBalance=int64,ledgerEntryId=string}
// @Failure 400 {object} ErrorResponse
// @Router /deposit [post]
func (s *AccountService) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	newBalance, entryID, err := s.ledger.Deposit(r.Context(), accountID, req.Amount, "Account deposit")
	if err != nil {
		log.Printf("[ACCOUNT] Deposit failed for %s: %v", accountID, err)
		SendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"newBalance":    newBalance,
		"ledgerEntryId": entryID,
	})
}

// ListTransactions returns the account's ledger entries newest-first
// @Summary List transactions
// @Description Get the authenticated account's ledger entries, newest first
// @Tags account
// @Produce json
// @Param limit query int false "Number of entries to return (default: 50, max: 100)"
// @Success 200 {object} object{transactions=[]models.LedgerEntry,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /transactions [get]
func (s *AccountService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := s.ledger.ListEntries(r.Context(), accountID, limit)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to list transactions for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}

// RegisterPushToken stores a push token for purchase notifications
// @Summary Register push token
// @Description Attach a push-notification token to the authenticated account
// @Tags account
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Push token"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /push-token [post]
func (s *AccountService) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Token string `json:"token" validate:"required,min=8"`
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ExecContext(r.Context(),
		`UPDATE accounts SET push_token = $2, updated_at = NOW() WHERE id = $1`, accountID, req.Token)
	if err != nil {
		log.Printf("[ACCOUNT] Push token update failed for %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to register push token", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendStoreError(w, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found"))
		return
	}

	log.Printf("[ACCOUNT] Push token registered for account %s", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Push token registered"})
}
