package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// AdminService serves the administrative surface: account management and
// card inventory CRUD. Balance-affecting operations are not reachable here;
// those run only through the ledger service and the purchase orchestrator.
type AdminService struct {
	db        *sql.DB
	inventory *InventoryService
	validator *ValidationHelper
}

func NewAdminService(db *sql.DB, inventory *InventoryService) *AdminService {
	return &AdminService{
		db:        db,
		inventory: inventory,
		validator: NewValidationHelper(),
	}
}

// ListAccounts lists all accounts
// @Summary List accounts
// @Description Get all registered accounts
// @Tags admin
// @Produce json
// @Success 200 {object} object{accounts=[]models.Account,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /admin/accounts [get]
func (s *AdminService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, username, balance, is_admin, push_token, created_at
		FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		log.Printf("[ADMIN] Failed to list accounts: %v", err)
		SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Balance, &a.IsAdmin, &a.PushToken, &a.CreatedAt); err != nil {
			log.Printf("[ADMIN] Failed to scan account: %v", err)
			SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
			return
		}
		accounts = append(accounts, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// UpdateAccount updates an account's admin flag or push token
// @Summary Update account
// @Description Update an account's admin flag or push token; balance is not writable here
// @Tags admin
// @Accept json
// @Produce json
// @Param accountId path string true "Account ID"
// @Param request body object{isAdmin=bool,pushToken=string} true "Fields to update"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/accounts/{accountId} [put]
func (s *AdminService) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req struct {
		IsAdmin   *bool   `json:"isAdmin"`
		PushToken *string `json:"pushToken"`
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

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE accounts
		SET is_admin = COALESCE($2, is_admin),
		    push_token = COALESCE($3, push_token),
		    updated_at = NOW()
		WHERE id = $1`,
		accountID, req.IsAdmin, req.PushToken)
	if err != nil {
		log.Printf("[ADMIN] Failed to update account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendStoreError(w, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found"))
		return
	}

	log.Printf("[ADMIN] Account %s updated", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account updated"})
}

// DeleteAccount removes an account along with its acquired cards and ledger
// entries
// @Summary Delete account
// @Description Delete an account; its acquired cards and ledger entries go with it
// @Tags admin
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/accounts/{accountId} [delete]
func (s *AdminService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		log.Printf("[ADMIN] Failed to delete account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	// Acquired cards reference the account, so they must go first.
	if _, err := tx.Exec(`DELETE FROM card_records WHERE owner_id = $1`, accountID); err != nil {
		log.Printf("[ADMIN] Failed to delete cards for account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	result, err := tx.Exec(`DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		log.Printf("[ADMIN] Failed to delete account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendStoreError(w, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found"))
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ADMIN] Failed to delete account %s: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ADMIN] Account %s deleted", accountID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account deleted"})
}

// ListAllCards lists the full inventory
// @Summary List all cards
// @Description Get every card record, acquired or not
// @Tags admin
// @Produce json
// @Success 200 {object} object{cards=[]models.CardRecord,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /admin/cards [get]
func (s *AdminService) ListAllCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.inventory.ListAll(r.Context())
	if err != nil {
		log.Printf("[ADMIN] Failed to list cards: %v", err)
		SendErrorResponse(w, "Failed to list cards", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}

// CreateCard adds a card to the inventory
// @Summary Create card
// @Description Create a new unacquired card record; price is snapshotted from the tier catalog
// @Tags admin
// @Accept json
// @Produce json
// @Param card body CardInput true "Card data"
// @Success 201 {object} models.CardRecord
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/cards [post]
func (s *AdminService) CreateCard(w http.ResponseWriter, r *http.Request) {
	var input CardInput

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&input); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	card, err := s.inventory.Create(r.Context(), input)
	if err != nil {
		log.Printf("[ADMIN] Card creation failed: %v", err)
		SendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(card)
}

// UpdateCard edits an unacquired card
// @Summary Update card
// @Description Update the mutable fields of an unacquired card
// @Tags admin
// @Accept json
// @Produce json
// @Param cardId path string true "Card ID"
// @Param request body object{holderName=string,brand=string,bank=string} true "Fields to update"
// @Success 200 {object} models.CardRecord
// @Failure 409 {object} ErrorResponse
// @Router /admin/cards/{cardId} [put]
func (s *AdminService) UpdateCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")

	var req struct {
		HolderName string `json:"holderName"`
		Brand      string `json:"brand"`
		Bank       string `json:"bank"`
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

	card, err := s.inventory.Update(r.Context(), cardID, req.HolderName, req.Brand, req.Bank)
	if err != nil {
		log.Printf("[ADMIN] Card update failed for %s: %v", cardID, err)
		SendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(card)
}

// DeleteCard removes an unacquired card
// @Summary Delete card
// @Description Delete an unacquired card; acquired cards stay on record
// @Tags admin
// @Produce json
// @Param cardId path string true "Card ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Router /admin/cards/{cardId} [delete]
func (s *AdminService) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")

	if err := s.inventory.Delete(r.Context(), cardID); err != nil {
		log.Printf("[ADMIN] Card deletion failed for %s: %v", cardID, err)
		SendStoreError(w, err)
		return
	}

	log.Printf("[ADMIN] Card %s deleted", cardID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Card deleted"})
}
