package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cardmart/backend/internal/models"
)

// PurchaseService composes the account ledger and the inventory into a
// single all-or-nothing purchase. The account row is always locked before
// the card row; the tier-price cascade touches cards only, so the ordering
// cannot deadlock against it.
type PurchaseService struct {
	db        *sql.DB
	ledger    *AccountLedgerService
	inventory *InventoryService
	pricing   *PricingService
	notifier  *NotifyService
	validator *ValidationHelper
}

// PurchaseResult is returned on a successful purchase.
type PurchaseResult struct {
	CardID        string `json:"cardId"`
	NewBalance    int64  `json:"newBalance"`
	LedgerEntryID string `json:"ledgerEntryId"`
}

func NewPurchaseService(db *sql.DB, ledger *AccountLedgerService, inventory *InventoryService, pricing *PricingService, notifier *NotifyService) *PurchaseService {
	return &PurchaseService{
		db:        db,
		ledger:    ledger,
		inventory: inventory,
		pricing:   pricing,
		notifier:  notifier,
		validator: NewValidationHelper(),
	}
}

// Purchase atomically debits the buyer, marks the card acquired and appends
// the ledger entry. Any precondition failure or commit failure leaves zero
// side effects. The push notification fires strictly after commit and never
// rolls anything back.
func (s *PurchaseService) Purchase(ctx context.Context, accountID, cardID string) (*PurchaseResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.ledger.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	card, err := s.inventory.lockUnacquired(tx, cardID)
	if err != nil {
		return nil, err
	}

	price := card.Price
	if price <= 0 {
		price, err = s.pricing.getTx(tx, card.Tier)
		if err != nil {
			return nil, models.WrapStoreError(models.ErrCodePriceUnresolved, "card price could not be resolved", err)
		}
	}

	if account.Balance < price {
		return nil, models.NewStoreError(models.ErrCodeInsufficientBalance, "insufficient balance")
	}

	description := fmt.Sprintf("Card purchase ****%s", card.LastFour())
	newBalance, entryID, err := s.ledger.ApplyEntryTx(tx, account, models.LedgerKindPurchase, -price, description)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.markAcquiredTx(tx, card.ID, accountID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[PURCHASE] Commit failed: account=%s card=%s: %v", accountID, cardID, err)
		return nil, err
	}

	log.Printf("[PURCHASE] Card %s sold to account %s for %d, balance now %d",
		card.ID, accountID, price, newBalance)

	if account.PushToken != nil && *account.PushToken != "" {
		message := fmt.Sprintf("Purchase complete: card ****%s for %d", card.LastFour(), price)
		go s.notifier.Push(*account.PushToken, message)
	}

	return &PurchaseResult{
		CardID:        card.ID,
		NewBalance:    newBalance,
		LedgerEntryID: entryID,
	}, nil
}

// PurchaseCard buys a card for the authenticated account
// @Summary Purchase a card
// @Description Atomically debit the balance and acquire the card
// @Tags purchase
// @Accept json
// @Produce json
// @Param request body object{cardId=string} true "Card to purchase"
// @Success 200 {object} PurchaseResult
// @Failure 402 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /purchase [post]
func (s *PurchaseService) PurchaseCard(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		CardID string `json:"cardId" validate:"required"`
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

	result, err := s.Purchase(r.Context(), accountID, req.CardID)
	if err != nil {
		log.Printf("[PURCHASE] Failed: account=%s card=%s: %v", accountID, req.CardID, err)
		SendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
