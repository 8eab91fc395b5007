package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cardmart/backend/internal/models"
	"github.com/lib/pq"
)

// InventoryService owns card acquisition-state transitions. Cards enter as
// unacquired and flip to acquired exactly once, only through the purchase
// orchestrator's transaction.
type InventoryService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// CardInput is the admin-facing payload for creating a card record.
type CardInput struct {
	Number      string `json:"number" validate:"required,len=16,numeric"`
	CVV         string `json:"cvv" validate:"required,len=3,numeric"`
	Expiry      string `json:"expiry" validate:"required"`
	HolderName  string `json:"holderName" validate:"required,min=2"`
	HolderTaxID string `json:"holderTaxId" validate:"required,len=11,numeric"`
	Brand       string `json:"brand" validate:"required"`
	Bank        string `json:"bank" validate:"required"`
	Tier        string `json:"tier" validate:"required"`
}

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

func NewInventoryService(db *sql.DB) *InventoryService {
	return &InventoryService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

const cardColumns = `id, number, cvv, expiry, holder_name, holder_tax_id, brand, bank, tier, price, bin, acquired, owner_id, created_at`

func scanCard(scanner interface{ Scan(...any) error }) (*models.CardRecord, error) {
	var c models.CardRecord
	err := scanner.Scan(&c.ID, &c.Number, &c.CVV, &c.Expiry, &c.HolderName, &c.HolderTaxID,
		&c.Brand, &c.Bank, &c.Tier, &c.Price, &c.BIN, &c.Acquired, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAvailable returns unacquired cards matching the filter. Each call runs
// a fresh query; listings may observe state that changes immediately after.
func (s *InventoryService) ListAvailable(ctx context.Context, filter models.CardFilter) ([]models.CardRecord, error) {
	var conditions []string
	var args []any
	argIndex := 1

	conditions = append(conditions, "acquired = FALSE")

	if filter.Brand != "" {
		conditions = append(conditions, fmt.Sprintf("brand = $%d", argIndex))
		args = append(args, filter.Brand)
		argIndex++
	}
	if filter.Bank != "" {
		conditions = append(conditions, fmt.Sprintf("bank = $%d", argIndex))
		args = append(args, filter.Bank)
		argIndex++
	}
	if filter.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argIndex))
		args = append(args, filter.Tier)
		argIndex++
	}

	query := `SELECT ` + cardColumns + ` FROM card_records WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.CardRecord{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}

	return cards, rows.Err()
}

// ListAll returns every card, acquired or not, for the admin surface.
func (s *InventoryService) ListAll(ctx context.Context) ([]models.CardRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM card_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.CardRecord{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}

	return cards, rows.Err()
}

// Get fetches one card by id.
func (s *InventoryService) Get(ctx context.Context, cardID string) (*models.CardRecord, error) {
	card, err := scanCard(s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM card_records WHERE id = $1`, cardID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewStoreError(models.ErrCodeCardUnavailable, "card not found")
		}
		return nil, err
	}
	return card, nil
}

// Create validates and inserts a new unacquired card. The price is
// snapshotted from the tier catalog inside the insert itself, so a
// concurrent tier re-price can never leave the new row carrying a stale
// price.
func (s *InventoryService) Create(ctx context.Context, input CardInput) (*models.CardRecord, error) {
	if err := s.validator.ValidateStruct(&input); err != nil {
		return nil, models.WrapStoreError(models.ErrCodeInvalidCardField, "invalid card field", err)
	}
	if !expiryPattern.MatchString(input.Expiry) {
		return nil, models.NewStoreError(models.ErrCodeInvalidCardField, "expiry must match MM/YY")
	}

	card := &models.CardRecord{
		ID:          newID(),
		Number:      input.Number,
		CVV:         input.CVV,
		Expiry:      input.Expiry,
		HolderName:  input.HolderName,
		HolderTaxID: input.HolderTaxID,
		Brand:       input.Brand,
		Bank:        input.Bank,
		Tier:        input.Tier,
		BIN:         input.Number[:6],
		CreatedAt:   time.Now(),
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO card_records (id, number, cvv, expiry, holder_name, holder_tax_id, brand, bank, tier, price, bin, acquired, owner_id, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, tier, price, $9, FALSE, NULL, $10
		FROM tier_pricing
		WHERE tier = $11
		RETURNING price`,
		card.ID, card.Number, card.CVV, card.Expiry, card.HolderName, card.HolderTaxID,
		card.Brand, card.Bank, card.BIN, card.CreatedAt, card.Tier).Scan(&card.Price)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewStoreError(models.ErrCodeUnknownTier, "unknown tier")
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, models.NewStoreError(models.ErrCodeDuplicateCard, "card number already exists")
		}
		return nil, err
	}

	log.Printf("[INVENTORY] Card created: id=%s tier=%s bin=%s", card.ID, card.Tier, card.BIN)
	return card, nil
}

// Update edits the mutable fields of an unacquired card. Acquired cards are
// frozen.
func (s *InventoryService) Update(ctx context.Context, cardID string, holderName, brand, bank string) (*models.CardRecord, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE card_records
		SET holder_name = COALESCE(NULLIF($2, ''), holder_name),
		    brand = COALESCE(NULLIF($3, ''), brand),
		    bank = COALESCE(NULLIF($4, ''), bank)
		WHERE id = $1 AND acquired = FALSE`,
		cardID, holderName, brand, bank)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, models.NewStoreError(models.ErrCodeCardUnavailable, "card not found or already acquired")
	}

	return s.Get(ctx, cardID)
}

// Delete removes an unacquired card. Acquired cards stay on record for the
// owner's history.
func (s *InventoryService) Delete(ctx context.Context, cardID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM card_records WHERE id = $1 AND acquired = FALSE`, cardID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.NewStoreError(models.ErrCodeCardUnavailable, "card not found or already acquired")
	}

	return nil
}

// lockUnacquired takes a row lock on a card that is still for sale. A card
// that is absent or already sold is reported the same way, so a racing buyer
// cannot tell the two apart.
func (s *InventoryService) lockUnacquired(tx *sql.Tx, cardID string) (*models.CardRecord, error) {
	card, err := scanCard(tx.QueryRow(`
		SELECT `+cardColumns+`
		FROM card_records
		WHERE id = $1 AND acquired = FALSE
		FOR UPDATE`, cardID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewStoreError(models.ErrCodeCardUnavailable, "card unavailable")
		}
		return nil, err
	}
	return card, nil
}

// markAcquiredTx flips a card to acquired inside the purchase transaction.
// Only the purchase orchestrator calls this; there is no public mutation
// that bypasses the balance check.
func (s *InventoryService) markAcquiredTx(tx *sql.Tx, cardID, accountID string) error {
	result, err := tx.Exec(`
		UPDATE card_records
		SET acquired = TRUE, owner_id = $2
		WHERE id = $1 AND acquired = FALSE`,
		cardID, accountID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.NewStoreError(models.ErrCodeCardUnavailable, "card unavailable")
	}

	return nil
}

// cascadeUnacquiredTx re-prices every unacquired card of a tier. Runs inside
// the pricing catalog's transaction; acquired rows are never touched.
func cascadeUnacquiredTx(tx *sql.Tx, tier string, price int64) (int64, error) {
	result, err := tx.Exec(`
		UPDATE card_records
		SET price = $2
		WHERE tier = $1 AND acquired = FALSE`,
		tier, price)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListAvailableCards lists purchasable cards
// @Summary List available cards
// @Description Get unacquired cards, optionally filtered by brand, bank or tier
// @Tags cards
// @Produce json
// @Param brand query string false "Filter by brand"
// @Param bank query string false "Filter by bank"
// @Param tier query string false "Filter by tier"
// @Success 200 {object} object{cards=[]models.CardRecord,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /cards [get]
func (s *InventoryService) ListAvailableCards(w http.ResponseWriter, r *http.Request) {
	filter := models.CardFilter{
		Brand: strings.TrimSpace(r.URL.Query().Get("brand")),
		Bank:  strings.TrimSpace(r.URL.Query().Get("bank")),
		Tier:  strings.TrimSpace(r.URL.Query().Get("tier")),
	}

	cards, err := s.ListAvailable(r.Context(), filter)
	if err != nil {
		log.Printf("[INVENTORY] Failed to list available cards: %v", err)
		SendErrorResponse(w, "Failed to list cards", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}
