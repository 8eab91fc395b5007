package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// PricingService is the tier price catalog. Setting a tier price cascades
// to every unacquired card of that tier in the same transaction, so no
// reader ever observes a tier price inconsistent with its cards.
type PricingService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewPricingService(db *sql.DB) *PricingService {
	return &PricingService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// Get resolves the current price for a tier.
func (s *PricingService) Get(ctx context.Context, tier string) (int64, error) {
	var price int64
	err := s.db.QueryRowContext(ctx, `SELECT price FROM tier_pricing WHERE tier = $1`, tier).Scan(&price)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, models.NewStoreError(models.ErrCodeUnknownTier, "unknown tier")
		}
		return 0, err
	}
	return price, nil
}

func (s *PricingService) getTx(tx *sql.Tx, tier string) (int64, error) {
	var price int64
	err := tx.QueryRow(`SELECT price FROM tier_pricing WHERE tier = $1`, tier).Scan(&price)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, models.NewStoreError(models.ErrCodeUnknownTier, "unknown tier")
		}
		return 0, err
	}
	return price, nil
}

// Set upserts a tier price and re-syncs every unacquired card of that tier.
// Acquired cards keep the price they were bought at.
func (s *PricingService) Set(ctx context.Context, tier string, price int64) error {
	if price <= 0 {
		return models.NewStoreError(models.ErrCodeInvalidPrice, "tier price must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tier_pricing (tier, price)
		VALUES ($1, $2)
		ON CONFLICT (tier) DO UPDATE SET price = EXCLUDED.price`,
		tier, price)
	if err != nil {
		return err
	}

	cascaded, err := cascadeUnacquiredTx(tx, tier, price)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[PRICING] Tier %q set to %d, cascaded to %d unacquired cards", tier, price, cascaded)
	return nil
}

// List returns all tiers with their current prices.
func (s *PricingService) List(ctx context.Context) ([]models.TierPricing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tier, price FROM tier_pricing ORDER BY price`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := []models.TierPricing{}
	for rows.Next() {
		var t models.TierPricing
		if err := rows.Scan(&t.Tier, &t.Price); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}

	return tiers, rows.Err()
}

// ListTiers returns the tier catalog
// @Summary List tiers
// @Description Get all tiers with their current prices
// @Tags tiers
// @Produce json
// @Success 200 {array} models.TierPricing
// @Failure 500 {object} ErrorResponse
// @Router /tiers [get]
func (s *PricingService) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.List(r.Context())
	if err != nil {
		log.Printf("[PRICING] Failed to list tiers: %v", err)
		SendErrorResponse(w, "Failed to list tiers", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tiers)
}

// SetTierPrice updates a tier price and cascades it
// @Summary Set tier price
// @Description Update a tier's price; all unacquired cards of the tier are re-priced atomically
// @Tags admin
// @Accept json
// @Produce json
// @Param tier path string true "Tier name"
// @Param request body object{price=int64} true "New price in cents"
// @Success 200 {object} models.TierPricing
// @Failure 400 {object} ErrorResponse
// @Router /admin/tiers/{tier} [put]
func (s *PricingService) SetTierPrice(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")

	var req struct {
		Price int64 `json:"price" validate:"required,gt=0"`
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

	if err := s.Set(r.Context(), tier, req.Price); err != nil {
		SendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.TierPricing{Tier: tier, Price: req.Price})
}
