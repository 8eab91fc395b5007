package services

import (
	"bytes"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/cardmart/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// ReceiptService renders a scannable receipt for a ledger entry. The QR
// payload carries a short-lived nonce stored in Redis so a receipt can be
// verified as fresh by a scanner.
type ReceiptService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewReceiptService(db *sql.DB, redisClient *redis.Client) *ReceiptService {
	return &ReceiptService{db: db, redis: redisClient}
}

// ReceiptQR renders a QR receipt for one of the caller's ledger entries
// @Summary Get receipt QR
// @Description Render a QR-encoded receipt for a ledger entry owned by the authenticated account
// @Tags account
// @Produce json
// @Param entryId path string true "Ledger entry ID"
// @Success 200 {object} object{reference=string,qr=string}
// @Failure 404 {object} ErrorResponse
// @Router /receipts/{entryId}/qr [get]
func (s *ReceiptService) ReceiptQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	entryID := chi.URLParam(r, "entryId")

	var entry models.LedgerEntry
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, account_id, kind, amount, description, created_at
		FROM ledger_entries
		WHERE id = $1 AND account_id = $2`, entryID, accountID).
		Scan(&entry.ID, &entry.AccountID, &entry.Kind, &entry.Amount, &entry.Description, &entry.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Receipt not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[RECEIPT] Failed to fetch entry %s: %v", entryID, err)
			SendErrorResponse(w, "Failed to fetch receipt", http.StatusInternalServerError, nil)
		}
		return
	}

	payload := map[string]any{
		"entryId":   entry.ID,
		"accountId": entry.AccountID,
		"kind":      entry.Kind,
		"amount":    entry.Amount,
		"timestamp": entry.CreatedAt.Unix(),
		"nonce":     generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		SendErrorResponse(w, "Failed to build receipt", http.StatusInternalServerError, nil)
		return
	}

	reference := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("receipt:%s", reference)
		if err := s.redis.Set(r.Context(), key, jsonData, 5*time.Minute).Err(); err != nil {
			log.Printf("[RECEIPT] Failed to store receipt nonce: %v", err)
		}
	}

	qr, err := qrcode.New(reference, qrcode.Medium)
	if err != nil {
		log.Printf("[RECEIPT] QR generation failed for entry %s: %v", entryID, err)
		SendErrorResponse(w, "Failed to render receipt", http.StatusInternalServerError, nil)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to render receipt", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"reference": reference,
		"qr":        base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
