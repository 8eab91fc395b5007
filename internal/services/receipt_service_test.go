package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cardmart/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestReceiptService_ReceiptQR(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	newRouter := func(service *ReceiptService) *chi.Mux {
		r := chi.NewRouter()
		r.Get("/receipts/{entryId}/qr", func(w http.ResponseWriter, req *http.Request) {
			service.ReceiptQR(w, req.WithContext(context.WithValue(req.Context(), "userID", "acct-1")))
		})
		return r
	}

	t.Run("receipt rendered and nonce stored", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewReceiptService(db, redisClient)

		mock.ExpectQuery("SELECT id, account_id, kind, amount, description, created_at FROM ledger_entries WHERE id = \\$1 AND account_id = \\$2").
			WithArgs("e1", "acct-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "amount", "description", "created_at"}).
				AddRow("e1", "acct-1", models.LedgerKindPurchase, int64(-2500), "Card purchase ****1234", time.Now()))
		redisMock.Regexp().ExpectSet(`receipt:.*`, `.*`, 5*time.Minute).SetVal("OK")

		req := httptest.NewRequest("GET", "/receipts/e1/qr", nil)
		w := httptest.NewRecorder()

		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["reference"])
		assert.NotEmpty(t, resp["qr"])
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("another account's entry is not visible", func(t *testing.T) {
		service := NewReceiptService(db, nil)

		mock.ExpectQuery("SELECT id, account_id, kind, amount, description, created_at FROM ledger_entries WHERE id = \\$1 AND account_id = \\$2").
			WithArgs("e-other", "acct-1").
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest("GET", "/receipts/e-other/qr", nil)
		w := httptest.NewRecorder()

		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("works without redis", func(t *testing.T) {
		service := NewReceiptService(db, nil)

		mock.ExpectQuery("SELECT id, account_id, kind, amount, description, created_at FROM ledger_entries WHERE id = \\$1 AND account_id = \\$2").
			WithArgs("e1", "acct-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "amount", "description", "created_at"}).
				AddRow("e1", "acct-1", models.LedgerKindDeposit, int64(5000), "Top up", time.Now()))

		req := httptest.NewRequest("GET", "/receipts/e1/qr", nil)
		w := httptest.NewRecorder()

		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
