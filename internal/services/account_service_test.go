package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cardmart/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func authedRequest(method, target string, body *bytes.Buffer, accountID string) *http.Request {
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, body)
	}
	return r.WithContext(context.WithValue(r.Context(), "userID", accountID))
}

func TestAccountService_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewAccountLedgerService(db))

	t.Run("successful balance fetch", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM accounts WHERE id = \\$1").
			WithArgs("acct-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(4200)))

		w := httptest.NewRecorder()
		service.GetBalance(w, authedRequest("GET", "/balance", nil, "acct-1"))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(4200), resp["balance"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing auth context", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/balance", nil)
		w := httptest.NewRecorder()

		service.GetBalance(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAccountService_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewAccountLedgerService(db))

	t.Run("successful deposit returns new balance", func(t *testing.T) {
		mock.ExpectBegin()
		expectAccountLock(mock, "acct-1", 100, 2)
		mock.ExpectExec("UPDATE accounts SET balance = \\$1").
			WithArgs(int64(150), sqlmock.AnyArg(), "acct-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "acct-1", models.LedgerKindDeposit, int64(50), "Account deposit", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		service.Deposit(w, authedRequest("POST", "/deposit", bytes.NewBufferString(`{"amount":50}`), "acct-1"))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(150), resp["newBalance"])
		assert.NotEmpty(t, resp["ledgerEntryId"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative amount maps to 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.Deposit(w, authedRequest("POST", "/deposit", bytes.NewBufferString(`{"amount":-5}`), "acct-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), models.ErrCodeInvalidAmount)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.Deposit(w, authedRequest("POST", "/deposit", bytes.NewBufferString("invalid"), "acct-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewAccountLedgerService(db))

	t.Run("transactions returned with count", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, account_id, kind, amount, description, created_at FROM ledger_entries").
			WithArgs("acct-1", 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "amount", "description", "created_at"}).
				AddRow("e1", "acct-1", models.LedgerKindDeposit, int64(5000), "Top up", time.Now()))

		w := httptest.NewRecorder()
		service.ListTransactions(w, authedRequest("GET", "/transactions?limit=10", nil, "acct-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_RegisterPushToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewAccountLedgerService(db))

	t.Run("token stored", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET push_token = \\$2").
			WithArgs("acct-1", "expo-push-token-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		service.RegisterPushToken(w, authedRequest("POST", "/push-token",
			bytes.NewBufferString(`{"token":"expo-push-token-1"}`), "acct-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short token rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.RegisterPushToken(w, authedRequest("POST", "/push-token",
			bytes.NewBufferString(`{"token":"x"}`), "acct-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET push_token = \\$2").
			WithArgs("ghost", "expo-push-token-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := httptest.NewRecorder()
		service.RegisterPushToken(w, authedRequest("POST", "/push-token",
			bytes.NewBufferString(`{"token":"expo-push-token-1"}`), "ghost"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
