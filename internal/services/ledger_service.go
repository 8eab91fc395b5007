package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/cardmart/backend/internal/models"
)

// AccountLedgerService owns every balance mutation. A mutation and its
// ledger entry commit together or not at all; feature code never writes
// the balance column directly.
type AccountLedgerService struct {
	db *sql.DB
}

func NewAccountLedgerService(db *sql.DB) *AccountLedgerService {
	return &AccountLedgerService{db: db}
}

// lockAccount takes a row lock on the account for the duration of the
// caller's transaction.
func (s *AccountLedgerService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, balance, version, push_token
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Version, &account.PushToken)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewStoreError(models.ErrCodeAccountNotFound, "account not found")
		}
		return nil, err
	}
	return &account, nil
}

// ApplyEntryTx debits or credits an already-locked account and appends the
// matching ledger entry inside the caller's transaction. The returned
// balance is the committed-to-be balance; the caller still owns the commit.
func (s *AccountLedgerService) ApplyEntryTx(tx *sql.Tx, account *models.Account, kind string, amount int64, description string) (int64, string, error) {
	newBalance := account.Balance + amount
	if newBalance < 0 {
		return 0, "", models.NewStoreError(models.ErrCodeInsufficientBalance, "insufficient balance")
	}

	if err := s.updateAccountBalance(tx, account.ID, newBalance, account.Version); err != nil {
		return 0, "", err
	}

	entryID := newID()
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, account_id, kind, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entryID, account.ID, kind, amount, description, time.Now())
	if err != nil {
		return 0, "", err
	}

	return newBalance, entryID, nil
}

// ApplyEntry runs ApplyEntryTx in its own transaction.
func (s *AccountLedgerService) ApplyEntry(ctx context.Context, accountID, kind string, amount int64, description string) (int64, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return 0, "", err
	}

	newBalance, entryID, err := s.ApplyEntryTx(tx, account, kind, amount, description)
	if err != nil {
		return 0, "", err
	}

	if err := tx.Commit(); err != nil {
		return 0, "", err
	}

	log.Printf("[LEDGER] Entry %s applied: account=%s kind=%s amount=%d balance=%d",
		entryID, accountID, kind, amount, newBalance)
	return newBalance, entryID, nil
}

// Deposit credits an account. The amount must be strictly positive; zero or
// negative deposits are rejected with no effect.
func (s *AccountLedgerService) Deposit(ctx context.Context, accountID string, amount int64, description string) (int64, string, error) {
	if amount <= 0 {
		return 0, "", models.NewStoreError(models.ErrCodeInvalidAmount, "deposit amount must be positive")
	}
	if description == "" {
		description = "Account deposit"
	}
	return s.ApplyEntry(ctx, accountID, models.LedgerKindDeposit, amount, description)
}

// updateAccountBalance is version-checked; a concurrent writer that slipped
// between our lock and update surfaces as zero rows affected.
func (s *AccountLedgerService) updateAccountBalance(tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return models.NewStoreError(models.ErrCodeConflict, "account was modified concurrently")
	}

	return nil
}

// ListEntries returns an account's ledger entries newest-first.
func (s *AccountLedgerService) ListEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	} else if limit > 100 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, kind, amount, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
