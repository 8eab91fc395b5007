package models

import "time"

// Ledger entry kinds.
const (
	LedgerKindPurchase = "purchase"
	LedgerKindDeposit  = "deposit"
)

// LedgerEntry is an immutable record of one balance-affecting event.
// Entries are append-only; an account's balance is always derivable as the
// sum of its entry amounts.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"accountId" db:"account_id"`
	Kind        string    `json:"kind" db:"kind"`
	Amount      int64     `json:"amount" db:"amount"` // cents, negative for purchases
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// TierPricing maps a tier name to its current price in cents.
type TierPricing struct {
	Tier  string `json:"tier" db:"tier"`
	Price int64  `json:"price" db:"price"`
}
