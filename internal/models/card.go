package models

import "time"

// CardRecord is one sellable card in the inventory. Price is a snapshot in
// cents taken from the tier pricing at creation time and re-synced by the
// tier cascade while the card is unacquired. Once Acquired flips to true the
// record keeps the price it was bought at and never becomes available again.
type CardRecord struct {
	ID          string    `json:"id" db:"id"`
	Number      string    `json:"number" db:"number"` // unique, 16 digits
	CVV         string    `json:"cvv" db:"cvv"`
	Expiry      string    `json:"expiry" db:"expiry"` // MM/YY
	HolderName  string    `json:"holderName" db:"holder_name"`
	HolderTaxID string    `json:"holderTaxId" db:"holder_tax_id"` // 11 digits
	Brand       string    `json:"brand" db:"brand"`
	Bank        string    `json:"bank" db:"bank"`
	Tier        string    `json:"tier" db:"tier"`
	Price       int64     `json:"price" db:"price"` // cents
	BIN         string    `json:"bin" db:"bin"`     // first 6 digits of number
	Acquired    bool      `json:"acquired" db:"acquired"`
	OwnerID     *string   `json:"ownerId,omitempty" db:"owner_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// CardFilter narrows available-card listings. Empty fields match everything.
type CardFilter struct {
	Brand string
	Bank  string
	Tier  string
}

// LastFour returns the last four digits of the card number for receipts and
// ledger descriptions.
func (c *CardRecord) LastFour() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}
