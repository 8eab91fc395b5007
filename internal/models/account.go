package models

import "time"

// Account represents a storefront user. Balance is held in minor units
// (cents) and is only ever written through the account ledger service.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"` // unique, stored lowercased
	PasswordHash string    `json:"-" db:"password_hash"`
	Balance      int64     `json:"balance" db:"balance"`
	IsAdmin      bool      `json:"isAdmin" db:"is_admin"`
	PushToken    *string   `json:"pushToken,omitempty" db:"push_token"`
	Version      int       `json:"-" db:"version"` // for optimistic locking
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
