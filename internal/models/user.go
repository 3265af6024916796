package models

import "time"

// User represents a wallet-identified borrower
type User struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
