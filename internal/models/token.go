package models

import "time"

// Token represents an off-chain record of a mintable on-chain asset
type Token struct {
	ID          int64     `json:"id"`
	Address     string    `json:"address"`
	AtaAddress  string    `json:"ata_address"`
	Decimals    int       `json:"decimals"`
	Name        string    `json:"name"`
	AuthorityID int64     `json:"authority_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
