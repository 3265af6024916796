package models

import "time"

// Authority represents the platform's single administrative identity
type Authority struct {
	ID        int64     `json:"id"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
