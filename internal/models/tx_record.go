package models

import "time"

// Transaction record modes
const (
	TxModePayment = "PAYMENT"
)

// TxRecord is the off-chain mirror of an on-chain transfer
type TxRecord struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Mode      string    `json:"mode"`
	TxID      string    `json:"tx_id"`
	CreatedAt time.Time `json:"created_at"`
}
