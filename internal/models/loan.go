package models

import (
	"math/big"
	"time"
)

// Loan represents a borrowing record. Amount is in integer base units
// (scaled by the token's decimals).
type Loan struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TokenID      int64     `json:"token_id"`
	Amount       *big.Int  `json:"amount"`
	InterestRate float64   `json:"interest_rate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoanDetail is a loan joined with its token, user and transaction records
type LoanDetail struct {
	Loan
	Token Token      `json:"token"`
	User  User       `json:"user"`
	Txs   []TxRecord `json:"txs"`
}

// ReadableLoan is the flattened, human-readable form of a loan returned
// by the API. Amount is rescaled by the token's decimals.
type ReadableLoan struct {
	LoanID       int64     `json:"loanId"`
	TokenAddress string    `json:"tokenAddress"`
	TokenName    string    `json:"tokenName"`
	UserAddress  string    `json:"userAddress"`
	TxID         string    `json:"txId,omitempty"`
	Amount       string    `json:"amount"`
	InterestRate float64   `json:"interestRate"`
	Timestamp    time.Time `json:"timestamp"`
}
