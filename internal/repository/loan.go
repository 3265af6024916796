package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/streamlend/lending-service/internal/models"
)

// CreateLoan records a new loan. The user row is created on first loan
// (connect-or-create); the token is connected by its on-chain address.
func (r *Repository) CreateLoan(ctx context.Context, walletAddress, tokenAddress string, amount *big.Int, interestRate float64) (*models.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	userQuery := `
		INSERT INTO lending.users (wallet_address, created_at, updated_at)
		VALUES ($1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (wallet_address) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		RETURNING id`
	if err := tx.QueryRowContext(ctx, userQuery, walletAddress).Scan(&userID); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var tokenID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM lending.tokens WHERE address = $1`, tokenAddress).Scan(&tokenID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	loan := &models.Loan{
		UserID:       userID,
		TokenID:      tokenID,
		Amount:       new(big.Int).Set(amount),
		InterestRate: interestRate,
	}
	loanQuery := `
		INSERT INTO lending.loans (user_id, token_id, amount, interest_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, loanQuery, userID, tokenID, amount.String(), interestRate).
		Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loan: %w", err)
	}
	return loan, nil
}

// FindLoansByUser retrieves a user's outstanding loans, optionally filtered
// by token address (empty string matches all tokens)
func (r *Repository) FindLoansByUser(ctx context.Context, walletAddress, tokenAddress string) ([]models.LoanDetail, error) {
	query := loanDetailQuery + `
		WHERE u.wallet_address = $1 AND ($2 = '' OR t.address = $2)
		ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, query, walletAddress, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	return scanLoanDetails(rows)
}

// FindAllLoans retrieves every outstanding loan across all users
func (r *Repository) FindAllLoans(ctx context.Context) ([]models.LoanDetail, error) {
	rows, err := r.db.QueryContext(ctx, loanDetailQuery+` ORDER BY l.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	return scanLoanDetails(rows)
}

// CreateTxRecord stores the off-chain mirror of an on-chain transfer
func (r *Repository) CreateTxRecord(ctx context.Context, loanID int64, mode, txID string) (*models.TxRecord, error) {
	record := &models.TxRecord{LoanID: loanID, Mode: mode, TxID: txID}
	query := `
		INSERT INTO lending.txs (loan_id, mode, tx_id, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, loanID, mode, txID).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tx record: %w", err)
	}
	return record, nil
}

const loanDetailQuery = `
	SELECT l.id, l.user_id, l.token_id, l.amount, l.interest_rate, l.created_at, l.updated_at,
	       t.id, t.address, t.ata_address, t.decimals, t.name, t.authority_id, t.created_at, t.updated_at,
	       u.id, u.wallet_address, u.created_at, u.updated_at,
	       x.id, x.loan_id, x.mode, x.tx_id, x.created_at
	FROM lending.loans l
	JOIN lending.tokens t ON t.id = l.token_id
	JOIN lending.users u ON u.id = l.user_id
	LEFT JOIN lending.txs x ON x.loan_id = l.id`

// scanLoanDetails assembles joined rows into loans with nested txs. The
// query returns one row per (loan, tx) pair ordered by loan id.
func scanLoanDetails(rows *sql.Rows) ([]models.LoanDetail, error) {
	var details []models.LoanDetail

	for rows.Next() {
		var (
			d         models.LoanDetail
			amountStr string
			txRecID   sql.NullInt64
			txLoanID  sql.NullInt64
			txMode    sql.NullString
			txTxID    sql.NullString
			txCreated sql.NullTime
		)
		err := rows.Scan(
			&d.ID, &d.UserID, &d.TokenID, &amountStr, &d.InterestRate, &d.CreatedAt, &d.UpdatedAt,
			&d.Token.ID, &d.Token.Address, &d.Token.AtaAddress, &d.Token.Decimals, &d.Token.Name,
			&d.Token.AuthorityID, &d.Token.CreatedAt, &d.Token.UpdatedAt,
			&d.User.ID, &d.User.WalletAddress, &d.User.CreatedAt, &d.User.UpdatedAt,
			&txRecID, &txLoanID, &txMode, &txTxID, &txCreated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}

		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid loan amount in database: %q", amountStr)
		}
		d.Amount = amount

		if txRecID.Valid {
			d.Txs = append(d.Txs, models.TxRecord{
				ID:        txRecID.Int64,
				LoanID:    txLoanID.Int64,
				Mode:      txMode.String,
				TxID:      txTxID.String,
				CreatedAt: txCreated.Time,
			})
		}

		if n := len(details); n > 0 && details[n-1].ID == d.ID {
			details[n-1].Txs = append(details[n-1].Txs, d.Txs...)
			continue
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return details, nil
}
