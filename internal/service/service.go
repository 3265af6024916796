package service

import (
	"context"
	"math/big"

	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/models"
)

// Platform-wide lending limits
const (
	// MaxActiveLoans is the number of loans a user may hold at once
	MaxActiveLoans = 3

	// MinDecimals and MaxDecimals bound token precision
	MinDecimals = 0
	MaxDecimals = 18
)

// maxLoanSupplyRatio caps a user's outstanding amount per token at 2.5%
// of the on-chain supply
var maxLoanSupplyRatio = big.NewRat(25, 1000)

// reserveTarget is the native-currency balance the authority keeps to
// cover platform fees (1 native unit at 9 decimals)
var reserveTarget = big.NewInt(1_000_000_000)

// Store is the subset of repository operations the services need
type Store interface {
	UpsertAuthority(ctx context.Context, publicKey string) (*models.Authority, error)
	FindAuthority(ctx context.Context, publicKey string) (*models.Authority, error)
	CreateToken(ctx context.Context, token *models.Token) error
	FindTokenByAddress(ctx context.Context, address string) (*models.Token, error)
	CreateLoan(ctx context.Context, walletAddress, tokenAddress string, amount *big.Int, interestRate float64) (*models.Loan, error)
	FindLoansByUser(ctx context.Context, walletAddress, tokenAddress string) ([]models.LoanDetail, error)
	FindAllLoans(ctx context.Context) ([]models.LoanDetail, error)
	CreateTxRecord(ctx context.Context, loanID int64, mode, txID string) (*models.TxRecord, error)
}

// Ledger is the token-ledger client surface consumed by the services
type Ledger interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	RequestAirdrop(ctx context.Context, address string, amount *big.Int) (string, error)
	GetLatestBlock(ctx context.Context) (ledger.Block, error)
	ConfirmTransaction(ctx context.Context, txID string, block ledger.Block) error
	CreateMint(ctx context.Context, authority string, decimals int) (string, error)
	GetOrCreateAccount(ctx context.Context, mint, owner, payer string) (ledger.Account, error)
	GetMint(ctx context.Context, mint string) (ledger.MintInfo, error)
	MintTo(ctx context.Context, mint, account, authority string, amount *big.Int) (string, error)
	Transfer(ctx context.Context, mint, from, to, owner string, amount *big.Int) (string, error)
}

// RateSource supplies the informational APR stamped on new loans
type RateSource interface {
	GetReferenceRate() (float64, error)
}

// Notifier delivers ops notifications after successful disbursements
type Notifier interface {
	SendDisbursementNotice(userAddress, tokenName, amount string, loanID int64, txID string) error
}
