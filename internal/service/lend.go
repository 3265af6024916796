package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/models"
	"github.com/streamlend/lending-service/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Lend validates loan eligibility and orchestrates disbursement
type Lend struct {
	authority *Authority
	tokens    *TokenManager
	transfer  *Transfer
	repo      Store
	ledger    Ledger
	rates     RateSource
	notifier  Notifier
	log       *logrus.Logger

	// mu guards userLocks; each entry serializes disbursements for one
	// wallet so the check-then-act eligibility gate cannot race against
	// concurrent requests from the same user. Entries are retained for
	// the process lifetime: one mutex per wallet ever seen, never
	// evicted, since eviction while a goroutine holds the lock would
	// hand the next request a fresh, unheld mutex. Cross-process
	// deployments would additionally need a store-level guard.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewLend initializes a new loan manager. rates and notifier are optional.
func NewLend(authority *Authority, tokens *TokenManager, transfer *Transfer, repo Store, ledgerClient Ledger, rates RateSource, notifier Notifier, log *logrus.Logger) *Lend {
	return &Lend{
		authority: authority,
		tokens:    tokens,
		transfer:  transfer,
		repo:      repo,
		ledger:    ledgerClient,
		rates:     rates,
		notifier:  notifier,
		log:       log,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// DisburseResult holds the identifiers of a completed disbursement
type DisburseResult struct {
	ID     int64  `json:"id"`
	TxID   string `json:"txId"`
	LoanID int64  `json:"loanId"`
}

// DisburseLoan validates eligibility and disburses a loan to the user's
// wallet. Amount is in base units. Side effects: the user's holding
// account may be created, with the authority paying the fee.
func (l *Lend) DisburseLoan(ctx context.Context, userAddress, mint string, amount *big.Int) (*DisburseResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if isAuthority, _ := l.authority.Validate(userAddress, true); isAuthority {
		return nil, ErrAuthorityLoan
	}

	unlock := l.lockUser(userAddress)
	defer unlock()

	if err := l.checkEligibility(ctx, userAddress, mint, amount); err != nil {
		return nil, err
	}

	var (
		account ledger.Account
		loan    *models.Loan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = l.tokens.EnsureHoldingAccount(gctx, mint, userAddress)
		return err
	})
	g.Go(func() error {
		var err error
		loan, err = l.repo.CreateLoan(gctx, userAddress, mint, amount, l.referenceRate())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := l.transfer.TransferToken(ctx, amount, loan.ID, mint, account.Address)
	if err != nil {
		return nil, err
	}

	l.notifyDisbursement(ctx, userAddress, mint, amount, loan.ID, result.TxID)

	return &DisburseResult{ID: result.ID, TxID: result.TxID, LoanID: loan.ID}, nil
}

// checkEligibility runs the loan gate: outstanding loan count below the
// limit and (outstanding + requested) within 2.5% of the on-chain supply.
// No side effects before the gate passes.
func (l *Lend) checkEligibility(ctx context.Context, userAddress, mint string, amount *big.Int) error {
	var (
		loans    []models.LoanDetail
		mintInfo ledger.MintInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loans, err = l.repo.FindLoansByUser(gctx, userAddress, mint)
		return err
	})
	g.Go(func() error {
		var err error
		mintInfo, err = l.ledger.GetMint(gctx, mint)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if len(loans) >= MaxActiveLoans {
		return ErrMaxActiveLoans
	}

	total := new(big.Int).Set(amount)
	for _, loan := range loans {
		total.Add(total, loan.Amount)
	}
	if utils.RatioOfSupply(total, mintInfo.Supply).Cmp(maxLoanSupplyRatio) > 0 {
		return ErrMaxLoanSupplied
	}
	return nil
}

// GetOutstandingLoans returns a user's raw loan records, optionally
// filtered by token address (empty string matches all)
func (l *Lend) GetOutstandingLoans(ctx context.Context, userAddress, mint string) ([]models.LoanDetail, error) {
	return l.repo.FindLoansByUser(ctx, userAddress, mint)
}

// GetReadableLoans returns a user's loans in human-readable form
func (l *Lend) GetReadableLoans(ctx context.Context, userAddress, mint string) ([]models.ReadableLoan, error) {
	loans, err := l.repo.FindLoansByUser(ctx, userAddress, mint)
	if err != nil {
		return nil, err
	}
	return readableLoanData(loans), nil
}

// GetTotalOutstandingAmount sums a user's outstanding base-unit amounts
// for a token. Pass loans to avoid refetching.
func (l *Lend) GetTotalOutstandingAmount(ctx context.Context, userAddress, mint string, loans []models.LoanDetail) (*big.Int, error) {
	if loans == nil {
		var err error
		loans, err = l.repo.FindLoansByUser(ctx, userAddress, mint)
		if err != nil {
			return nil, err
		}
	}

	total := new(big.Int)
	for _, loan := range loans {
		total.Add(total, loan.Amount)
	}
	return total, nil
}

// GetAllOutstandingLoans returns every loan across all users in readable
// form. Authority only.
func (l *Lend) GetAllOutstandingLoans(ctx context.Context, authorityAddress string) ([]models.ReadableLoan, error) {
	if _, err := l.authority.Validate(authorityAddress, false); err != nil {
		return nil, err
	}

	loans, err := l.repo.FindAllLoans(ctx)
	if err != nil {
		return nil, err
	}
	return readableLoanData(loans), nil
}

// lockUser takes the per-wallet disbursement lock
func (l *Lend) lockUser(userAddress string) func() {
	l.mu.Lock()
	lock, ok := l.userLocks[userAddress]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userAddress] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// referenceRate fetches the informational APR for new loans; failures
// degrade to zero rather than blocking disbursement
func (l *Lend) referenceRate() float64 {
	if l.rates == nil {
		return 0
	}
	rate, err := l.rates.GetReferenceRate()
	if err != nil {
		l.log.Warnf("Failed to fetch reference rate, stamping 0: %v", err)
		return 0
	}
	return rate
}

// notifyDisbursement sends the ops notification; failures are logged only
func (l *Lend) notifyDisbursement(ctx context.Context, userAddress, mint string, amount *big.Int, loanID int64, txID string) {
	if l.notifier == nil {
		return
	}

	token, err := l.repo.FindTokenByAddress(ctx, mint)
	if err != nil {
		l.log.Warnf("Failed to load token for disbursement notice: %v", err)
		return
	}

	readable := utils.FormatAmount(amount, token.Decimals)
	if err := l.notifier.SendDisbursementNotice(userAddress, token.Name, readable, loanID, txID); err != nil {
		l.log.Warnf("Failed to send disbursement notice for loan %d: %v", loanID, err)
	}
}

// readableLoanData flattens joined loan rows into the API shape
func readableLoanData(loans []models.LoanDetail) []models.ReadableLoan {
	readable := make([]models.ReadableLoan, 0, len(loans))
	for _, loan := range loans {
		entry := models.ReadableLoan{
			LoanID:       loan.ID,
			TokenAddress: loan.Token.Address,
			TokenName:    loan.Token.Name,
			UserAddress:  loan.User.WalletAddress,
			Amount:       utils.FormatAmount(loan.Amount, loan.Token.Decimals),
			InterestRate: loan.InterestRate,
			Timestamp:    loan.CreatedAt,
		}
		for _, tx := range loan.Txs {
			if tx.LoanID == loan.ID {
				entry.TxID = tx.TxID
				break
			}
		}
		readable = append(readable, entry)
	}
	return readable
}
