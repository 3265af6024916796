package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/streamlend/lending-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lendEnv struct {
	lend      *Lend
	tokens    *TokenManager
	authority *Authority
	store     *fakeStore
	ledger    *fakeLedger
	mint      string
}

// newLendEnv provisions a token with supply 1000 tokens at 9 decimals
func newLendEnv(t *testing.T) *lendEnv {
	t.Helper()

	store := newFakeStore()
	fl := newFakeLedger()
	authority := newTestAuthority(t, store, fl)
	tokens := NewTokenManager(authority, store, fl, testLogger())
	transfer := NewTransfer(authority, store, fl, testLogger())
	lend := NewLend(authority, tokens, transfer, store, fl, nil, nil, testLogger())

	result, err := tokens.SetupToken(context.Background(), 9, "TestLending-X", authority.PublicKey(), scaled(t, "1000", 9))
	require.NoError(t, err)

	return &lendEnv{
		lend:      lend,
		tokens:    tokens,
		authority: authority,
		store:     store,
		ledger:    fl,
		mint:      result.MintAddress,
	}
}

func TestDisburseLoanRejectsNonPositiveAmount(t *testing.T) {
	env := newLendEnv(t)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	// no on-chain or off-chain writes happened
	assert.Empty(t, env.store.loans)
	assert.Empty(t, env.ledger.transfers)
}

func TestDisburseLoanRejectsAuthority(t *testing.T) {
	env := newLendEnv(t)

	_, err := env.lend.DisburseLoan(context.Background(), env.authority.PublicKey(), env.mint, scaled(t, "10", 9))
	assert.ErrorIs(t, err, ErrAuthorityLoan)
	assert.Empty(t, env.store.loans)
}

func TestDisburseLoanSucceedsAndRecords(t *testing.T) {
	env := newLendEnv(t)
	amount := scaled(t, "10", 9)

	result, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
	require.NoError(t, err)
	assert.NotZero(t, result.ID)
	assert.NotZero(t, result.LoanID)
	assert.NotEmpty(t, result.TxID)

	// the on-chain transfer left the authority's holding account for the user's
	require.Len(t, env.ledger.transfers, 1)
	tr := env.ledger.transfers[0]
	assert.Equal(t, amount, tr.amount)
	assert.Equal(t, env.authority.PublicKey()+"/"+env.mint, tr.from)
	assert.Equal(t, "user-wallet/"+env.mint, tr.to)

	// the off-chain mirror is tagged to the loan
	loans, err := env.lend.GetOutstandingLoans(context.Background(), "user-wallet", env.mint)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Len(t, loans[0].Txs, 1)
	assert.Equal(t, models.TxModePayment, loans[0].Txs[0].Mode)
	assert.Equal(t, result.TxID, loans[0].Txs[0].TxID)
}

func TestDisburseLoanMaxActiveLoans(t *testing.T) {
	env := newLendEnv(t)
	amount := scaled(t, "5", 9)

	for i := 0; i < MaxActiveLoans; i++ {
		_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
		require.NoError(t, err, "loan %d", i+1)
	}

	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
	assert.ErrorIs(t, err, ErrMaxActiveLoans)
	assert.Len(t, env.store.loans, MaxActiveLoans)
}

func TestDisburseLoanMaxLoanSupplied(t *testing.T) {
	env := newLendEnv(t)

	// 100 of 1000 tokens is 10%, over the 2.5% cap
	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "100", 9))
	assert.ErrorIs(t, err, ErrMaxLoanSupplied)
	assert.Empty(t, env.store.loans)
	assert.Empty(t, env.ledger.transfers)
}

func TestDisburseLoanCapCountsOutstanding(t *testing.T) {
	env := newLendEnv(t)

	// 20 tokens is within the 25-token cap (2.5% of 1000)
	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "20", 9))
	require.NoError(t, err)

	// 10 more would put the user at 30, over the cap
	_, err = env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "10", 9))
	assert.ErrorIs(t, err, ErrMaxLoanSupplied)

	// exactly at the cap is allowed
	_, err = env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "5", 9))
	require.NoError(t, err)
}

func TestDisburseLoanUnknownToken(t *testing.T) {
	env := newLendEnv(t)

	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", "unknown-mint", scaled(t, "10", 9))
	assert.Error(t, err)
	assert.Empty(t, env.store.loans)
}

func TestGetTotalOutstandingAmount(t *testing.T) {
	env := newLendEnv(t)

	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "10", 9))
	require.NoError(t, err)
	_, err = env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "5", 9))
	require.NoError(t, err)

	total, err := env.lend.GetTotalOutstandingAmount(context.Background(), "user-wallet", env.mint, nil)
	require.NoError(t, err)
	assert.Equal(t, scaled(t, "15", 9), total)
}

func TestGetReadableLoans(t *testing.T) {
	env := newLendEnv(t)

	result, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "10.5", 9))
	require.NoError(t, err)

	readable, err := env.lend.GetReadableLoans(context.Background(), "user-wallet", "")
	require.NoError(t, err)
	require.Len(t, readable, 1)

	assert.Equal(t, result.LoanID, readable[0].LoanID)
	assert.Equal(t, env.mint, readable[0].TokenAddress)
	assert.Equal(t, "TestLending-X", readable[0].TokenName)
	assert.Equal(t, "user-wallet", readable[0].UserAddress)
	assert.Equal(t, "10.5", readable[0].Amount)
	assert.Equal(t, result.TxID, readable[0].TxID)
}

func TestGetAllOutstandingLoansAuthorityOnly(t *testing.T) {
	env := newLendEnv(t)

	_, err := env.lend.DisburseLoan(context.Background(), "user-a", env.mint, scaled(t, "10", 9))
	require.NoError(t, err)
	_, err = env.lend.DisburseLoan(context.Background(), "user-b", env.mint, scaled(t, "5", 9))
	require.NoError(t, err)

	_, err = env.lend.GetAllOutstandingLoans(context.Background(), "user-a")
	assert.ErrorIs(t, err, ErrUnauthorized)

	all, err := env.lend.GetAllOutstandingLoans(context.Background(), env.authority.PublicKey())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDisburseLoanStampsReferenceRate(t *testing.T) {
	env := newLendEnv(t)
	env.lend.rates = staticRate(16.5)

	_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, scaled(t, "10", 9))
	require.NoError(t, err)

	require.Len(t, env.store.loans, 1)
	assert.Equal(t, 16.5, env.store.loans[0].InterestRate)
}

func TestDisburseLoanConcurrentSameWalletRespectsCaps(t *testing.T) {
	env := newLendEnv(t)
	amount := scaled(t, "10", 9)

	// 10 simultaneous 10-token requests against the 25-token cap
	// (2.5% of 1000): only two can fit, the rest must hit the supply
	// cap no matter how the goroutines interleave.
	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, capped int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrMaxLoanSupplied):
			capped++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, workers-2, capped)

	// every success left exactly one loan row and one transfer
	assert.Len(t, env.store.loans, succeeded)
	assert.Len(t, env.ledger.transfers, succeeded)

	total, err := env.lend.GetTotalOutstandingAmount(context.Background(), "user-wallet", env.mint, nil)
	require.NoError(t, err)
	assert.True(t, total.Cmp(scaled(t, "25", 9)) <= 0, "outstanding %s exceeds the supply cap", total)
}

func TestDisburseLoanConcurrentSameWalletRespectsLoanCount(t *testing.T) {
	env := newLendEnv(t)
	amount := scaled(t, "1", 9)

	// small amounts keep the supply cap out of play, so the loan-count
	// limit is the only gate
	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.lend.DisburseLoan(context.Background(), "user-wallet", env.mint, amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrMaxActiveLoans)
	}
	assert.Equal(t, MaxActiveLoans, succeeded)
	assert.Len(t, env.store.loans, MaxActiveLoans)
}

type staticRate float64

func (r staticRate) GetReferenceRate() (float64, error) {
	return float64(r), nil
}
