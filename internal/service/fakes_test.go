package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/models"
	"github.com/streamlend/lending-service/internal/repository"
)

// fakeStore is an in-memory Store for service tests
type fakeStore struct {
	mu          sync.Mutex
	authorities map[string]*models.Authority
	tokens      map[string]*models.Token
	loans       []models.LoanDetail
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		authorities: make(map[string]*models.Authority),
		tokens:      make(map[string]*models.Token),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) UpsertAuthority(_ context.Context, publicKey string) (*models.Authority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.authorities[publicKey]; ok {
		existing.UpdatedAt = time.Now()
		return existing, nil
	}
	authority := &models.Authority{ID: s.id(), PublicKey: publicKey, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.authorities[publicKey] = authority
	return authority, nil
}

func (s *fakeStore) FindAuthority(_ context.Context, publicKey string) (*models.Authority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if authority, ok := s.authorities[publicKey]; ok {
		return authority, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) CreateToken(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.ID = s.id()
	token.CreatedAt = time.Now()
	token.UpdatedAt = time.Now()
	s.tokens[token.Address] = token
	return nil
}

func (s *fakeStore) FindTokenByAddress(_ context.Context, address string) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[address]; ok {
		return token, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) CreateLoan(_ context.Context, walletAddress, tokenAddress string, amount *big.Int, interestRate float64) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenAddress]
	if !ok {
		return nil, repository.ErrNotFound
	}

	detail := models.LoanDetail{
		Loan: models.Loan{
			ID:           s.id(),
			TokenID:      token.ID,
			Amount:       new(big.Int).Set(amount),
			InterestRate: interestRate,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		},
		Token: *token,
		User:  models.User{ID: s.id(), WalletAddress: walletAddress},
	}
	detail.UserID = detail.User.ID
	s.loans = append(s.loans, detail)

	loan := detail.Loan
	return &loan, nil
}

func (s *fakeStore) FindLoansByUser(_ context.Context, walletAddress, tokenAddress string) ([]models.LoanDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.LoanDetail
	for _, loan := range s.loans {
		if loan.User.WalletAddress != walletAddress {
			continue
		}
		if tokenAddress != "" && loan.Token.Address != tokenAddress {
			continue
		}
		result = append(result, loan)
	}
	return result, nil
}

func (s *fakeStore) FindAllLoans(_ context.Context) ([]models.LoanDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LoanDetail(nil), s.loans...), nil
}

func (s *fakeStore) CreateTxRecord(_ context.Context, loanID int64, mode, txID string) (*models.TxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := models.TxRecord{ID: s.id(), LoanID: loanID, Mode: mode, TxID: txID, CreatedAt: time.Now()}
	for i := range s.loans {
		if s.loans[i].ID == loanID {
			s.loans[i].Txs = append(s.loans[i].Txs, record)
		}
	}
	return &record, nil
}

// fakeLedger is an in-memory token ledger for service tests
type fakeLedger struct {
	mu        sync.Mutex
	balances  map[string]*big.Int
	mints     map[string]*ledger.MintInfo
	airdrops  map[string]*big.Int
	transfers []fakeTransfer
	confirmed []string
	nextMint  int
	nextTx    int
}

type fakeTransfer struct {
	mint, from, to, owner string
	amount                *big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]*big.Int),
		mints:    make(map[string]*ledger.MintInfo),
		airdrops: make(map[string]*big.Int),
	}
}

// addMint seeds an existing mint with the given decimals and supply
func (l *fakeLedger) addMint(address string, decimals int, supply *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mints[address] = &ledger.MintInfo{Address: address, Decimals: decimals, Supply: new(big.Int).Set(supply)}
}

func (l *fakeLedger) txID() string {
	l.nextTx++
	return fmt.Sprintf("tx-%d", l.nextTx)
}

func (l *fakeLedger) GetBalance(_ context.Context, address string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance, ok := l.balances[address]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (l *fakeLedger) RequestAirdrop(_ context.Context, address string, amount *big.Int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.airdrops[address] = new(big.Int).Set(amount)
	return l.txID(), nil
}

func (l *fakeLedger) GetLatestBlock(_ context.Context) (ledger.Block, error) {
	return ledger.Block{Hash: "block-hash", Height: 42}, nil
}

func (l *fakeLedger) ConfirmTransaction(_ context.Context, txID string, _ ledger.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed = append(l.confirmed, txID)
	return nil
}

func (l *fakeLedger) CreateMint(_ context.Context, _ string, decimals int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextMint++
	address := fmt.Sprintf("mint-%d", l.nextMint)
	l.mints[address] = &ledger.MintInfo{Address: address, Decimals: decimals, Supply: new(big.Int)}
	return address, nil
}

func (l *fakeLedger) GetOrCreateAccount(_ context.Context, mint, owner, _ string) (ledger.Account, error) {
	return ledger.Account{Address: owner + "/" + mint, Owner: owner, Mint: mint}, nil
}

func (l *fakeLedger) GetMint(_ context.Context, mint string) (ledger.MintInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if info, ok := l.mints[mint]; ok {
		return ledger.MintInfo{Address: info.Address, Decimals: info.Decimals, Supply: new(big.Int).Set(info.Supply)}, nil
	}
	return ledger.MintInfo{}, fmt.Errorf("unknown mint %q", mint)
}

func (l *fakeLedger) MintTo(_ context.Context, mint, _, _ string, amount *big.Int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.mints[mint]
	if !ok {
		return "", fmt.Errorf("unknown mint %q", mint)
	}
	info.Supply.Add(info.Supply, amount)
	return l.txID(), nil
}

func (l *fakeLedger) Transfer(_ context.Context, mint, from, to, owner string, amount *big.Int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append(l.transfers, fakeTransfer{mint: mint, from: from, to: to, owner: owner, amount: new(big.Int).Set(amount)})
	return l.txID(), nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}
