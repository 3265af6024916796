package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/models"
	"github.com/streamlend/lending-service/internal/repository"
	"github.com/streamlend/lending-service/internal/utils"
	"golang.org/x/sync/errgroup"
)

// TokenManager provisions tokens and mints within the supply ceiling
type TokenManager struct {
	authority *Authority
	repo      Store
	ledger    Ledger
	log       *logrus.Logger
}

// NewTokenManager initializes a new token manager
func NewTokenManager(authority *Authority, repo Store, ledgerClient Ledger, log *logrus.Logger) *TokenManager {
	return &TokenManager{
		authority: authority,
		repo:      repo,
		ledger:    ledgerClient,
		log:       log,
	}
}

// SetupTokenResult holds the identifiers of a freshly provisioned token
type SetupTokenResult struct {
	ID          int64  `json:"id"`
	MintAddress string `json:"mintAddress"`
	AtaAddress  string `json:"ataAddress"`
}

// TokenInfo merges off-chain token metadata with on-chain mint state
type TokenInfo struct {
	models.Token
	OnChain ledger.MintInfo `json:"onChainInfo"`
}

// createToken creates a new mint on-chain, owned and mint-authorized by
// the platform authority
func (t *TokenManager) createToken(ctx context.Context, decimals int) (string, error) {
	mint, err := t.ledger.CreateMint(ctx, t.authority.PublicKey(), decimals)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return mint, nil
}

// EnsureHoldingAccount get-or-creates the holding account for owner/mint.
// The authority pays any creation fee.
func (t *TokenManager) EnsureHoldingAccount(ctx context.Context, mint, owner string) (ledger.Account, error) {
	account, err := t.ledger.GetOrCreateAccount(ctx, mint, owner, t.authority.PublicKey())
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to ensure holding account: %w", err)
	}
	return account, nil
}

// SetupToken provisions a token end to end: creates the mint, creates the
// authority's holding account, mints the initial supply into it and
// persists the off-chain metadata. Supply is in base units.
func (t *TokenManager) SetupToken(ctx context.Context, decimals int, name, payer string, supply *big.Int) (*SetupTokenResult, error) {
	if _, err := t.authority.Validate(payer, false); err != nil {
		return nil, err
	}
	if decimals < MinDecimals || decimals > MaxDecimals {
		return nil, ErrInvalidDecimals
	}
	if utils.ExceedsMaxSupply(supply, decimals) {
		return nil, ErrMaxSupply
	}

	authority, err := t.authority.Persist(ctx)
	if err != nil {
		return nil, err
	}

	mint, err := t.createToken(ctx, decimals)
	if err != nil {
		return nil, err
	}

	account, err := t.EnsureHoldingAccount(ctx, mint, t.authority.PublicKey())
	if err != nil {
		return nil, err
	}

	if err := t.Mint(ctx, mint, account.Address, supply); err != nil {
		return nil, err
	}

	token := &models.Token{
		Address:     mint,
		AtaAddress:  account.Address,
		Decimals:    decimals,
		Name:        name,
		AuthorityID: authority.ID,
	}
	if err := t.repo.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	t.log.Infof("Token %s provisioned: mint %s, holding account %s", name, mint, account.Address)
	return &SetupTokenResult{ID: token.ID, MintAddress: mint, AtaAddress: account.Address}, nil
}

// Mint mints amount into a holding account, refusing requests that would
// push the on-chain supply past the platform ceiling. An empty
// holdingAccount defaults to the token's authority-owned account.
func (t *TokenManager) Mint(ctx context.Context, mint, holdingAccount string, amount *big.Int) error {
	if holdingAccount == "" {
		token, err := t.repo.FindTokenByAddress(ctx, mint)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownToken
		}
		if err != nil {
			return err
		}
		holdingAccount = token.AtaAddress
	}

	info, err := t.ledger.GetMint(ctx, mint)
	if err != nil {
		return fmt.Errorf("failed to fetch mint info: %w", err)
	}

	remaining := new(big.Int).Sub(utils.MaxSupplyScaled(info.Decimals), info.Supply)
	if remaining.Sign() == 0 {
		return ErrAlreadyMaxSupply
	}
	if amount.Cmp(remaining) > 0 {
		return ErrInvalidSupplyAmount
	}

	txID, err := t.ledger.MintTo(ctx, mint, holdingAccount, t.authority.PublicKey(), amount)
	if err != nil {
		return fmt.Errorf("failed to mint: %w", err)
	}

	t.log.Infof("Minted %s base units of %s into %s (tx %s)", amount.String(), mint, holdingAccount, txID)
	return nil
}

// GetTokenInfo merges the off-chain token record with on-chain mint state
func (t *TokenManager) GetTokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	var (
		token   *models.Token
		onChain ledger.MintInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		token, err = t.repo.FindTokenByAddress(gctx, mint)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownToken
		}
		return err
	})
	g.Go(func() error {
		var err error
		onChain, err = t.ledger.GetMint(gctx, mint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TokenInfo{Token: *token, OnChain: onChain}, nil
}
