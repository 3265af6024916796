package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
	"github.com/streamlend/lending-service/internal/config"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/models"
	"github.com/streamlend/lending-service/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Authority is the platform's single administrative identity. It signs
// mints and transfers and pays platform fees. The keypair is resolved
// once from configuration and read-only afterwards.
type Authority struct {
	keypair   ed25519.PrivateKey
	publicKey string
	repo      Store
	ledger    Ledger
	log       *logrus.Logger
}

// NewAuthority resolves the authority keypair from configuration
func NewAuthority(cfg *config.Config, repo Store, ledgerClient Ledger, log *logrus.Logger) (*Authority, error) {
	if cfg.AuthoritySecret == "" {
		return nil, ErrMissingAuthoritySecret
	}

	keypair, err := utils.DecodeKeypair(cfg.AuthoritySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode authority secret: %w", err)
	}

	return &Authority{
		keypair:   keypair,
		publicKey: utils.PublicKeyString(keypair),
		repo:      repo,
		ledger:    ledgerClient,
		log:       log,
	}, nil
}

// PublicKey returns the authority's wallet address
func (a *Authority) PublicKey() string {
	return a.publicKey
}

// EnsureFunded tops the authority's native balance up to the reserve
// target. No-ops when the balance is already at or above target;
// otherwise requests exactly the shortfall from the faucet and awaits
// confirmation.
func (a *Authority) EnsureFunded(ctx context.Context) error {
	balance, err := a.ledger.GetBalance(ctx, a.publicKey)
	if err != nil {
		return fmt.Errorf("failed to fetch authority balance: %w", err)
	}

	shortfall := new(big.Int).Sub(reserveTarget, balance)
	if shortfall.Sign() <= 0 {
		return nil
	}

	var (
		block ledger.Block
		txID  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		block, err = a.ledger.GetLatestBlock(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txID, err = a.ledger.RequestAirdrop(gctx, a.publicKey, shortfall)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to request funds: %w", err)
	}

	if err := a.ledger.ConfirmTransaction(ctx, txID, block); err != nil {
		return fmt.Errorf("failed to confirm funding transaction: %w", err)
	}

	a.log.Infof("Authority funded with %s base units (tx %s)", shortfall.String(), txID)
	return nil
}

// Persist idempotently upserts the authority's public key into the store
func (a *Authority) Persist(ctx context.Context) (*models.Authority, error) {
	return a.repo.UpsertAuthority(ctx, a.publicKey)
}

// Setup persists the authority record and tops up its fee reserve
func (a *Authority) Setup(ctx context.Context) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.Persist(gctx)
		return err
	})
	g.Go(func() error {
		return a.EnsureFunded(gctx)
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return a.publicKey, nil
}

// Validate checks whether address is the platform authority. With
// suppressError set it returns false instead of failing.
func (a *Authority) Validate(address string, suppressError bool) (bool, error) {
	if address != a.publicKey {
		if suppressError {
			return false, nil
		}
		return false, ErrUnauthorized
	}
	return true, nil
}
