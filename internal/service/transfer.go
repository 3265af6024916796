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
	"golang.org/x/sync/errgroup"
)

// Transfer executes on-chain transfers from the authority's holding
// account and mirrors them as off-chain transaction records
type Transfer struct {
	authority *Authority
	repo      Store
	ledger    Ledger
	log       *logrus.Logger
}

// NewTransfer initializes a new transfer recorder
func NewTransfer(authority *Authority, repo Store, ledgerClient Ledger, log *logrus.Logger) *Transfer {
	return &Transfer{
		authority: authority,
		repo:      repo,
		ledger:    ledgerClient,
		log:       log,
	}
}

// TransferResult holds the off-chain record id and on-chain tx id
type TransferResult struct {
	ID   int64  `json:"id"`
	TxID string `json:"txId"`
}

// TransferToken moves amount from the authority's holding account for the
// token to dest, confirms the transaction and writes the off-chain record.
// If confirmation fails after the transfer was submitted, on-chain and
// off-chain state can diverge; the tx id is logged before the record write
// so the gap is at least diagnosable.
func (t *Transfer) TransferToken(ctx context.Context, amount *big.Int, loanID int64, mint, dest string) (*TransferResult, error) {
	token, err := t.repo.FindTokenByAddress(ctx, mint)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}

	var (
		txID  string
		block ledger.Block
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txID, err = t.ledger.Transfer(gctx, mint, token.AtaAddress, dest, t.authority.PublicKey(), amount)
		return err
	})
	g.Go(func() error {
		var err error
		block, err = t.ledger.GetLatestBlock(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to transfer: %w", err)
	}

	t.log.Infof("Transfer submitted for loan %d: %s base units of %s to %s (tx %s)",
		loanID, amount.String(), mint, dest, txID)

	var record *models.TxRecord
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = t.repo.CreateTxRecord(gctx, loanID, models.TxModePayment, txID)
		return err
	})
	g.Go(func() error {
		return t.ledger.ConfirmTransaction(gctx, txID, block)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to finalize transfer %s: %w", txID, err)
	}

	return &TransferResult{ID: record.ID, TxID: txID}, nil
}
