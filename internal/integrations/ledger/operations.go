package ledger

import (
	"context"
	"fmt"
	"math/big"
)

// Block identifies a ledger block used to scope transaction confirmation
type Block struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// MintInfo is the on-chain state of a token mint
type MintInfo struct {
	Address  string
	Decimals int
	Supply   *big.Int
}

// Account is an on-chain holding account for a (owner, mint) pair
type Account struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
}

// GetBalance returns the native-currency balance of an address in base units
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var result struct {
		Balance string `json:"balance"`
	}
	if err := c.call(ctx, "ledger_getBalance", map[string]string{"address": address}, &result); err != nil {
		return nil, err
	}
	return parseWireAmount(result.Balance)
}

// RequestAirdrop asks the faucet to credit an address and returns the tx id
func (c *Client) RequestAirdrop(ctx context.Context, address string, amount *big.Int) (string, error) {
	var result struct {
		TxID string `json:"txId"`
	}
	params := map[string]string{"address": address, "amount": amount.String()}
	if err := c.call(ctx, "ledger_requestAirdrop", params, &result); err != nil {
		return "", err
	}
	return result.TxID, nil
}

// GetLatestBlock fetches the most recent block reference
func (c *Client) GetLatestBlock(ctx context.Context) (Block, error) {
	var block Block
	if err := c.call(ctx, "ledger_getLatestBlock", nil, &block); err != nil {
		return Block{}, err
	}
	return block, nil
}

// ConfirmTransaction blocks until the node confirms the transaction within
// the validity window of the given block reference
func (c *Client) ConfirmTransaction(ctx context.Context, txID string, block Block) error {
	params := map[string]any{"txId": txID, "blockHash": block.Hash, "blockHeight": block.Height}
	return c.call(ctx, "ledger_confirmTransaction", params, nil)
}

// CreateMint creates a new token mint owned and mint-authorized by authority
func (c *Client) CreateMint(ctx context.Context, authority string, decimals int) (string, error) {
	var result struct {
		Address string `json:"address"`
	}
	params := map[string]any{"authority": authority, "decimals": decimals}
	if err := c.call(ctx, "token_createMint", params, &result); err != nil {
		return "", err
	}
	return result.Address, nil
}

// GetOrCreateAccount ensures a holding account exists for owner/mint,
// creating it with the payer covering the fee
func (c *Client) GetOrCreateAccount(ctx context.Context, mint, owner, payer string) (Account, error) {
	var account Account
	params := map[string]string{"mint": mint, "owner": owner, "payer": payer}
	if err := c.call(ctx, "token_getOrCreateAccount", params, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// GetMint fetches the on-chain state of a mint
func (c *Client) GetMint(ctx context.Context, mint string) (MintInfo, error) {
	var result struct {
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
		Supply   string `json:"supply"`
	}
	if err := c.call(ctx, "token_getMint", map[string]string{"mint": mint}, &result); err != nil {
		return MintInfo{}, err
	}

	supply, err := parseWireAmount(result.Supply)
	if err != nil {
		return MintInfo{}, fmt.Errorf("token_getMint: %w", err)
	}
	return MintInfo{Address: result.Address, Decimals: result.Decimals, Supply: supply}, nil
}

// MintTo mints amount into a holding account and returns the tx id
func (c *Client) MintTo(ctx context.Context, mint, account, authority string, amount *big.Int) (string, error) {
	var result struct {
		TxID string `json:"txId"`
	}
	params := map[string]string{
		"mint":      mint,
		"account":   account,
		"authority": authority,
		"amount":    amount.String(),
	}
	if err := c.call(ctx, "token_mintTo", params, &result); err != nil {
		return "", err
	}
	return result.TxID, nil
}

// Transfer moves amount between holding accounts, signed by owner, and
// returns the tx id
func (c *Client) Transfer(ctx context.Context, mint, from, to, owner string, amount *big.Int) (string, error) {
	var result struct {
		TxID string `json:"txId"`
	}
	params := map[string]string{
		"mint":   mint,
		"from":   from,
		"to":     to,
		"owner":  owner,
		"amount": amount.String(),
	}
	if err := c.call(ctx, "token_transfer", params, &result); err != nil {
		return "", err
	}
	return result.TxID, nil
}

func parseWireAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount on wire: %q", value)
	}
	return amount, nil
}
