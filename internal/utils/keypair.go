package utils

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcutil/base58"
)

// GenerateKeypair creates a new ed25519 keypair for authority or user wallets
func GenerateKeypair() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return priv, nil
}

// DecodeKeypair restores a keypair from its base58-encoded secret
func DecodeKeypair(secret string) (ed25519.PrivateKey, error) {
	raw := base58.Decode(secret)
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid secret key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// EncodeKeypair serializes a keypair to a base58 string for .env storage
func EncodeKeypair(priv ed25519.PrivateKey) string {
	return base58.Encode(priv)
}

// PublicKeyString returns the base58 wallet address of a keypair
func PublicKeyString(priv ed25519.PrivateKey) string {
	return base58.Encode(priv.Public().(ed25519.PublicKey))
}

// ValidateAddress checks that an address is base58, 32 bytes and decodes
// to a point on the ed25519 curve (wallet addresses only; program-derived
// addresses are off-curve and not accepted here).
func ValidateAddress(address string) error {
	raw := base58.Decode(address)
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid address %q: not a 32-byte base58 key", address)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("invalid address %q: not on the ed25519 curve", address)
	}
	return nil
}
