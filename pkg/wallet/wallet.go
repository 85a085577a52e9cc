package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when address recovery is mathematically
// inconsistent (bad recovery id, point not on curve, wrong length).
type ErrInvalidSignature struct {
	Reason string
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("invalid signature: %s", e.Reason)
}

// ParsePrivateKey parses a 32-byte secp256k1 private key from a hex string
// with or without a 0x prefix. The key bytes are never logged.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(hexKey, "0x")
	if len(trimmed) != 64 {
		return nil, fmt.Errorf("private key must be 32 bytes (64 hex chars), got %d chars", len(trimmed))
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// GenerateKey creates a fresh secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// AddressFromKey derives the wallet address for a private key.
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// RecoverAddress recovers the signer address from a 32-byte digest and a
// 65-byte recoverable signature. The recovery id may be 0/1 or 27/28.
func RecoverAddress(digest []byte, signature []byte) (common.Address, error) {
	if len(digest) != 32 {
		return common.Address{}, &ErrInvalidSignature{Reason: fmt.Sprintf("digest must be 32 bytes, got %d", len(digest))}
	}
	if len(signature) != 65 {
		return common.Address{}, &ErrInvalidSignature{Reason: fmt.Sprintf("signature must be 65 bytes, got %d", len(signature))}
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, &ErrInvalidSignature{Reason: fmt.Sprintf("recovery id out of range: %d", signature[64])}
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, &ErrInvalidSignature{Reason: err.Error()}
	}
	return crypto.PubkeyToAddress(*pub), nil
}
