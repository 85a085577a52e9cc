package hashing

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 hash of data
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hex computes Keccak-256 and returns a 0x-prefixed hex string
func Keccak256Hex(data ...[]byte) string {
	return EncodeHex(Keccak256(data...))
}

// EncodeHex encodes bytes as a 0x-prefixed hex string
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes a hex string with or without a 0x prefix
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}
