// Package signing implements the deterministic action-signing pipeline used
// for authenticated exchange requests: canonical-JSON action hashing, the
// phantom agent construct, the fixed EIP-712-style digest, and recoverable
// ECDSA signing over it.
package signing

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridian-labs/hyperliquid-go/internal/canonicaljson"
	"github.com/meridian-labs/hyperliquid-go/pkg/hashing"
)

// Fixed EIP-712 parameters for this exchange. Struct hashing is a canonical
// JSON hash of the domain and message rather than ABI struct encoding; the
// digest layout (0x19 0x01 prefix) follows EIP-712.
const (
	domainName        = "HyperliquidSignTransaction"
	domainVersion     = "1"
	domainChainID     = 1337
	verifyingContract = "0x0000000000000000000000000000000000000000"
	primaryType       = "HyperliquidTransaction"
)

// ErrSigning wraps failures of the signing pipeline: malformed keys, curve
// errors, or unserializable actions.
type ErrSigning struct {
	Err error
}

func (e *ErrSigning) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *ErrSigning) Unwrap() error {
	return e.Err
}

// PhantomAgent binds an action hash to a network tag. It is the message body
// of the typed-data digest and is rebuilt fresh on every signing call.
type PhantomAgent struct {
	Source       string `json:"source"`
	ConnectionID string `json:"connectionId"`
}

// Signature is a 65-byte recoverable ECDSA signature in wire form. R and S
// are 0x-prefixed hex with leading zeros trimmed, V is 27 or 28.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Bytes returns the signature as r || s || v (65 bytes, v in 27/28 form).
func (s Signature) Bytes() ([]byte, error) {
	r, err := hashing.DecodeHex(s.R)
	if err != nil {
		return nil, fmt.Errorf("invalid r: %w", err)
	}
	sBytes, err := hashing.DecodeHex(s.S)
	if err != nil {
		return nil, fmt.Errorf("invalid s: %w", err)
	}
	if len(r) > 32 || len(sBytes) > 32 {
		return nil, fmt.Errorf("signature component longer than 32 bytes")
	}

	out := make([]byte, 65)
	copy(out[32-len(r):32], r)
	copy(out[64-len(sBytes):64], sBytes)
	out[64] = byte(s.V)
	return out, nil
}

// Hex returns the 0x-prefixed 65-byte hex rendering of the signature.
func (s Signature) Hex() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return hashing.EncodeHex(b), nil
}

// ActionHash computes the Keccak-256 hash binding the canonical action bytes,
// the optional vault address, and the caller-supplied millisecond timestamp.
func ActionHash(action any, vaultAddress string, timestamp int64) ([]byte, error) {
	canonical, err := canonicaljson.Marshal(action)
	if err != nil {
		return nil, &ErrSigning{Err: fmt.Errorf("failed to canonicalize action: %w", err)}
	}

	data := make([]byte, 0, len(canonical)+len(vaultAddress)+8)
	data = append(data, canonical...)
	if vaultAddress != "" {
		data = append(data, []byte(vaultAddress)...)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp))
	data = append(data, ts[:]...)

	return hashing.Keccak256(data), nil
}

// BuildPhantomAgent derives the phantom agent for an action hash. The
// connection id is the hex encoding of the first 16 bytes of the hash.
func BuildPhantomAgent(actionHash []byte, chainTag string) PhantomAgent {
	return PhantomAgent{
		Source:       chainTag,
		ConnectionID: hashing.EncodeHex(actionHash[:16]),
	}
}

// Digest computes the final signable digest for a phantom agent:
// keccak256(0x19 0x01 || keccak256(canonical(domain)) || keccak256(canonical(message))).
func Digest(agent PhantomAgent) ([]byte, error) {
	domain := map[string]any{
		"name":              domainName,
		"version":           domainVersion,
		"chainId":           domainChainID,
		"verifyingContract": verifyingContract,
	}
	domainBytes, err := canonicaljson.Marshal(domain)
	if err != nil {
		return nil, &ErrSigning{Err: fmt.Errorf("failed to canonicalize domain: %w", err)}
	}
	domainSeparator := hashing.Keccak256(domainBytes)

	message := map[string]any{
		"source":       agent.Source,
		"connectionId": agent.ConnectionID,
	}
	messageBytes, err := canonicaljson.Marshal(message)
	if err != nil {
		return nil, &ErrSigning{Err: fmt.Errorf("failed to canonicalize message: %w", err)}
	}
	messageHash := hashing.Keccak256(messageBytes)

	return hashing.Keccak256([]byte{0x19, 0x01}, domainSeparator, messageHash), nil
}

// PrimaryType returns the fixed typed-data primary type name.
func PrimaryType() string {
	return primaryType
}

// Sign runs the full pipeline: action hash, phantom agent, digest, and a
// deterministic (RFC 6979) recoverable ECDSA signature. Everything up to the
// curve operation is a pure function of the inputs.
func Sign(action any, key *ecdsa.PrivateKey, vaultAddress string, timestamp int64, chainTag string) (Signature, error) {
	if key == nil {
		return Signature{}, &ErrSigning{Err: fmt.Errorf("private key is nil")}
	}

	actionHash, err := ActionHash(action, vaultAddress, timestamp)
	if err != nil {
		return Signature{}, err
	}

	agent := BuildPhantomAgent(actionHash, chainTag)
	digest, err := Digest(agent)
	if err != nil {
		return Signature{}, err
	}

	return SignDigest(digest, key)
}

// SignDigest signs a 32-byte digest with a recoverable ECDSA signature.
func SignDigest(digest []byte, key *ecdsa.PrivateKey) (Signature, error) {
	if key == nil {
		return Signature{}, &ErrSigning{Err: fmt.Errorf("private key is nil")}
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return Signature{}, &ErrSigning{Err: err}
	}

	v := int(sig[64])
	if v < 27 {
		v += 27
	}

	return Signature{
		R: formatComponent(sig[:32]),
		S: formatComponent(sig[32:64]),
		V: v,
	}, nil
}

// formatComponent renders a signature component with leading zeros trimmed,
// matching the exchange's expected hex rendering.
func formatComponent(b []byte) string {
	hexStr := hashing.EncodeHex(b)[2:]
	for len(hexStr) > 1 && hexStr[0] == '0' {
		hexStr = hexStr[1:]
	}
	return "0x" + hexStr
}
