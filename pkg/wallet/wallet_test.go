package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known anvil test key, safe to hardcode
const testKeyHex = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testKeyAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestParsePrivateKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "with 0x prefix", input: testKeyHex},
		{name: "without prefix", input: testKeyHex[2:]},
		{name: "too short", input: "0xabcd", wantErr: "must be 32 bytes"},
		{name: "not hex", input: "0x" + "zz" + testKeyHex[4:], wantErr: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePrivateKey(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testKeyAddress, AddressFromKey(key).Hex())
		})
	}
}

func TestRecoverAddress_RoundTrip(t *testing.T) {
	key, err := ParsePrivateKey(testKeyHex)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("some payload"))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, AddressFromKey(key), recovered)
}

func TestRecoverAddress_EthereumVStyle(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("payload"))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	// Shift v to the 27/28 convention used on the wire
	sig[64] += 27
	recovered, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, AddressFromKey(key), recovered)
}

func TestRecoverAddress_Invalid(t *testing.T) {
	digest := crypto.Keccak256([]byte("payload"))

	_, err := RecoverAddress(digest, make([]byte, 64))
	require.Error(t, err)
	var invalid *ErrInvalidSignature
	require.ErrorAs(t, err, &invalid)

	badRecovery := make([]byte, 65)
	badRecovery[64] = 9
	_, err = RecoverAddress(digest, badRecovery)
	require.ErrorAs(t, err, &invalid)

	_, err = RecoverAddress([]byte("short"), make([]byte, 65))
	require.ErrorAs(t, err, &invalid)
}

func TestGenerateKey_DistinctAddresses(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, AddressFromKey(a), AddressFromKey(b))
}
