package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for client configuration
const (
	EnvNetwork      = "HL_NETWORK"
	EnvPrivateKey   = "HL_PRIVATE_KEY"
	EnvVaultAddress = "HL_VAULT_ADDRESS"
	EnvStoreType    = "HL_STORE_TYPE"
	EnvStorePath    = "HL_STORE_PATH"
	EnvRedisAddress = "HL_REDIS_ADDRESS"
	EnvVerbose      = "HL_VERBOSE"
)

// Network selects the exchange environment a client talks to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

func (n Network) String() string {
	return string(n)
}

// ChainTag returns the single-character source discriminator used by the
// signing pipeline ("a" mainnet, "b" testnet).
func (n Network) ChainTag() (string, error) {
	switch n {
	case NetworkMainnet:
		return "a", nil
	case NetworkTestnet:
		return "b", nil
	default:
		return "", fmt.Errorf("unsupported network: %s", n)
	}
}

var networkAPIURLs = map[Network]string{
	NetworkMainnet: "https://api.hyperliquid.xyz",
	NetworkTestnet: "https://api.hyperliquid-testnet.xyz",
}

var networkWsURLs = map[Network]string{
	NetworkMainnet: "wss://api.hyperliquid.xyz/ws",
	NetworkTestnet: "wss://api.hyperliquid-testnet.xyz/ws",
}

// APIURL returns the HTTP base URL for the network.
func (n Network) APIURL() (string, error) {
	url, ok := networkAPIURLs[n]
	if !ok {
		return "", fmt.Errorf("unsupported network: %s", n)
	}
	return url, nil
}

// WsURL returns the streaming endpoint URL for the network.
func (n Network) WsURL() (string, error) {
	url, ok := networkWsURLs[n]
	if !ok {
		return "", fmt.Errorf("unsupported network: %s", n)
	}
	return url, nil
}

// SupportedNetworks returns all supported networks.
func SupportedNetworks() []Network {
	return []Network{NetworkMainnet, NetworkTestnet}
}

// Transport timing defaults
const (
	DefaultRequestTimeout    = 10 * time.Second
	DefaultMaxAttempts       = 3
	DefaultBackoffUnit       = 500 * time.Millisecond
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMaxReconnects     = 5
	DefaultReconnectUnit     = time.Second
)

// ClientConfig represents the complete configuration for an authenticated
// exchange client.
type ClientConfig struct {
	Network      Network `json:"network"`
	PrivateKey   string  `json:"-"` // hex, never serialized or logged
	VaultAddress string  `json:"vault_address,omitempty"`

	RequestTimeout time.Duration `json:"request_timeout"`
	MaxAttempts    int           `json:"max_attempts"`
	BackoffUnit    time.Duration `json:"backoff_unit"`

	Verbose bool `json:"verbose"`
}

// Validate validates the client configuration and fills in defaults.
func (c *ClientConfig) Validate() error {
	if _, err := c.Network.ChainTag(); err != nil {
		return err
	}

	if c.PrivateKey == "" {
		return fmt.Errorf("private key cannot be empty")
	}

	if c.VaultAddress != "" && !common.IsHexAddress(c.VaultAddress) {
		return fmt.Errorf("invalid vault address format: %s", c.VaultAddress)
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffUnit == 0 {
		c.BackoffUnit = DefaultBackoffUnit
	}

	return nil
}

// StoreType selects the event store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// StoreConfig configures the event journal backend.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// Badger
	DataPath string `json:"dataPath,omitempty" yaml:"dataPath,omitempty"`

	// Redis
	RedisAddress  string `json:"redisAddress,omitempty" yaml:"redisAddress,omitempty"`
	RedisPassword string `json:"-" yaml:"-"`
	RedisDB       int    `json:"redisDB,omitempty" yaml:"redisDB,omitempty"`
	KeyPrefix     string `json:"keyPrefix,omitempty" yaml:"keyPrefix,omitempty"`
}

func (sc *StoreConfig) Validate() error {
	var allErrors field.ErrorList

	switch sc.Type {
	case StoreTypeMemory:
		// No further configuration required
	case StoreTypeBadger:
		if sc.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger store"))
		}
	case StoreTypeRedis:
		if sc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis store"))
		}
		if sc.RedisDB < 0 || sc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), sc.RedisDB, "redis DB must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), sc.Type, []StoreType{StoreTypeMemory, StoreTypeBadger, StoreTypeRedis}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
