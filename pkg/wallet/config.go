// Package wallet provides blockchain wallet functionality for managing transactions,
// accounts, fees and interactions with EVM networks.
package wallet

import (
	"math/big"
	"time"
)

// NetworkConfig holds network-specific configuration parameters for blockchain interactions.
// It defines settings like gas limits, retry logic, receipt polling and network identifiers
// that control how transactions are processed on different networks.
type NetworkConfig struct {
	// Type identifies which blockchain network this config is for (e.g. SEPOLIA, AMOY)
	Type NetworkType

	// RPCURL is the HTTP(S) or WS(S) endpoint for connecting to the network
	RPCURL string

	// ChainID is the unique identifier for the blockchain network.
	// Zero means it is queried from the node when needed.
	ChainID int64

	// MaxRetries specifies how many times to retry failed connection attempts
	MaxRetries int

	// RetryDelay is the duration to wait between retry attempts
	RetryDelay time.Duration

	// GasLimitMultiplier is used to add a safety buffer to estimated gas
	// For example, 1.2 adds 20% to the estimated gas limit
	GasLimitMultiplier float64

	// MaxGasPrice sets an upper bound on the gas price or fee cap.
	// Resolved fees above it are clamped. Nil disables the cap.
	MaxGasPrice *big.Int

	// ReceiptTimeout bounds how long WaitForReceipt polls
	ReceiptTimeout time.Duration

	// ReceiptPollInterval is how often WaitForReceipt checks for a receipt
	ReceiptPollInterval time.Duration

	// MinConfirmations is the number of blocks mined on top of the receipt's
	// block before the transaction is considered confirmed
	MinConfirmations uint64
}

const (
	// defaultReceiptTimeout is how long to wait for a receipt
	defaultReceiptTimeout = 5 * time.Minute

	// defaultPollInterval is how often to check for receipt
	defaultPollInterval = 5 * time.Second

	// defaultGasLimitMultiplier is the 20% safety margin applied to gas estimates
	defaultGasLimitMultiplier = 1.2
)

// withDefaults fills zero-valued tuning fields.
func (nc NetworkConfig) withDefaults() NetworkConfig {
	if nc.GasLimitMultiplier <= 0 {
		nc.GasLimitMultiplier = defaultGasLimitMultiplier
	}
	if nc.ReceiptTimeout <= 0 {
		nc.ReceiptTimeout = defaultReceiptTimeout
	}
	if nc.ReceiptPollInterval <= 0 {
		nc.ReceiptPollInterval = defaultPollInterval
	}
	if nc.RetryDelay <= 0 {
		nc.RetryDelay = time.Second
	}
	return nc
}

// DefaultNetworkConfigs returns pre-configured settings for supported blockchain networks.
// RPC URLs are left empty and must be supplied by configuration.
//
// The defaults include:
// - Conservative gas price limits
// - 3 retry attempts with 1 second delay
// - 20% buffer on gas estimates
// - 1 confirmation before a receipt is reported
//
// Example usage:
//
//	configs := DefaultNetworkConfigs()
//	sepolia, ok := LookupNetworkConfig(configs, SEPOLIA)
func DefaultNetworkConfigs() []NetworkConfig {
	base := NetworkConfig{
		MaxRetries:          3,
		RetryDelay:          time.Second,
		GasLimitMultiplier:  defaultGasLimitMultiplier,
		ReceiptTimeout:      defaultReceiptTimeout,
		ReceiptPollInterval: defaultPollInterval,
		MinConfirmations:    1,
	}

	eth := base
	eth.Type, eth.ChainID, eth.MaxGasPrice = ETH, 1, big.NewInt(300000000000) // 300 gwei

	polygon := base
	polygon.Type, polygon.ChainID, polygon.MaxGasPrice = POLYGON, 137, big.NewInt(500000000000) // 500 gwei

	sepolia := base
	sepolia.Type, sepolia.ChainID, sepolia.MaxGasPrice = SEPOLIA, 11155111, big.NewInt(100000000000) // 100 gwei

	amoy := base
	amoy.Type, amoy.ChainID, amoy.MaxGasPrice = AMOY, 80002, big.NewInt(100000000000)

	local := base
	local.Type, local.ChainID, local.MinConfirmations = LOCAL, 31337, 0
	local.ReceiptPollInterval = 500 * time.Millisecond

	return []NetworkConfig{eth, polygon, sepolia, amoy, local}
}

// LookupNetworkConfig returns the config for network from configs.
func LookupNetworkConfig(configs []NetworkConfig, network NetworkType) (NetworkConfig, bool) {
	for _, c := range configs {
		if c.Type == network {
			return c, true
		}
	}
	return NetworkConfig{}, false
}
