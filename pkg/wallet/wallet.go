// Package wallet provides blockchain wallet functionality for managing transactions,
// accounts, fees and interactions with EVM networks.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NetworkType represents supported EVM networks
type NetworkType string

const (
	// ETH represents the Ethereum mainnet network
	ETH NetworkType = "ETH"
	// POLYGON represents the Polygon PoS mainnet
	POLYGON NetworkType = "POLYGON"
	// SEPOLIA represents the Ethereum Sepolia testnet
	SEPOLIA NetworkType = "SEPOLIA"
	// AMOY represents the Polygon Amoy testnet
	AMOY NetworkType = "AMOY"
	// LOCAL represents a local development node (anvil, hardhat)
	LOCAL NetworkType = "LOCAL"
)

// ParseNetworkType normalizes a network name. Unknown names are returned upper-cased
// so custom networks can still be configured with an explicit chain ID.
func ParseNetworkType(name string) NetworkType {
	return NetworkType(strings.ToUpper(strings.TrimSpace(name)))
}

// Client represents an EVM wallet client that manages connections and interactions
// with multiple blockchain networks. It handles transaction signing, nonce management,
// fee resolution and network-specific configurations.
//
// A Client built without a private key is read-only: HasSigner reports false and
// every write fails with ErrCodeNoSigner.
type Client struct {
	backends     map[NetworkType]Backend
	closers      map[NetworkType]func()
	configs      map[NetworkType]NetworkConfig
	feeResolvers map[NetworkType]*FeeResolver
	keyManager   *KeyManager
	nonceManager *NonceManager
	mu           sync.RWMutex
	log          *logrus.Logger
}

// NewClient creates a new wallet client with the provided configurations and private key.
// It establishes connections to all configured networks and initializes the key manager.
// An empty private key yields a read-only client.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - log: Logger instance for client operations
//   - configs: Network configurations for supported chains
//   - privateKey: Private key for transaction signing, may be empty
//
// Returns:
//   - *Client: Initialized wallet client
//   - error: Error if initialization fails
//
// Example:
//
//	configs := []NetworkConfig{
//	    {Type: SEPOLIA, RPCURL: "https://sepolia.example.com"},
//	    {Type: AMOY, RPCURL: "https://amoy.example.com"},
//	}
//	client, err := NewClient(ctx, logger, configs, privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewClient(ctx context.Context, log *logrus.Logger, configs []NetworkConfig, privateKey string) (*Client, error) {
	var keyManager *KeyManager
	if privateKey != "" {
		km, err := NewKeyManager(privateKey)
		if err != nil {
			return nil, NewWalletError(ErrCodeInvalidPrivateKey, "failed to initialize key manager", err, "")
		}
		keyManager = km
	}

	client := newClient(log, keyManager)

	for _, config := range configs {
		config = config.withDefaults()
		rpcClient, err := client.dialWithRetry(ctx, config)
		if err != nil {
			client.Close()
			return nil, NewWalletError(ErrCodeRPCError, "failed to connect to network", err, config.Type)
		}
		ethClient := ethclient.NewClient(rpcClient)
		client.register(config, ethClient, rpcClient, ethClient.Close)
	}

	return client, nil
}

// NewClientWithBackends creates a client over already-connected backends. It is used
// by tests and by callers that manage their own transports. raw may omit networks.
func NewClientWithBackends(log *logrus.Logger, configs []NetworkConfig, keyManager *KeyManager, backends map[NetworkType]Backend, raw map[NetworkType]RawCaller) (*Client, error) {
	client := newClient(log, keyManager)
	for _, config := range configs {
		backend, ok := backends[config.Type]
		if !ok {
			return nil, NewWalletError(ErrCodeInvalidNetwork, "no backend for network", nil, config.Type)
		}
		client.register(config.withDefaults(), backend, raw[config.Type], nil)
	}
	return client, nil
}

func newClient(log *logrus.Logger, keyManager *KeyManager) *Client {
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		backends:     make(map[NetworkType]Backend),
		closers:      make(map[NetworkType]func()),
		configs:      make(map[NetworkType]NetworkConfig),
		feeResolvers: make(map[NetworkType]*FeeResolver),
		keyManager:   keyManager,
		nonceManager: newNonceManager(),
		log:          log,
	}
}

func (c *Client) register(config NetworkConfig, backend Backend, raw RawCaller, closer func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.backends[config.Type] = backend
	c.configs[config.Type] = config
	if closer != nil {
		c.closers[config.Type] = closer
	}

	// The raw transport only exists when we hold a key; a read-only client has no
	// wallet transport to ask.
	var walletRaw RawCaller
	if c.keyManager != nil && raw != nil {
		walletRaw = raw
	}
	var provider ethereum.GasPricer = backend
	c.feeResolvers[config.Type] = NewFeeResolver(c.log, config.Type, backend, walletRaw, provider, config.MaxGasPrice)
}

// HasSigner reports whether the client can sign transactions.
func (c *Client) HasSigner() bool {
	return c.keyManager != nil
}

// Address returns the signing address, or the zero address for a read-only client.
func (c *Client) Address() common.Address {
	if c.keyManager == nil {
		return common.Address{}
	}
	return c.keyManager.GetAddress()
}

// Backend returns the chain backend for a network.
func (c *Client) Backend(network NetworkType) (Backend, error) {
	backend, _, err := c.getBackendAndConfig(network)
	return backend, err
}

// Config returns the effective configuration for a network.
func (c *Client) Config(network NetworkType) (NetworkConfig, error) {
	_, config, err := c.getBackendAndConfig(network)
	return config, err
}

// FeeResolver returns the fee resolver bound to a network.
func (c *Client) FeeResolver(network NetworkType) (*FeeResolver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.feeResolvers[network]
	if !ok {
		return nil, NewWalletError(ErrCodeInvalidNetwork, fmt.Sprintf("network %s not configured", network), nil, network)
	}
	return r, nil
}

// GetBalance retrieves the native token balance for an address on the specified network.
//
// Parameters:
//   - ctx: Context for the operation
//   - network: Target blockchain network
//   - address: Address to check balance for
//
// Returns:
//   - *big.Int: Balance in wei if successful
//   - error: Error if balance check fails
func (c *Client) GetBalance(ctx context.Context, network NetworkType, address string) (*big.Int, error) {
	addr, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}

	backend, _, err := c.getBackendAndConfig(network)
	if err != nil {
		return nil, err
	}

	balance, err := backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get balance", err, network)
	}

	c.log.WithFields(logrus.Fields{
		"network": network,
		"address": address,
		"balance": balance.String(),
	}).Debug("Retrieved balance")

	return balance, nil
}

// EstimateGas estimates the gas required for a transaction sent from the signing
// address and applies the network's gas limit multiplier to the estimate.
//
// Parameters:
//   - ctx: Context for the operation
//   - network: Target blockchain network
//   - to: Recipient address
//   - data: Transaction data payload
//   - value: Amount of native currency to send
//
// Returns:
//   - uint64: Gas limit including the safety margin
//   - error: GAS_ESTIMATION_FAILED wrapping the node error
func (c *Client) EstimateGas(ctx context.Context, network NetworkType, to common.Address, data []byte, value *big.Int) (uint64, error) {
	backend, config, err := c.getBackendAndConfig(network)
	if err != nil {
		return 0, err
	}

	msg := ethereum.CallMsg{
		From:  c.Address(),
		To:    &to,
		Data:  data,
		Value: value,
	}

	estimatedGas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, NewWalletError(ErrCodeGasEstimationFailed, "failed to estimate gas", err, network)
	}

	return applyGasMargin(estimatedGas, config.GasLimitMultiplier), nil
}

// SendTransaction sends a transaction on the specified network and waits for confirmation.
// It handles nonce management, gas estimation, fee resolution and transaction signing.
//
// Example:
//
//	status, err := client.SendTransaction(ctx, SEPOLIA, toAddr, data, value)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Transaction confirmed in block %s\n", status.BlockNumber)
func (c *Client) SendTransaction(ctx context.Context, network NetworkType, to common.Address, data []byte, value *big.Int) (*TransactionStatus, error) {
	return c.SendTransactionWithOptions(ctx, network, to, data, value, DefaultTransactionOptions())
}

// applyGasMargin scales gas by multiplier, rounding up.
func applyGasMargin(gas uint64, multiplier float64) uint64 {
	return uint64(decimal.NewFromInt(int64(gas)).Mul(decimal.NewFromFloat(multiplier)).Ceil().IntPart())
}

// dialWithRetry attempts to connect to the network with retry mechanism.
// It will retry failed connection attempts based on the network configuration.
func (c *Client) dialWithRetry(ctx context.Context, config NetworkConfig) (*rpc.Client, error) {
	var client *rpc.Client
	var err error

	for i := 0; i <= config.MaxRetries; i++ {
		client, err = rpc.DialContext(ctx, config.RPCURL)
		if err == nil {
			return client, nil
		}

		if i < config.MaxRetries {
			c.log.WithFields(logrus.Fields{
				"network": config.Type,
				"attempt": i + 1,
				"error":   err,
			}).Debug("Retrying network connection")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(config.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", config.MaxRetries+1, err)
}

// getBackendAndConfig returns the backend and config for a network.
// It provides thread-safe access to the backend and configuration maps.
func (c *Client) getBackendAndConfig(network NetworkType) (Backend, NetworkConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	backend, ok := c.backends[network]
	if !ok {
		return nil, NetworkConfig{}, NewWalletError(ErrCodeInvalidNetwork, fmt.Sprintf("network %s not configured", network), nil, network)
	}

	return backend, c.configs[network], nil
}

// Close closes all network connections and cleans up resources.
// It should be called when the client is no longer needed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for network, closer := range c.closers {
		closer()
		c.log.WithField("network", network).Debug("Closed network connection")
	}
	c.closers = make(map[NetworkType]func())
}
