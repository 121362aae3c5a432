package swap

import (
	"context"
	"strings"
	"sync"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/sirupsen/logrus"
)

// ConnectorConfig describes where the swap contract lives.
type ConnectorConfig struct {
	Wallet  *wallet.Client
	Network wallet.NetworkType
	// ContractAddress comes from configuration
	ContractAddress string
	// OverrideAddress is the persisted override and wins over ContractAddress
	OverrideAddress string
}

// Connector verifies the swap contract and holds the connected handle.
// It is connected only after the provider, address, bytecode and probe checks pass.
type Connector struct {
	cfg ConnectorConfig
	log *logrus.Logger

	mu       sync.RWMutex
	contract *Contract
}

// NewConnector creates a disconnected connector.
func NewConnector(log *logrus.Logger, cfg ConnectorConfig) *Connector {
	if log == nil {
		log = logrus.New()
	}
	return &Connector{cfg: cfg, log: log}
}

// ResolveAddress returns the address Connect will use: the override when set,
// otherwise the configured address.
func (c *Connector) ResolveAddress() string {
	if addr := strings.TrimSpace(c.cfg.OverrideAddress); addr != "" {
		return addr
	}
	return strings.TrimSpace(c.cfg.ContractAddress)
}

// Connect runs the connection checks and reports whether the contract is usable.
// A missing provider, address or contract is an expected condition, so it is
// reported as false and logged rather than returned as an error. Any previous
// handle is dropped first.
func (c *Connector) Connect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.contract = nil
	log := c.log.WithField("network", c.cfg.Network)

	if c.cfg.Wallet == nil {
		log.Info("No wallet provider, staying in simulated mode")
		return false
	}
	if _, err := c.cfg.Wallet.Backend(c.cfg.Network); err != nil {
		log.WithError(err).Info("Network not available, staying in simulated mode")
		return false
	}

	raw := c.ResolveAddress()
	if raw == "" {
		log.Info("No contract address configured, staying in simulated mode")
		return false
	}
	address, err := wallet.ValidateAddress(raw)
	if err != nil {
		log.WithField("contract", raw).WithError(err).Warn("Contract address is invalid")
		return false
	}
	log = log.WithField("contract", address.Hex())

	hasCode, err := c.cfg.Wallet.HasCode(ctx, c.cfg.Network, address)
	if err != nil {
		log.WithError(err).Warn("Failed to read contract bytecode")
		return false
	}
	if !hasCode {
		log.Warn("No contract deployed at address")
		return false
	}

	contract, err := newContract(c.cfg.Wallet, c.cfg.Network, address)
	if err != nil {
		log.WithError(err).Warn("Failed to bind contract")
		return false
	}
	rate, err := contract.GSTRate(ctx)
	if err != nil {
		log.WithError(err).Warn("Contract probe failed")
		return false
	}

	c.contract = contract
	log.WithFields(logrus.Fields{
		"gst_rate":   rate.String(),
		"has_signer": c.cfg.Wallet.HasSigner(),
	}).Info("Connected to swap contract")
	return true
}

// Disconnect drops the contract handle.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contract = nil
}

// Contract returns the connected contract, or false when not connected.
func (c *Connector) Contract() (*Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contract, c.contract != nil
}

// Status derives the connection status from the current handles.
func (c *Connector) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := ConnectionStatus{IsConnected: c.contract != nil}
	if c.cfg.Wallet != nil {
		_, err := c.cfg.Wallet.Backend(c.cfg.Network)
		status.HasProvider = err == nil
		status.HasSigner = c.cfg.Wallet.HasSigner()
	}
	if c.contract != nil {
		status.ContractAddress = c.contract.Address().Hex()
	}
	return status
}
