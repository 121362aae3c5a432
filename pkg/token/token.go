// Package token reads token balances and submits token transfers for the swap wallet.
//
// Two implementations share the Client interface: Live talks to the configured
// ERC-20 contract and reports every failure, Simulated returns placeholder values.
// Degrading composes them for display paths that prefer a value over an error.
package token

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PlaceholderBalance is reported when no real balance can be read.
var PlaceholderBalance = decimal.NewFromInt(1000)

// Balance is a human-scaled token balance.
type Balance struct {
	Amount decimal.Decimal
	// Placeholder is set when Amount is not a chain reading
	Placeholder bool
	// Cause holds the read failure that produced a placeholder, if any
	Cause error
}

// TransferResult identifies a submitted transfer.
type TransferResult struct {
	TxHash string
	// Synthetic is set when TxHash does not refer to a real transaction
	Synthetic bool
	// Cause holds the failure that produced a synthetic result, if any
	Cause  error
	Status *wallet.TransactionStatus
}

// Client reads balances and transfers tokens from the swap wallet.
type Client interface {
	Balance(ctx context.Context, address string) (Balance, error)
	Transfer(ctx context.Context, to string, amount decimal.Decimal) (TransferResult, error)
}

// Config selects and configures a Client.
type Config struct {
	Wallet  *wallet.Client
	Network wallet.NetworkType
	// TokenAddress is empty when no token contract is configured
	TokenAddress string
	// Degrade substitutes placeholder results for live failures
	Degrade bool
	Log     *logrus.Logger
}

// New selects the implementation once. Without a token address or wallet the client
// is Simulated; otherwise it is Live, wrapped in Degrading when cfg.Degrade is set.
func New(cfg Config) (Client, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}

	simulated := NewSimulated(log)
	if strings.TrimSpace(cfg.TokenAddress) == "" || cfg.Wallet == nil {
		log.WithField("network", cfg.Network).Info("No token contract configured, using simulated balances")
		return simulated, nil
	}

	tokenAddr, err := wallet.ValidateAddress(cfg.TokenAddress)
	if err != nil {
		return nil, err
	}

	live := NewLive(log, cfg.Wallet, cfg.Network, tokenAddr, nil)
	if !cfg.Degrade {
		return live, nil
	}
	return NewDegrading(log, live, simulated), nil
}

// SyntheticTxHash returns a random 32-byte hex identifier shaped like a transaction hash.
func SyntheticTxHash() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

func validateAddress(address string) (common.Address, error) {
	return wallet.ValidateAddress(strings.TrimSpace(address))
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return wallet.NewWalletError(wallet.ErrCodeInvalidAmount, "amount must be greater than zero", nil, "")
	}
	return nil
}
