// Package wallet provides blockchain wallet functionality for managing transactions,
// accounts, fees and interactions with EVM networks.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// FeeTier names the resolution path that produced a FeeEstimate.
type FeeTier string

const (
	// FeeTierStandard is the full fee-data query (base fee, gas price, priority fee)
	FeeTierStandard FeeTier = "standard"
	// FeeTierWalletRaw is a raw eth_gasPrice request on the wallet transport
	FeeTierWalletRaw FeeTier = "wallet_raw"
	// FeeTierProvider is the provider's own gas price suggestion
	FeeTierProvider FeeTier = "provider"
	// FeeTierDefault is the fixed fallback price
	FeeTierDefault FeeTier = "default"
)

const (
	// methodNotFoundCode is the JSON-RPC code nodes return for unknown methods
	methodNotFoundCode = -32601

	// baseFeeMultiplier doubles the base fee to survive a few full blocks
	baseFeeMultiplier = 2
)

// DefaultGasPrice is the legacy gas price used when every resolution tier fails.
var DefaultGasPrice = GweiToWei(20)

// FeeEstimate describes how a transaction pays for gas. Either GasPrice (legacy)
// or MaxFeePerGas/MaxPriorityFeePerGas (EIP-1559) is set. It is fetched fresh for
// every transaction and never cached.
type FeeEstimate struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Tier                 FeeTier
}

// IsDynamic reports whether the estimate carries EIP-1559 fields.
func (f *FeeEstimate) IsDynamic() bool {
	return f.MaxFeePerGas != nil && f.MaxPriorityFeePerGas != nil
}

// NewTx builds an unsigned transaction paying gas according to the estimate.
func (f *FeeEstimate) NewTx(chainID *big.Int, nonce uint64, to common.Address, value *big.Int, gas uint64, data []byte) *types.Transaction {
	if value == nil {
		value = new(big.Int)
	}
	if f.IsDynamic() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: f.MaxPriorityFeePerGas,
			GasFeeCap: f.MaxFeePerGas,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: f.GasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}

// String renders the estimate for logs.
func (f *FeeEstimate) String() string {
	if f.IsDynamic() {
		return fmt.Sprintf("maxFee=%s tip=%s (%s)", f.MaxFeePerGas, f.MaxPriorityFeePerGas, f.Tier)
	}
	return fmt.Sprintf("gasPrice=%s (%s)", f.GasPrice, f.Tier)
}

// FeeBackend is the subset of a node client the standard fee query needs.
type FeeBackend interface {
	ethereum.GasPricer
	ethereum.GasPricer1559
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// FeeResolver obtains a usable fee descriptor for a network, walking down a chain of
// fallbacks when the node rejects EIP-1559 queries. Any of the sources may be nil,
// in which case its tier is skipped.
type FeeResolver struct {
	network     NetworkType
	backend     FeeBackend
	walletRaw   RawCaller
	provider    ethereum.GasPricer
	maxGasPrice *big.Int
	log         *logrus.Logger
}

// NewFeeResolver creates a resolver for one network.
//
// Parameters:
//   - log: Logger for per-tier diagnostics
//   - network: Network label used in logs
//   - backend: Source of the standard fee-data query
//   - walletRaw: Raw transport of the signing wallet, used for eth_gasPrice
//   - provider: Provider used for its typed gas price suggestion
//   - maxGasPrice: Optional cap on the resolved price
func NewFeeResolver(log *logrus.Logger, network NetworkType, backend FeeBackend, walletRaw RawCaller, provider ethereum.GasPricer, maxGasPrice *big.Int) *FeeResolver {
	if log == nil {
		log = logrus.New()
	}
	return &FeeResolver{
		network:     network,
		backend:     backend,
		walletRaw:   walletRaw,
		provider:    provider,
		maxGasPrice: maxGasPrice,
		log:         log,
	}
}

// Resolve returns a fee descriptor. It never fails: when every tier errors it
// returns DefaultGasPrice as a legacy price.
func (r *FeeResolver) Resolve(ctx context.Context) *FeeEstimate {
	log := r.log.WithField("network", r.network)

	fee, err := r.standard(ctx)
	if err == nil {
		return r.clamp(fee)
	}
	if IsPriorityFeeUnsupported(err) {
		log.WithError(err).Warn("Network does not support priority fee query, trying raw gas price")
	} else {
		log.WithError(err).Warn("Fee data query failed, trying raw gas price")
	}

	price, err := r.walletRawGasPrice(ctx)
	if err == nil {
		log.WithField("tier", FeeTierWalletRaw).Debug("Resolved gas price from wallet transport")
		return r.clamp(&FeeEstimate{GasPrice: price, Tier: FeeTierWalletRaw})
	}
	log.WithError(err).WithField("tier", FeeTierWalletRaw).Warn("Raw gas price request failed, trying provider")

	price, err = r.providerGasPrice(ctx)
	if err == nil {
		log.WithField("tier", FeeTierProvider).Debug("Resolved gas price from provider")
		return r.clamp(&FeeEstimate{GasPrice: price, Tier: FeeTierProvider})
	}
	log.WithError(err).WithField("tier", FeeTierProvider).Warn("Provider gas price failed, using default")

	return &FeeEstimate{GasPrice: new(big.Int).Set(DefaultGasPrice), Tier: FeeTierDefault}
}

func (r *FeeResolver) standard(ctx context.Context) (fee *FeeEstimate, err error) {
	if r.backend == nil {
		return nil, errors.New("no fee backend")
	}
	defer func() {
		if p := recover(); p != nil {
			fee, err = nil, fmt.Errorf("fee backend panicked: %v", p)
		}
	}()

	header, err := r.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block header: %w", err)
	}

	gasPrice, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	if header == nil || header.BaseFee == nil {
		if gasPrice == nil || gasPrice.Sign() <= 0 {
			return nil, errors.New("node returned no gas price")
		}
		return &FeeEstimate{GasPrice: gasPrice, Tier: FeeTierStandard}, nil
	}

	tip, err := r.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get max priority fee: %w", err)
	}
	if tip == nil {
		return nil, errors.New("node returned no priority fee")
	}

	maxFee := new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeMultiplier))
	maxFee.Add(maxFee, tip)

	return &FeeEstimate{
		GasPrice:             gasPrice,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: new(big.Int).Set(tip),
		Tier:                 FeeTierStandard,
	}, nil
}

func (r *FeeResolver) walletRawGasPrice(ctx context.Context) (*big.Int, error) {
	if r.walletRaw == nil {
		return nil, errors.New("no wallet transport")
	}
	var result hexutil.Big
	if err := r.walletRaw.CallContext(ctx, &result, "eth_gasPrice"); err != nil {
		return nil, err
	}
	price := result.ToInt()
	if price.Sign() <= 0 {
		return nil, errors.New("wallet transport returned zero gas price")
	}
	return new(big.Int).Set(price), nil
}

func (r *FeeResolver) providerGasPrice(ctx context.Context) (*big.Int, error) {
	if r.provider == nil {
		return nil, errors.New("no provider")
	}
	price, err := r.provider.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, errors.New("provider returned zero gas price")
	}
	return price, nil
}

func (r *FeeResolver) clamp(fee *FeeEstimate) *FeeEstimate {
	if r.maxGasPrice == nil {
		return fee
	}
	if fee.GasPrice != nil && fee.GasPrice.Cmp(r.maxGasPrice) > 0 {
		fee.GasPrice = new(big.Int).Set(r.maxGasPrice)
	}
	if fee.MaxFeePerGas != nil && fee.MaxFeePerGas.Cmp(r.maxGasPrice) > 0 {
		fee.MaxFeePerGas = new(big.Int).Set(r.maxGasPrice)
		if fee.MaxPriorityFeePerGas.Cmp(fee.MaxFeePerGas) > 0 {
			fee.MaxPriorityFeePerGas = new(big.Int).Set(fee.MaxFeePerGas)
		}
	}
	return fee
}

// IsPriorityFeeUnsupported reports whether err says the node lacks eth_maxPriorityFeePerGas.
func IsPriorityFeeUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFoundCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"eth_maxpriorityfeepergas", "method not found", "not supported", "does not exist"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
