package wallet

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TransactionStatus represents the status of a transaction on the blockchain.
// It tracks important transaction details like hash, confirmation status,
// gas usage, and any errors that occurred during processing.
type TransactionStatus struct {
	// Hash is the unique transaction identifier
	Hash common.Hash

	// Status indicates transaction success (1) or failure (0)
	Status uint64

	// BlockNumber is the block height where transaction was mined
	BlockNumber *big.Int

	// GasUsed is the actual amount of gas consumed
	GasUsed uint64

	// EffectiveGasPrice is the actual gas price paid
	EffectiveGasPrice *big.Int

	// Confirmations is the number of block confirmations
	Confirmations uint64

	// State tracks the current transaction state
	State TransactionState

	// Fee is the fee descriptor the transaction was priced with
	Fee *FeeEstimate

	// Timestamp when the status was last updated
	Timestamp time.Time
}

// TransactionState represents the possible states of a transaction
type TransactionState int

const (
	// TxStatePending indicates transaction is waiting to be mined
	TxStatePending TransactionState = iota

	// TxStateConfirmed indicates transaction was successfully mined
	TxStateConfirmed

	// TxStateFailed indicates transaction was mined with a failed status
	TxStateFailed
)

// String returns the state name used in logs.
func (s TransactionState) String() string {
	switch s {
	case TxStatePending:
		return "pending"
	case TxStateConfirmed:
		return "confirmed"
	case TxStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the transaction was mined with a successful status.
func (ts *TransactionStatus) Succeeded() bool {
	return ts != nil && ts.State == TxStateConfirmed && ts.Status == types.ReceiptStatusSuccessful
}

// WaitForReceipt waits for a transaction receipt and returns the transaction status.
// It polls the network at the configured interval until the transaction is mined and
// has reached the configured number of confirmations. A receipt with a failed status
// is returned together with a TRANSACTION_FAILED error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - network: Target blockchain network
//   - hash: Transaction hash to wait for
//
// Returns:
//   - *TransactionStatus: Final transaction status
//   - error: Error if receipt cannot be retrieved or reports failure
//
// Example:
//
//	status, err := client.WaitForReceipt(ctx, SEPOLIA, txHash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Transaction confirmed in block %s\n", status.BlockNumber)
func (c *Client) WaitForReceipt(ctx context.Context, network NetworkType, hash common.Hash) (*TransactionStatus, error) {
	backend, config, err := c.getBackendAndConfig(network)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(config.ReceiptPollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(config.ReceiptTimeout)
	defer timeout.Stop()

	for {
		status, done, err := c.checkReceipt(ctx, backend, config, hash)
		if done {
			return status, err
		}

		select {
		case <-ctx.Done():
			return nil, NewWalletError(ErrCodeTimeout, "context cancelled while waiting for receipt", ctx.Err(), network)
		case <-timeout.C:
			return nil, NewWalletError(ErrCodeTimeout, "timeout waiting for receipt", nil, network)
		case <-ticker.C:
		}
	}
}

// checkReceipt performs one poll. done is false while the receipt is missing or
// still short of the required confirmations.
func (c *Client) checkReceipt(ctx context.Context, backend Backend, config NetworkConfig, hash common.Hash) (*TransactionStatus, bool, error) {
	receipt, err := backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			c.log.WithFields(logrus.Fields{
				"network": config.Type,
				"tx_hash": hash.Hex(),
				"error":   err,
			}).Debug("Receipt lookup failed, polling again")
		}
		return nil, false, nil
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, false, nil
	}

	var confirmations uint64
	if config.MinConfirmations > 0 {
		currentBlock, err := backend.BlockNumber(ctx)
		if err != nil {
			return nil, true, NewWalletError(ErrCodeRPCError, "failed to get current block number", err, config.Type)
		}
		if currentBlock >= receipt.BlockNumber.Uint64() {
			confirmations = currentBlock - receipt.BlockNumber.Uint64()
		}
		if confirmations < config.MinConfirmations {
			return nil, false, nil
		}
	}

	status := &TransactionStatus{
		Hash:              hash,
		Status:            receipt.Status,
		BlockNumber:       receipt.BlockNumber,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Confirmations:     confirmations,
		State:             TxStateConfirmed,
		Timestamp:         time.Now(),
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		status.State = TxStateFailed
		return status, true, NewWalletError(ErrCodeTransactionFailed, "transaction reverted on chain", nil, config.Type)
	}
	return status, true, nil
}

// TransactionOptions represents configurable options for sending transactions.
type TransactionOptions struct {
	// GasLimit overrides estimation when non-zero
	GasLimit uint64

	// Nonce allows manual nonce specification
	Nonce *uint64

	// WaitReceipt determines if we wait for mining
	WaitReceipt bool
}

// DefaultTransactionOptions returns options that estimate gas, allocate a nonce
// and wait for the receipt.
func DefaultTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		WaitReceipt: true,
	}
}

// SendTransactionWithOptions sends a transaction with custom options for gas limit,
// nonce management, and receipt waiting. Fees come from the network's FeeResolver,
// so the transaction is dynamic-fee when the node supports it and legacy otherwise.
//
// Parameters:
//   - ctx: Context for cancellation
//   - network: Target blockchain network
//   - to: Recipient address
//   - data: Transaction data payload
//   - value: Amount of native currency to send
//   - opts: Custom transaction options
//
// Returns:
//   - *TransactionStatus: Status of sent transaction
//   - error: Error if transaction fails
//
// Example:
//
//	opts := DefaultTransactionOptions()
//	opts.WaitReceipt = false
//	status, err := client.SendTransactionWithOptions(ctx, SEPOLIA, toAddr, data, value, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) SendTransactionWithOptions(
	ctx context.Context,
	network NetworkType,
	to common.Address,
	data []byte,
	value *big.Int,
	opts *TransactionOptions,
) (*TransactionStatus, error) {
	if opts == nil {
		opts = DefaultTransactionOptions()
	}
	if c.keyManager == nil {
		return nil, NewWalletError(ErrCodeNoSigner, "no signing key configured", nil, network)
	}

	backend, config, err := c.getBackendAndConfig(network)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit, err = c.EstimateGas(ctx, network, to, data, value)
		if err != nil {
			return nil, err
		}
	}

	var nonce uint64
	if opts.Nonce != nil {
		nonce = *opts.Nonce
	} else {
		nonce, err = c.nonceManager.GetNonce(ctx, backend, network, c.keyManager.GetAddress())
		if err != nil {
			return nil, err
		}
		defer c.nonceManager.ReleaseNonce(network, nonce)
	}

	chainID, err := c.chainID(ctx, backend, config)
	if err != nil {
		return nil, err
	}

	resolver, err := c.FeeResolver(network)
	if err != nil {
		return nil, err
	}
	fee := resolver.Resolve(ctx)

	signedTx, err := c.keyManager.SignTx(fee.NewTx(chainID, nonce, to, value, gasLimit, data), chainID)
	if err != nil {
		return nil, NewWalletError(ErrCodeTransactionFailed, "failed to sign transaction", err, network)
	}

	log := c.log.WithFields(logrus.Fields{
		"network":   network,
		"tx_hash":   signedTx.Hash().Hex(),
		"nonce":     nonce,
		"gas_limit": gasLimit,
		"fee":       fee.String(),
	})

	if err := backend.SendTransaction(ctx, signedTx); err != nil {
		code := ClassifyTxError(err)
		if code == "" {
			code = ErrCodeTransactionFailed
		}
		log.WithError(err).WithField("code", code).Warn("Failed to send transaction")
		return nil, NewWalletError(code, "failed to send transaction", err, network)
	}
	log.Info("Transaction submitted")

	if !opts.WaitReceipt {
		return &TransactionStatus{
			Hash:      signedTx.Hash(),
			State:     TxStatePending,
			Fee:       fee,
			Timestamp: time.Now(),
		}, nil
	}

	status, err := c.WaitForReceipt(ctx, network, signedTx.Hash())
	if status != nil {
		status.Fee = fee
	}
	return status, err
}

func (c *Client) chainID(ctx context.Context, backend Backend, config NetworkConfig) (*big.Int, error) {
	if config.ChainID != 0 {
		return big.NewInt(config.ChainID), nil
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get chain ID", err, config.Type)
	}
	return chainID, nil
}
