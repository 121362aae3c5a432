// Package wallet provides blockchain wallet functionality for managing transactions,
// accounts, fees and interactions with EVM networks.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Error codes for various wallet operations
const (
	// ErrCodeInvalidNetwork indicates the specified network is not supported
	ErrCodeInvalidNetwork = "INVALID_NETWORK"
	// ErrCodeInvalidAddress indicates an invalid blockchain address format or checksum
	ErrCodeInvalidAddress = "INVALID_ADDRESS"
	// ErrCodeInvalidAmount indicates a zero, negative or unparsable amount
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	// ErrCodeInvalidPrivateKey indicates an invalid or malformed private key
	ErrCodeInvalidPrivateKey = "INVALID_PRIVATE_KEY"
	// ErrCodeNoSigner indicates a write was attempted without a signing key
	ErrCodeNoSigner = "NO_SIGNER"
	// ErrCodeTransactionFailed indicates a transaction failed to execute or was mined with failed status
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	// ErrCodeGasEstimationFailed indicates gas estimation failed
	ErrCodeGasEstimationFailed = "GAS_ESTIMATION_FAILED"
	// ErrCodeReverted indicates the EVM reverted the call
	ErrCodeReverted = "EXECUTION_REVERTED"
	// ErrCodeInsufficientFunds indicates insufficient token balance for the operation
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	// ErrCodeInsufficientAllowance indicates the spender allowance is below the amount
	ErrCodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	// ErrCodeInsufficientGasFunds indicates the sender cannot pay for gas
	ErrCodeInsufficientGasFunds = "INSUFFICIENT_GAS_FUNDS"
	// ErrCodeTokenNotFound indicates there is no bytecode at the token address
	ErrCodeTokenNotFound = "TOKEN_CONTRACT_NOT_FOUND"
	// ErrCodeUserRejected indicates the signer refused the request
	ErrCodeUserRejected = "USER_REJECTED"
	// ErrCodeUnsupportedCurrency indicates the contract does not support a currency
	ErrCodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	// ErrCodeRPCError indicates an RPC connection or call failed
	ErrCodeRPCError = "RPC_ERROR"
	// ErrCodeTimeout indicates operation timed out
	ErrCodeTimeout = "TIMEOUT"
	// ErrCodeInvalidABI indicates invalid or malformed contract ABI
	ErrCodeInvalidABI = "INVALID_ABI"
	// ErrCodeContractError indicates contract interaction failed
	ErrCodeContractError = "CONTRACT_ERROR"
)

// Sentinel errors for errors.Is checks. A *WalletError matches the sentinel with the same code.
var (
	ErrInvalidAddress        = &WalletError{Code: ErrCodeInvalidAddress, Message: "invalid address"}
	ErrInvalidAmount         = &WalletError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
	ErrInsufficientBalance   = &WalletError{Code: ErrCodeInsufficientFunds, Message: "insufficient balance"}
	ErrInsufficientAllowance = &WalletError{Code: ErrCodeInsufficientAllowance, Message: "insufficient allowance"}
	ErrTokenNotFound         = &WalletError{Code: ErrCodeTokenNotFound, Message: "token contract not found"}
	ErrTransactionFailed     = &WalletError{Code: ErrCodeTransactionFailed, Message: "transaction failed"}
	ErrUserRejected          = &WalletError{Code: ErrCodeUserRejected, Message: "user rejected"}
	ErrUnsupportedCurrency   = &WalletError{Code: ErrCodeUnsupportedCurrency, Message: "unsupported currency"}
	ErrInsufficientGasFunds  = &WalletError{Code: ErrCodeInsufficientGasFunds, Message: "insufficient funds for gas"}
)

// WalletError represents a wallet-specific error with additional context
// about the error type, message, underlying error and network.
type WalletError struct {
	Code    string      // Error code identifying the type of error
	Message string      // Human readable error message
	Err     error       // Underlying error if any
	Network NetworkType // Network where the error occurred
}

// Error implements the error interface for WalletError.
// It formats the error message including the code, message, network (if present)
// and underlying error.
func (e *WalletError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Network != "" {
		msg += fmt.Sprintf(" on network %s", e.Network)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *WalletError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a WalletError with the same code.
func (e *WalletError) Is(target error) bool {
	t, ok := target.(*WalletError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewWalletError creates a new WalletError with the given parameters.
//
// Parameters:
//   - code: Error code identifying the type of error
//   - message: Human readable error message
//   - err: Underlying error if any
//   - network: Network where the error occurred
//
// Returns:
//   - *WalletError: A new wallet error instance
func NewWalletError(code string, message string, err error, network NetworkType) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
		Network: network,
	}
}

// IsWalletError checks if an error chain contains a WalletError with the given code.
func IsWalletError(err error, code string) bool {
	var we *WalletError
	if !errors.As(err, &we) {
		return false
	}
	return we.Code == code
}

// ErrorCode returns the code of the first WalletError in err's chain, or "".
func ErrorCode(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// userRejectedCode is the EIP-1193 code external signers use for refusals.
const userRejectedCode = 4001

// ClassifyTxError maps a node or signer error to a wallet error code.
// It returns "" when the error does not match a known class.
func ClassifyTxError(err error) string {
	if err == nil {
		return ""
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return ErrCodeUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"),
		strings.Contains(msg, "rejected by user"):
		return ErrCodeUserRejected
	case strings.Contains(msg, "insufficient funds"):
		return ErrCodeInsufficientGasFunds
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return ErrCodeReverted
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return ErrCodeReverted
	}
	return ErrorCode(err)
}
