// Package backendmock provides a configurable in-memory wallet.Backend for tests.
package backendmock

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
)

// ErrNotImplemented is returned by every method without a configured function.
var ErrNotImplemented = errors.New("not implemented")

// Backend is the mock. Calls counts every method invocation so tests can assert
// that a code path made no network call.
type Backend struct {
	calls atomic.Int64

	codeAt              func(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	callContract        func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	sendTransaction     func(ctx context.Context, tx *types.Transaction) error
	suggestGasPrice     func(ctx context.Context) (*big.Int, error)
	suggestGasTipCap    func(ctx context.Context) (*big.Int, error)
	estimateGas         func(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	transactionReceipt  func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	pendingNonceAt      func(ctx context.Context, account common.Address) (uint64, error)
	blockNumber         func(ctx context.Context) (uint64, error)
	headerByNumber      func(ctx context.Context, number *big.Int) (*types.Header, error)
	balanceAt           func(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error)
	chainID             func(ctx context.Context) (*big.Int, error)
	filterLogs          func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	subscribeFilterLogs func(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

var _ wallet.Backend = (*Backend)(nil)

// Calls returns how many backend methods have been invoked.
func (m *Backend) Calls() int64 {
	return m.calls.Load()
}

func (m *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	m.calls.Add(1)
	if m.codeAt != nil {
		return m.codeAt(ctx, contract, blockNumber)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls.Add(1)
	if m.callContract != nil {
		return m.callContract(ctx, call, blockNumber)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return m.CodeAt(ctx, account, nil)
}

func (m *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.calls.Add(1)
	if m.pendingNonceAt != nil {
		return m.pendingNonceAt(ctx, account)
	}
	return 0, ErrNotImplemented
}

func (m *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.calls.Add(1)
	if m.suggestGasPrice != nil {
		return m.suggestGasPrice(ctx)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	m.calls.Add(1)
	if m.suggestGasTipCap != nil {
		return m.suggestGasTipCap(ctx)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	m.calls.Add(1)
	if m.estimateGas != nil {
		return m.estimateGas(ctx, call)
	}
	return 0, ErrNotImplemented
}

func (m *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.calls.Add(1)
	if m.sendTransaction != nil {
		return m.sendTransaction(ctx, tx)
	}
	return ErrNotImplemented
}

func (m *Backend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	m.calls.Add(1)
	if m.filterLogs != nil {
		return m.filterLogs(ctx, query)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	m.calls.Add(1)
	if m.subscribeFilterLogs != nil {
		return m.subscribeFilterLogs(ctx, query, ch)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.calls.Add(1)
	if m.transactionReceipt != nil {
		return m.transactionReceipt(ctx, txHash)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	m.calls.Add(1)
	if m.blockNumber != nil {
		return m.blockNumber(ctx)
	}
	return 0, ErrNotImplemented
}

func (m *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	m.calls.Add(1)
	if m.headerByNumber != nil {
		return m.headerByNumber(ctx, number)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) BalanceAt(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error) {
	m.calls.Add(1)
	if m.balanceAt != nil {
		return m.balanceAt(ctx, address, block)
	}
	return nil, ErrNotImplemented
}

func (m *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	m.calls.Add(1)
	if m.chainID != nil {
		return m.chainID(ctx)
	}
	return nil, ErrNotImplemented
}

// New builds a mock backend from options.
func New(opts ...Option) *Backend {
	mock := new(Backend)
	for _, o := range opts {
		o.apply(mock)
	}
	return mock
}

// Option configures the mock backend.
type Option interface {
	apply(*Backend)
}

type optionFunc func(*Backend)

func (f optionFunc) apply(r *Backend) { f(r) }

func WithCodeAtFunc(f func(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)) Option {
	return optionFunc(func(s *Backend) {
		s.codeAt = f
	})
}

func WithCallContractFunc(f func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)) Option {
	return optionFunc(func(s *Backend) {
		s.callContract = f
	})
}

func WithPendingNonceAtFunc(f func(ctx context.Context, account common.Address) (uint64, error)) Option {
	return optionFunc(func(s *Backend) {
		s.pendingNonceAt = f
	})
}

func WithSuggestGasPriceFunc(f func(ctx context.Context) (*big.Int, error)) Option {
	return optionFunc(func(s *Backend) {
		s.suggestGasPrice = f
	})
}

func WithSuggestGasTipCapFunc(f func(ctx context.Context) (*big.Int, error)) Option {
	return optionFunc(func(s *Backend) {
		s.suggestGasTipCap = f
	})
}

func WithEstimateGasFunc(f func(ctx context.Context, call ethereum.CallMsg) (uint64, error)) Option {
	return optionFunc(func(s *Backend) {
		s.estimateGas = f
	})
}

func WithTransactionReceiptFunc(f func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)) Option {
	return optionFunc(func(s *Backend) {
		s.transactionReceipt = f
	})
}

func WithSendTransactionFunc(f func(ctx context.Context, tx *types.Transaction) error) Option {
	return optionFunc(func(s *Backend) {
		s.sendTransaction = f
	})
}

func WithBlockNumberFunc(f func(context.Context) (uint64, error)) Option {
	return optionFunc(func(s *Backend) {
		s.blockNumber = f
	})
}

func WithHeaderByNumberFunc(f func(ctx context.Context, number *big.Int) (*types.Header, error)) Option {
	return optionFunc(func(s *Backend) {
		s.headerByNumber = f
	})
}

func WithBalanceAtFunc(f func(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error)) Option {
	return optionFunc(func(s *Backend) {
		s.balanceAt = f
	})
}

func WithChainIDFunc(f func(ctx context.Context) (*big.Int, error)) Option {
	return optionFunc(func(s *Backend) {
		s.chainID = f
	})
}

func WithFilterLogsFunc(f func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)) Option {
	return optionFunc(func(s *Backend) {
		s.filterLogs = f
	})
}

func WithSubscribeFilterLogsFunc(f func(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)) Option {
	return optionFunc(func(s *Backend) {
		s.subscribeFilterLogs = f
	})
}

// MethodHandler answers one contract method given its decoded inputs.
type MethodHandler func(inputs []interface{}) ([]interface{}, error)

// WithContractMethods answers CallContract by decoding the 4-byte selector against
// parsed and packing the handler's outputs. Unknown selectors return ErrNotImplemented.
func WithContractMethods(parsed abi.ABI, handlers map[string]MethodHandler) Option {
	return WithCallContractFunc(ContractMethods(parsed, handlers))
}

// ContractMethods builds a CallContract function from method handlers. It can be
// combined with other dispatchers when a test talks to more than one contract.
func ContractMethods(parsed abi.ABI, handlers map[string]MethodHandler) func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return func(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		if len(call.Data) < 4 {
			return nil, ErrNotImplemented
		}
		method, err := parsed.MethodById(call.Data[:4])
		if err != nil {
			return nil, ErrNotImplemented
		}
		handler, ok := handlers[method.Name]
		if !ok {
			return nil, ErrNotImplemented
		}
		inputs, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, fmt.Errorf("unpack %s inputs: %w", method.Name, err)
		}
		outputs, err := handler(inputs)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(outputs...)
	}
}

// RawCaller is a mock wallet.RawCaller.
type RawCaller func(ctx context.Context, result interface{}, method string, args ...interface{}) error

// CallContext implements wallet.RawCaller.
func (f RawCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return f(ctx, result, method, args...)
}

// RPCError is a JSON-RPC error with a code, as returned by nodes.
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string { return e.Message }

// ErrorCode implements rpc.Error.
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrorData implements rpc.DataError.
func (e *RPCError) ErrorData() interface{} { return e.Data }

// SuccessReceipt returns a successful receipt mined in block.
func SuccessReceipt(txHash common.Hash, block uint64) *types.Receipt {
	return &types.Receipt{
		TxHash:      txHash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     21000,
	}
}
