package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/samber/lo"
)

const swapRecordTuple = `{"name":"","type":"tuple[]","components":[
	{"name":"user","type":"address"},
	{"name":"fromCurrency","type":"string"},
	{"name":"toCurrency","type":"string"},
	{"name":"fromAmount","type":"uint256"},
	{"name":"toAmount","type":"uint256"},
	{"name":"gstAmount","type":"uint256"},
	{"name":"timestamp","type":"uint256"},
	{"name":"txHash","type":"string"}]}`

// contractABI is the subset of the swap contract this package calls.
const contractABI = `[
	{"type":"function","name":"calculateSwap","stateMutability":"pure",
	 "inputs":[{"name":"fromCurrency","type":"string"},{"name":"toCurrency","type":"string"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"toAmount","type":"uint256"},{"name":"gstAmount","type":"uint256"}]},
	{"type":"function","name":"swapUSDTToFiat","stateMutability":"nonpayable",
	 "inputs":[{"name":"currency","type":"string"},{"name":"amount","type":"uint256"},{"name":"txHash","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"swapFiatToUSDT","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"currency","type":"string"},{"name":"amount","type":"uint256"},{"name":"txHash","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"getUserSwapHistory","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[` + swapRecordTuple + `]},
	{"type":"function","name":"getRecentSwaps","stateMutability":"view",
	 "inputs":[],
	 "outputs":[` + swapRecordTuple + `]},
	{"type":"function","name":"currencyRates","stateMutability":"view",
	 "inputs":[{"name":"","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isCurrencySupported","stateMutability":"view",
	 "inputs":[{"name":"currency","type":"string"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"GST_RATE","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"usdtToken","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"SwapExecuted","anonymous":false,
	 "inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"fromCurrency","type":"string","indexed":false},
		{"name":"toCurrency","type":"string","indexed":false},
		{"name":"fromAmount","type":"uint256","indexed":false},
		{"name":"toAmount","type":"uint256","indexed":false},
		{"name":"gstAmount","type":"uint256","indexed":false},
		{"name":"txHash","type":"string","indexed":false}]}
]`

// Contract method and event names.
const (
	methodCalculateSwap     = "calculateSwap"
	methodSwapUSDTToFiat    = "swapUSDTToFiat"
	methodSwapFiatToUSDT    = "swapFiatToUSDT"
	methodUserSwapHistory   = "getUserSwapHistory"
	methodRecentSwaps       = "getRecentSwaps"
	methodCurrencyRates     = "currencyRates"
	methodCurrencySupported = "isCurrencySupported"
	methodGSTRate           = "GST_RATE"
	methodUSDTToken         = "usdtToken"

	eventSwapExecuted = "SwapExecuted"
)

var (
	contractOnce   sync.Once
	contractParsed abi.ABI
	contractErr    error
)

// ContractABI returns the parsed swap contract ABI.
func ContractABI() (abi.ABI, error) {
	contractOnce.Do(func() {
		contractParsed, contractErr = abi.JSON(strings.NewReader(contractABI))
	})
	return contractParsed, contractErr
}

// contractRecord mirrors the contract's swap record tuple.
type contractRecord struct {
	User         common.Address
	FromCurrency string
	ToCurrency   string
	FromAmount   *big.Int
	ToAmount     *big.Int
	GstAmount    *big.Int
	Timestamp    *big.Int
	TxHash       string
}

func (r contractRecord) toSwapRecord() SwapRecord {
	var ts time.Time
	if r.Timestamp != nil {
		ts = time.Unix(r.Timestamp.Int64(), 0).UTC()
	}
	return SwapRecord{
		User:            r.User.Hex(),
		FromCurrency:    r.FromCurrency,
		ToCurrency:      r.ToCurrency,
		FromAmount:      wallet.ParseUnits(r.FromAmount, wallet.ContractDecimals).String(),
		ToAmount:        wallet.ParseUnits(r.ToAmount, wallet.ContractDecimals).String(),
		TaxAmount:       wallet.ParseUnits(r.GstAmount, wallet.ContractDecimals).String(),
		Timestamp:       ts.Format(time.RFC3339),
		TransactionHash: r.TxHash,
	}
}

// swapExecutedEvent is the decoded SwapExecuted log.
type swapExecutedEvent struct {
	User         common.Address
	FromCurrency string
	ToCurrency   string
	FromAmount   *big.Int
	ToAmount     *big.Int
	GstAmount    *big.Int
	TxHash       string
}

// Contract is a connected swap contract handle.
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	wallet  *wallet.Client
	network wallet.NetworkType
}

func newContract(w *wallet.Client, network wallet.NetworkType, address common.Address) (*Contract, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, wallet.NewWalletError(wallet.ErrCodeInvalidABI, "failed to parse swap ABI", err, network)
	}
	backend, err := w.Backend(network)
	if err != nil {
		return nil, err
	}
	return &Contract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		wallet:  w,
		network: network,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if c.wallet.HasSigner() {
		opts.From = c.wallet.Address()
	}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, wallet.NewWalletError(wallet.ErrCodeContractError, "failed to call "+method, err, c.network)
	}
	if len(out) == 0 {
		return nil, wallet.NewWalletError(wallet.ErrCodeContractError, method+" returned nothing", nil, c.network)
	}
	return out, nil
}

func (c *Contract) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, wallet.NewWalletError(wallet.ErrCodeContractError, method+" returned unexpected type", nil, c.network)
	}
	return v, nil
}

func (c *Contract) callRecords(ctx context.Context, method string, args ...interface{}) (records []SwapRecord, err error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			records, err = nil, wallet.NewWalletError(wallet.ErrCodeContractError,
				fmt.Sprintf("failed to decode %s: %v", method, p), nil, c.network)
		}
	}()
	raw := *abi.ConvertType(out[0], new([]contractRecord)).(*[]contractRecord)
	return lo.Map(raw, func(r contractRecord, _ int) SwapRecord { return r.toSwapRecord() }), nil
}

func (c *Contract) pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, wallet.NewWalletError(wallet.ErrCodeInvalidABI, "failed to pack "+method, err, c.network)
	}
	return data, nil
}

// IsCurrencySupported asks the contract whether currency can be swapped.
func (c *Contract) IsCurrencySupported(ctx context.Context, currency string) (bool, error) {
	out, err := c.call(ctx, methodCurrencySupported, currency)
	if err != nil {
		return false, err
	}
	supported, ok := out[0].(bool)
	if !ok {
		return false, wallet.NewWalletError(wallet.ErrCodeContractError, "isCurrencySupported returned unexpected type", nil, c.network)
	}
	return supported, nil
}

// USDTToken returns the token address the contract settles in.
func (c *Contract) USDTToken(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, methodUSDTToken)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, wallet.NewWalletError(wallet.ErrCodeContractError, "usdtToken returned unexpected type", nil, c.network)
	}
	return addr, nil
}

// GSTRate reads the tax rate constant.
func (c *Contract) GSTRate(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, methodGSTRate)
}
