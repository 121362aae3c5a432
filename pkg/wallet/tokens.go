package wallet

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// erc20ABI covers the token methods the swap flow touches.
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var (
	erc20Once   sync.Once
	erc20Parsed abi.ABI
	erc20Err    error
)

// ERC20ABI returns the parsed token ABI.
func ERC20ABI() (abi.ABI, error) {
	erc20Once.Do(func() {
		erc20Parsed, erc20Err = abi.JSON(strings.NewReader(erc20ABI))
	})
	return erc20Parsed, erc20Err
}

// PackERC20 encodes a call to one of the token methods.
func PackERC20(method string, args ...interface{}) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidABI, "failed to parse ABI", err, "")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidABI, "failed to pack "+method, err, "")
	}
	return data, nil
}

func (c *Client) tokenContract(network NetworkType, tokenAddress common.Address) (*bind.BoundContract, error) {
	backend, _, err := c.getBackendAndConfig(network)
	if err != nil {
		return nil, err
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidABI, "failed to parse ABI", err, network)
	}
	return bind.NewBoundContract(tokenAddress, parsed, backend, backend, backend), nil
}

func (c *Client) callToken(ctx context.Context, network NetworkType, tokenAddress common.Address, method string, args ...interface{}) (interface{}, error) {
	contract, err := c.tokenContract(network, tokenAddress)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, NewWalletError(ErrCodeContractError, "failed to call "+method, err, network)
	}
	if len(out) == 0 {
		return nil, NewWalletError(ErrCodeContractError, method+" returned nothing", nil, network)
	}
	return out[0], nil
}

// GetERC20Decimals reads the token's decimals.
func (c *Client) GetERC20Decimals(ctx context.Context, network NetworkType, tokenAddress common.Address) (uint8, error) {
	out, err := c.callToken(ctx, network, tokenAddress, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out.(uint8)
	if !ok {
		return 0, NewWalletError(ErrCodeContractError, "failed to convert decimals to uint8", nil, network)
	}
	return decimals, nil
}

// GetERC20Balance retrieves the token balance for a specific address in base units.
//
// Parameters:
//   - ctx: Context for the operation
//   - network: Target blockchain network
//   - tokenAddress: Address of the ERC20 token contract
//   - account: Address to check the balance for
//
// Returns:
//   - *big.Int: Token balance if successful
//   - error: Error if the balance check fails
//
// Example:
//
//	balance, err := client.GetERC20Balance(ctx, SEPOLIA, tokenAddr, userAddr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Token balance: %s\n", balance.String())
func (c *Client) GetERC20Balance(ctx context.Context, network NetworkType, tokenAddress, account common.Address) (*big.Int, error) {
	out, err := c.callToken(ctx, network, tokenAddress, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	balance, ok := out.(*big.Int)
	if !ok {
		return nil, NewWalletError(ErrCodeContractError, "failed to convert balance to *big.Int", nil, network)
	}
	return balance, nil
}

// GetERC20Allowance reads how much spender may move on behalf of owner.
func (c *Client) GetERC20Allowance(ctx context.Context, network NetworkType, tokenAddress, owner, spender common.Address) (*big.Int, error) {
	out, err := c.callToken(ctx, network, tokenAddress, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := out.(*big.Int)
	if !ok {
		return nil, NewWalletError(ErrCodeContractError, "failed to convert allowance to *big.Int", nil, network)
	}
	return allowance, nil
}

// HasCode reports whether any bytecode is deployed at address.
func (c *Client) HasCode(ctx context.Context, network NetworkType, address common.Address) (bool, error) {
	backend, _, err := c.getBackendAndConfig(network)
	if err != nil {
		return false, err
	}
	code, err := backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, NewWalletError(ErrCodeRPCError, "failed to get code", err, network)
	}
	return len(code) > 0, nil
}

// TransferERC20 transfers tokens from the wallet's address to the recipient and
// waits for the receipt according to opts.
//
// Example:
//
//	status, err := client.TransferERC20(ctx, SEPOLIA, tokenAddr, recipientAddr, big.NewInt(1000), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) TransferERC20(ctx context.Context, network NetworkType, tokenAddress, to common.Address, amount *big.Int, opts *TransactionOptions) (*TransactionStatus, error) {
	data, err := PackERC20("transfer", to, amount)
	if err != nil {
		return nil, err
	}
	return c.SendTransactionWithOptions(ctx, network, tokenAddress, data, nil, opts)
}

// ApproveERC20 grants spender an allowance of amount.
func (c *Client) ApproveERC20(ctx context.Context, network NetworkType, tokenAddress, spender common.Address, amount *big.Int, opts *TransactionOptions) (*TransactionStatus, error) {
	data, err := PackERC20("approve", spender, amount)
	if err != nil {
		return nil, err
	}
	return c.SendTransactionWithOptions(ctx, network, tokenAddress, data, nil, opts)
}
