package swap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// State is a step of a swap attempt.
type State string

const (
	StateIdle                     State = "idle"
	StateCheckingCurrency         State = "checkingCurrency"
	StateCheckingBalanceAllowance State = "checkingBalanceAllowance"
	StateEstimatingGas            State = "estimatingGas"
	StateSubmitting               State = "submitting"
	StateConfirmed                State = "confirmed"
	StateNeedsFallback            State = "needsFallback"
	StateFailed                   State = "failed"
)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Wallet   *wallet.Client
	Network  wallet.NetworkType
	Contract *Contract
	// TokenAddress overrides the contract's usdtToken() for preflight checks
	TokenAddress string
	// StrictPreflight turns currency and balance/allowance check failures into
	// OutcomeFailed instead of continuing without the checks
	StrictPreflight bool
}

// Executor runs swaps against the contract. One swap runs at a time per Executor.
type Executor struct {
	cfg     ExecutorConfig
	log     *logrus.Logger
	running sync.Mutex
	state   atomic.Value
}

// NewExecutor creates an executor for a connected contract.
func NewExecutor(log *logrus.Logger, cfg ExecutorConfig) *Executor {
	if log == nil {
		log = logrus.New()
	}
	e := &Executor{cfg: cfg, log: log}
	e.state.Store(StateIdle)
	return e
}

// State returns the step of the current or last swap.
func (e *Executor) State() State {
	return e.state.Load().(State)
}

// SwapFiatToUSDT credits the wallet with USDT for amount of fiat currency.
func (e *Executor) SwapFiatToUSDT(ctx context.Context, currency string, amount decimal.Decimal, reference string) Outcome {
	return e.run(ctx, FiatToUSDT, currency, amount, reference)
}

// SwapUSDTToFiat sells amount USDT from the wallet for fiat currency. The contract
// pulls the tokens, so balance and allowance are checked first.
func (e *Executor) SwapUSDTToFiat(ctx context.Context, currency string, amount decimal.Decimal, reference string) Outcome {
	return e.run(ctx, USDTToFiat, currency, amount, reference)
}

func (e *Executor) run(ctx context.Context, dir Direction, currency string, amount decimal.Decimal, reference string) Outcome {
	if !e.running.TryLock() {
		return failed(ErrSwapInProgress)
	}
	defer e.running.Unlock()

	currency = NormalizeCurrency(currency)
	if reference == "" {
		reference = uuid.NewString()
	}
	log := e.log.WithFields(logrus.Fields{
		"network":   e.cfg.Network,
		"contract":  e.cfg.Contract.Address().Hex(),
		"direction": dir.String(),
		"currency":  currency,
		"amount":    amount.String(),
		"reference": reference,
	})
	e.setState(log, StateIdle)

	if currency == "" || currency == USDT {
		return e.fail(log, wallet.NewWalletError(wallet.ErrCodeUnsupportedCurrency, "a fiat currency is required", nil, e.cfg.Network))
	}
	if !amount.IsPositive() {
		return e.fail(log, wallet.NewWalletError(wallet.ErrCodeInvalidAmount, "amount must be greater than zero", nil, e.cfg.Network))
	}
	value, err := wallet.ToBaseUnits(amount, wallet.ContractDecimals, e.cfg.Network)
	if err != nil {
		return e.fail(log, err)
	}
	if !e.cfg.Wallet.HasSigner() {
		return e.fail(log, wallet.NewWalletError(wallet.ErrCodeNoSigner, "swap requires a signing key", nil, e.cfg.Network))
	}

	e.setState(log, StateCheckingCurrency)
	supported, err := e.cfg.Contract.IsCurrencySupported(ctx, currency)
	switch {
	case err != nil && e.cfg.StrictPreflight:
		return e.fail(log, err)
	case err != nil:
		log.WithError(err).Warn("Currency support check failed, assuming supported")
	case !supported:
		return e.fallback(log, fmt.Sprintf("currency %s is not supported by the contract", currency),
			wallet.NewWalletError(wallet.ErrCodeUnsupportedCurrency, currency+" is not supported", nil, e.cfg.Network))
	}

	if dir == USDTToFiat {
		e.setState(log, StateCheckingBalanceAllowance)
		if err := e.preflight(ctx, log, amount); err != nil {
			if e.cfg.StrictPreflight || wallet.IsWalletError(err, wallet.ErrCodeInvalidAmount) {
				return e.fail(log, err)
			}
			log.WithError(err).Warn("Balance and allowance checks failed, continuing without them")
		}
	}

	data, err := e.callData(dir, currency, value, reference)
	if err != nil {
		return e.fail(log, err)
	}
	contractAddr := e.cfg.Contract.Address()

	e.setState(log, StateEstimatingGas)
	gasLimit, err := e.cfg.Wallet.EstimateGas(ctx, e.cfg.Network, contractAddr, data, nil)
	if err != nil {
		switch code := wallet.ClassifyTxError(err); code {
		case wallet.ErrCodeUserRejected, wallet.ErrCodeInsufficientGasFunds:
			return e.fail(log, reclassify(err, code, e.cfg.Network))
		default:
			return e.fallback(log, "gas estimation failed", err)
		}
	}

	e.setState(log, StateSubmitting)
	status, err := e.cfg.Wallet.SendTransactionWithOptions(ctx, e.cfg.Network, contractAddr, data, nil,
		&wallet.TransactionOptions{GasLimit: gasLimit, WaitReceipt: true})
	if err != nil {
		code := wallet.ClassifyTxError(err)
		if code == wallet.ErrCodeReverted || (status != nil && status.State == wallet.TxStateFailed) {
			return e.fallback(log, "swap transaction reverted", err)
		}
		return e.fail(log, reclassify(err, code, e.cfg.Network))
	}

	e.setState(log.WithField("tx_hash", status.Hash.Hex()), StateConfirmed)
	return executed(status)
}

func (e *Executor) callData(dir Direction, currency string, value interface{}, reference string) ([]byte, error) {
	if dir == USDTToFiat {
		return e.cfg.Contract.pack(methodSwapUSDTToFiat, currency, value, reference)
	}
	return e.cfg.Contract.pack(methodSwapFiatToUSDT, e.cfg.Wallet.Address(), currency, value, reference)
}

// preflight verifies the token contract, the wallet balance and the contract's
// allowance, approving the missing allowance when needed.
func (e *Executor) preflight(ctx context.Context, log *logrus.Entry, amount decimal.Decimal) error {
	network := e.cfg.Network

	tokenAddr, err := e.resolveToken(ctx)
	if err != nil {
		return err
	}
	log = log.WithField("token", tokenAddr.Hex())

	hasCode, err := e.cfg.Wallet.HasCode(ctx, network, tokenAddr)
	if err != nil {
		return err
	}
	if !hasCode {
		return wallet.NewWalletError(wallet.ErrCodeTokenNotFound, "no token contract at "+tokenAddr.Hex(), nil, network)
	}

	decimals, err := e.cfg.Wallet.GetERC20Decimals(ctx, network, tokenAddr)
	if err != nil {
		return err
	}
	need, err := wallet.ToBaseUnits(amount, decimals, network)
	if err != nil {
		return err
	}
	owner := e.cfg.Wallet.Address()

	balance, err := e.cfg.Wallet.GetERC20Balance(ctx, network, tokenAddr, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(need) < 0 {
		return wallet.NewWalletError(wallet.ErrCodeInsufficientFunds,
			fmt.Sprintf("balance %s is below %s", wallet.ParseUnits(balance, decimals), amount), nil, network)
	}

	spender := e.cfg.Contract.Address()
	allowance, err := e.cfg.Wallet.GetERC20Allowance(ctx, network, tokenAddr, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(need) >= 0 {
		return nil
	}

	log.WithField("allowance", wallet.ParseUnits(allowance, decimals).String()).Info("Approving swap contract")
	status, err := e.cfg.Wallet.ApproveERC20(ctx, network, tokenAddr, spender, need, wallet.DefaultTransactionOptions())
	if err != nil {
		return wallet.NewWalletError(wallet.ErrCodeInsufficientAllowance, "approval failed", err, network)
	}
	log.WithField("tx_hash", status.Hash.Hex()).Info("Approval confirmed")
	return nil
}

func (e *Executor) resolveToken(ctx context.Context) (common.Address, error) {
	if e.cfg.TokenAddress != "" {
		return wallet.ValidateAddress(e.cfg.TokenAddress)
	}
	return e.cfg.Contract.USDTToken(ctx)
}

func (e *Executor) setState(log *logrus.Entry, s State) {
	e.state.Store(s)
	log.WithField("state", s).Debug("Swap state changed")
}

func (e *Executor) fail(log *logrus.Entry, err error) Outcome {
	e.state.Store(StateFailed)
	log.WithFields(logrus.Fields{"state": StateFailed, "error": err}).Warn("Swap failed")
	return failed(err)
}

func (e *Executor) fallback(log *logrus.Entry, reason string, cause error) Outcome {
	e.state.Store(StateNeedsFallback)
	log.WithFields(logrus.Fields{"state": StateNeedsFallback, "reason": reason, "error": cause}).Warn("Swap needs fallback network")
	return needsFallback(reason, cause)
}

// reclassify wraps err in a WalletError carrying code when err does not carry it yet.
func reclassify(err error, code string, network wallet.NetworkType) error {
	if code == "" || wallet.ErrorCode(err) == code {
		return err
	}
	return wallet.NewWalletError(code, "swap transaction rejected", err, network)
}
