package swap

import (
	"context"
	"math/big"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// SimulatedRate is the fixed fiat to USDT rate of the local formula.
	SimulatedRate = decimal.RequireFromString("0.012")
	// SimulatedTaxRate is the fixed tax share of the converted amount.
	SimulatedTaxRate = decimal.RequireFromString("0.18")
)

// Calculator previews a swap.
type Calculator interface {
	Calculate(ctx context.Context, from, to string, amount decimal.Decimal) (SwapCalculation, error)
}

// LiveCalculator asks the contract's calculateSwap.
type LiveCalculator struct {
	contract *Contract
}

// NewLiveCalculator creates a calculator bound to a connected contract.
func NewLiveCalculator(contract *Contract) *LiveCalculator {
	return &LiveCalculator{contract: contract}
}

// Calculate scales amount to the contract's 18 decimals and returns its answer.
func (c *LiveCalculator) Calculate(ctx context.Context, from, to string, amount decimal.Decimal) (SwapCalculation, error) {
	if amount.IsNegative() {
		return SwapCalculation{}, wallet.NewWalletError(wallet.ErrCodeInvalidAmount, "amount must not be negative", nil, "")
	}
	out, err := c.contract.call(ctx, methodCalculateSwap,
		NormalizeCurrency(from), NormalizeCurrency(to), wallet.FormatUnits(amount, wallet.ContractDecimals))
	if err != nil {
		return SwapCalculation{}, err
	}
	if len(out) < 2 {
		return SwapCalculation{}, wallet.NewWalletError(wallet.ErrCodeContractError, "calculateSwap returned too few values", nil, c.contract.network)
	}
	toAmount, ok1 := out[0].(*big.Int)
	tax, ok2 := out[1].(*big.Int)
	if !ok1 || !ok2 {
		return SwapCalculation{}, wallet.NewWalletError(wallet.ErrCodeContractError, "calculateSwap returned unexpected types", nil, c.contract.network)
	}
	return SwapCalculation{
		ToAmount:  wallet.ParseUnits(toAmount, wallet.ContractDecimals).String(),
		TaxAmount: wallet.ParseUnits(tax, wallet.ContractDecimals).String(),
		Source:    SourceLive,
	}, nil
}

// SimulatedCalculator applies SimulatedRate and SimulatedTaxRate. Fiat to USDT
// multiplies by the rate, USDT to fiat divides by it. The tax is taken from the
// converted amount, so ToAmount + TaxAmount equals the converted amount exactly.
type SimulatedCalculator struct{}

// Calculate applies the local formula.
func (SimulatedCalculator) Calculate(_ context.Context, from, to string, amount decimal.Decimal) (SwapCalculation, error) {
	if amount.IsNegative() {
		return SwapCalculation{}, wallet.NewWalletError(wallet.ErrCodeInvalidAmount, "amount must not be negative", nil, "")
	}
	dir, _, err := DirectionOf(from, to)
	if err != nil {
		return SwapCalculation{}, err
	}

	var converted decimal.Decimal
	if dir == FiatToUSDT {
		converted = amount.Mul(SimulatedRate)
	} else {
		converted = amount.Div(SimulatedRate)
	}
	tax := converted.Mul(SimulatedTaxRate)

	return SwapCalculation{
		ToAmount:  converted.Sub(tax).String(),
		TaxAmount: tax.String(),
		Source:    SourceSimulated,
	}, nil
}

// FallbackCalculator uses the primary calculator and falls back to the local
// formula when it fails. The returned Source tells the two paths apart.
type FallbackCalculator struct {
	primary  Calculator
	fallback Calculator
	log      *logrus.Logger
}

// NewFallbackCalculator wraps primary with the simulated formula.
func NewFallbackCalculator(log *logrus.Logger, primary Calculator) *FallbackCalculator {
	if log == nil {
		log = logrus.New()
	}
	return &FallbackCalculator{primary: primary, fallback: SimulatedCalculator{}, log: log}
}

// Calculate tries the primary calculator first.
func (c *FallbackCalculator) Calculate(ctx context.Context, from, to string, amount decimal.Decimal) (SwapCalculation, error) {
	calc, err := c.primary.Calculate(ctx, from, to, amount)
	if err == nil {
		return calc, nil
	}
	c.log.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"amount": amount.String(),
		"error":  err,
	}).Warn("Contract calculation failed, using simulated rate")
	return c.fallback.Calculate(ctx, from, to, amount)
}
