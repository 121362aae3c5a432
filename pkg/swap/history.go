package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// rateCacheTTL bounds how long a currency rate read is reused.
const rateCacheTTL = time.Minute

// History is a list of swap records. Simulated marks placeholder data, and Cause
// holds the read failure that produced it.
type History struct {
	Records   []SwapRecord
	Simulated bool
	Cause     error
}

// HistoryReader reads swap history and rates.
type HistoryReader interface {
	UserSwapHistory(ctx context.Context, user string) (History, error)
	RecentSwaps(ctx context.Context) (History, error)
	CurrencyRate(ctx context.Context, currency string) (decimal.Decimal, error)
	GSTRate(ctx context.Context) (decimal.Decimal, error)
}

// LiveHistory reads from the contract and returns every failure.
type LiveHistory struct {
	contract *Contract
	rates    *cache.Cache
}

// NewLiveHistory creates a reader bound to a connected contract.
func NewLiveHistory(contract *Contract) *LiveHistory {
	return &LiveHistory{contract: contract, rates: cache.New(rateCacheTTL, 2*rateCacheTTL)}
}

// UserSwapHistory reads every swap recorded for user.
func (h *LiveHistory) UserSwapHistory(ctx context.Context, user string) (History, error) {
	addr, err := wallet.ValidateAddress(user)
	if err != nil {
		return History{}, err
	}
	records, err := h.contract.callRecords(ctx, methodUserSwapHistory, addr)
	if err != nil {
		return History{}, err
	}
	return History{Records: records}, nil
}

// RecentSwaps reads the contract's most recent swaps.
func (h *LiveHistory) RecentSwaps(ctx context.Context) (History, error) {
	records, err := h.contract.callRecords(ctx, methodRecentSwaps)
	if err != nil {
		return History{}, err
	}
	return History{Records: records}, nil
}

// CurrencyRate reads the contract's 18-decimal rate for currency, caching it briefly.
func (h *LiveHistory) CurrencyRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = NormalizeCurrency(currency)
	if v, ok := h.rates.Get(currency); ok {
		return v.(decimal.Decimal), nil
	}
	raw, err := h.contract.callBigInt(ctx, methodCurrencyRates, currency)
	if err != nil {
		return decimal.Zero, err
	}
	rate := wallet.ParseUnits(raw, wallet.ContractDecimals)
	h.rates.SetDefault(currency, rate)
	return rate, nil
}

// GSTRate reads the contract's tax rate in percent.
func (h *LiveHistory) GSTRate(ctx context.Context) (decimal.Decimal, error) {
	raw, err := h.contract.GSTRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(raw, 0), nil
}

// SimulatedHistory returns deterministic placeholder data.
type SimulatedHistory struct{}

// simulatedEpoch anchors placeholder timestamps so repeated reads are identical.
var simulatedEpoch = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

// UserSwapHistory returns two placeholder swaps for user.
func (SimulatedHistory) UserSwapHistory(_ context.Context, user string) (History, error) {
	addr, err := wallet.ValidateAddress(user)
	if err != nil {
		return History{}, err
	}
	return History{Records: simulatedRecords(addr.Hex()), Simulated: true}, nil
}

// RecentSwaps returns placeholder swaps for the zero address.
func (SimulatedHistory) RecentSwaps(_ context.Context) (History, error) {
	return History{Records: simulatedRecords("0x0000000000000000000000000000000000000000"), Simulated: true}, nil
}

// CurrencyRate returns SimulatedRate, or 1 for USDT.
func (SimulatedHistory) CurrencyRate(_ context.Context, currency string) (decimal.Decimal, error) {
	if NormalizeCurrency(currency) == USDT {
		return decimal.NewFromInt(1), nil
	}
	return SimulatedRate, nil
}

// GSTRate returns SimulatedTaxRate in percent.
func (SimulatedHistory) GSTRate(context.Context) (decimal.Decimal, error) {
	return SimulatedTaxRate.Shift(2), nil
}

func simulatedRecords(user string) []SwapRecord {
	type sample struct {
		from, to string
		amount   int64
	}
	samples := []sample{{"INR", USDT, 1000}, {USDT, "INR", 6}}

	return lo.Map(samples, func(s sample, i int) SwapRecord {
		calc, _ := SimulatedCalculator{}.Calculate(context.Background(), s.from, s.to, decimal.NewFromInt(s.amount))
		seed := fmt.Sprintf("%s:%d", user, i)
		return SwapRecord{
			User:            user,
			FromCurrency:    s.from,
			ToCurrency:      s.to,
			FromAmount:      decimal.NewFromInt(s.amount).String(),
			ToAmount:        calc.ToAmount,
			TaxAmount:       calc.TaxAmount,
			Timestamp:       simulatedEpoch.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			TransactionHash: crypto.Keccak256Hash([]byte(seed)).Hex(),
		}
	})
}

// FallbackHistory reads through primary and substitutes placeholder data on failure.
// Validation errors are returned as is.
type FallbackHistory struct {
	primary  HistoryReader
	fallback HistoryReader
	log      *logrus.Logger
}

// NewFallbackHistory wraps primary with SimulatedHistory.
func NewFallbackHistory(log *logrus.Logger, primary HistoryReader) *FallbackHistory {
	if log == nil {
		log = logrus.New()
	}
	return &FallbackHistory{primary: primary, fallback: SimulatedHistory{}, log: log}
}

// UserSwapHistory falls back to placeholder records carrying the read error as Cause.
func (h *FallbackHistory) UserSwapHistory(ctx context.Context, user string) (History, error) {
	if _, err := wallet.ValidateAddress(user); err != nil {
		return History{}, err
	}
	history, err := h.primary.UserSwapHistory(ctx, user)
	if err == nil {
		return history, nil
	}
	h.log.WithFields(logrus.Fields{"address": user, "error": err}).Warn("History read failed, using placeholder records")
	placeholder, _ := h.fallback.UserSwapHistory(ctx, user)
	placeholder.Cause = err
	return placeholder, nil
}

// RecentSwaps falls back to placeholder records carrying the read error as Cause.
func (h *FallbackHistory) RecentSwaps(ctx context.Context) (History, error) {
	history, err := h.primary.RecentSwaps(ctx)
	if err == nil {
		return history, nil
	}
	h.log.WithError(err).Warn("Recent swaps read failed, using placeholder records")
	placeholder, _ := h.fallback.RecentSwaps(ctx)
	placeholder.Cause = err
	return placeholder, nil
}

// CurrencyRate falls back to the simulated rate.
func (h *FallbackHistory) CurrencyRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	rate, err := h.primary.CurrencyRate(ctx, currency)
	if err == nil {
		return rate, nil
	}
	h.log.WithFields(logrus.Fields{"currency": currency, "error": err}).Warn("Rate read failed, using simulated rate")
	return h.fallback.CurrencyRate(ctx, currency)
}

// GSTRate falls back to the simulated tax rate.
func (h *FallbackHistory) GSTRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := h.primary.GSTRate(ctx)
	if err == nil {
		return rate, nil
	}
	h.log.WithError(err).Warn("GST rate read failed, using simulated rate")
	return h.fallback.GSTRate(ctx)
}
