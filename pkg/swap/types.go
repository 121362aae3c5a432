// Package swap computes and executes INR and USDT swaps against the StablePay
// contract, and republishes the contract's swap events.
package swap

import (
	"strings"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
)

// USDT is the token side of every swap. Any other currency code is fiat.
const USDT = "USDT"

// SwapRecord is one completed swap, as returned by the contract, decoded from an
// event, or synthesized as placeholder history. Amounts are decimal strings and
// Timestamp is RFC3339.
type SwapRecord struct {
	User            string `json:"user"`
	FromCurrency    string `json:"fromCurrency"`
	ToCurrency      string `json:"toCurrency"`
	FromAmount      string `json:"fromAmount"`
	ToAmount        string `json:"toAmount"`
	TaxAmount       string `json:"taxAmount"`
	Timestamp       string `json:"timestamp"`
	TransactionHash string `json:"transactionHash"`
}

// CalculationSource tells a live contract quote apart from the local formula.
type CalculationSource string

const (
	SourceLive      CalculationSource = "live"
	SourceSimulated CalculationSource = "simulated"
)

// SwapCalculation is a swap preview. ToAmount is net of TaxAmount.
type SwapCalculation struct {
	ToAmount  string            `json:"toAmount"`
	TaxAmount string            `json:"taxAmount"`
	Source    CalculationSource `json:"source"`
}

// ConnectionStatus is derived from the connector's live handles on every call.
type ConnectionStatus struct {
	IsConnected     bool   `json:"isConnected"`
	HasProvider     bool   `json:"hasProvider"`
	HasSigner       bool   `json:"hasSigner"`
	ContractAddress string `json:"contractAddress"`
}

// Direction of a swap relative to the token.
type Direction int

const (
	FiatToUSDT Direction = iota
	USDTToFiat
)

func (d Direction) String() string {
	if d == USDTToFiat {
		return "usdt_to_fiat"
	}
	return "fiat_to_usdt"
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// DirectionOf classifies a pair. Exactly one side must be USDT. fiat is the other side.
func DirectionOf(from, to string) (dir Direction, fiat string, err error) {
	from, to = NormalizeCurrency(from), NormalizeCurrency(to)
	switch {
	case from == "" || to == "":
		return 0, "", wallet.NewWalletError(wallet.ErrCodeUnsupportedCurrency, "currency is required", nil, "")
	case from == USDT && to != USDT:
		return USDTToFiat, to, nil
	case to == USDT && from != USDT:
		return FiatToUSDT, from, nil
	default:
		return 0, "", wallet.NewWalletError(wallet.ErrCodeUnsupportedCurrency, "pair "+from+"/"+to+" is not a fiat and USDT pair", nil, "")
	}
}
