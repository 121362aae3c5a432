package token

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Simulated answers every request without touching a network.
type Simulated struct {
	log *logrus.Logger
}

// NewSimulated creates a simulated client.
func NewSimulated(log *logrus.Logger) *Simulated {
	if log == nil {
		log = logrus.New()
	}
	return &Simulated{log: log}
}

// Balance validates address and returns PlaceholderBalance.
func (s *Simulated) Balance(_ context.Context, address string) (Balance, error) {
	if _, err := validateAddress(address); err != nil {
		return Balance{}, err
	}
	return Balance{Amount: PlaceholderBalance, Placeholder: true}, nil
}

// Transfer validates its inputs and returns a synthetic transaction id.
func (s *Simulated) Transfer(_ context.Context, to string, amount decimal.Decimal) (TransferResult, error) {
	if _, err := validateAddress(to); err != nil {
		return TransferResult{}, err
	}
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}

	result := TransferResult{TxHash: SyntheticTxHash(), Synthetic: true}
	s.log.WithFields(logrus.Fields{
		"tx_hash": result.TxHash,
		"to":      to,
		"amount":  amount.String(),
	}).Debug("Simulated transfer")
	return result, nil
}
