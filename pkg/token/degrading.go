package token

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Degrading validates inputs, then calls the primary client and substitutes the
// fallback's answer for any primary failure. The substituted result carries the
// primary error in Cause so callers can show that the value is not real.
type Degrading struct {
	primary  Client
	fallback Client
	log      *logrus.Logger
}

// NewDegrading wraps primary with fallback.
func NewDegrading(log *logrus.Logger, primary, fallback Client) *Degrading {
	if log == nil {
		log = logrus.New()
	}
	return &Degrading{primary: primary, fallback: fallback, log: log}
}

// Balance never fails for a valid address.
func (d *Degrading) Balance(ctx context.Context, address string) (Balance, error) {
	if _, err := validateAddress(address); err != nil {
		return Balance{}, err
	}

	balance, err := d.primary.Balance(ctx, address)
	if err == nil {
		return balance, nil
	}

	d.log.WithFields(logrus.Fields{
		"address": address,
		"error":   err,
	}).Warn("Balance read failed, reporting placeholder")

	placeholder, ferr := d.fallback.Balance(ctx, address)
	if ferr != nil {
		return Balance{}, ferr
	}
	placeholder.Placeholder = true
	placeholder.Cause = err
	return placeholder, nil
}

// Transfer never fails for valid inputs; on any primary failure it returns a
// synthetic result.
func (d *Degrading) Transfer(ctx context.Context, to string, amount decimal.Decimal) (TransferResult, error) {
	if _, err := validateAddress(to); err != nil {
		return TransferResult{}, err
	}
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}

	result, err := d.primary.Transfer(ctx, to, amount)
	if err == nil {
		return result, nil
	}

	d.log.WithFields(logrus.Fields{
		"to":     to,
		"amount": amount.String(),
		"error":  err,
	}).Warn("Transfer failed, returning synthetic transaction")

	synthetic, ferr := d.fallback.Transfer(ctx, to, amount)
	if ferr != nil {
		return TransferResult{}, ferr
	}
	synthetic.Synthetic = true
	synthetic.Cause = err
	synthetic.Status = result.Status
	return synthetic, nil
}
