// Package wallet provides blockchain wallet functionality for managing transactions,
// accounts, fees and interactions with EVM networks.
package wallet

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	// addressRegex is a regular expression for validating the basic format of Ethereum-style addresses.
	// It checks for a "0x" prefix followed by exactly 40 hexadecimal characters.
	addressRegex = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
)

// ValidateAddress validates an EVM address and returns it parsed.
// It performs format validation and, for mixed-case input, EIP-55 checksum verification.
// All-lowercase and all-uppercase hex carry no checksum and are accepted.
//
// Example:
//
//	addr, err := ValidateAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
//	if err != nil {
//	    log.Fatal(err)
//	}
func ValidateAddress(address string) (common.Address, error) {
	if !addressRegex.MatchString(address) {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address format", nil, "")
	}

	parsed := common.HexToAddress(address)
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && address != parsed.Hex() {
		return common.Address{}, NewWalletError(ErrCodeInvalidAddress, "invalid address checksum", nil, "")
	}

	return parsed, nil
}

// ValidateAmount parses a human-scale amount and requires it to be strictly positive.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, NewWalletError(ErrCodeInvalidAmount, "amount is not a number", err, "")
	}
	if !d.IsPositive() {
		return decimal.Zero, NewWalletError(ErrCodeInvalidAmount, "amount must be greater than zero", nil, "")
	}
	return d, nil
}
