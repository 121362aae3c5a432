package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Live reads and transfers through the configured ERC-20 contract. Every failure is
// returned to the caller.
type Live struct {
	wallet   *wallet.Client
	network  wallet.NetworkType
	token    common.Address
	decimals *cache.Cache
	log      *logrus.Logger
}

// NewLive creates a live token client. decimals may be shared between clients; nil
// allocates a private cache. Decimals never change for a deployed token so entries
// do not expire.
func NewLive(log *logrus.Logger, w *wallet.Client, network wallet.NetworkType, token common.Address, decimals *cache.Cache) *Live {
	if log == nil {
		log = logrus.New()
	}
	if decimals == nil {
		decimals = cache.New(cache.NoExpiration, 0)
	}
	return &Live{
		wallet:   w,
		network:  network,
		token:    token,
		decimals: decimals,
		log:      log,
	}
}

// Address returns the token contract address.
func (l *Live) Address() common.Address {
	return l.token
}

// Decimals returns the token's decimals, reading the contract once.
func (l *Live) Decimals(ctx context.Context) (uint8, error) {
	key := string(l.network) + ":" + l.token.Hex()
	if v, ok := l.decimals.Get(key); ok {
		return v.(uint8), nil
	}

	d, err := l.wallet.GetERC20Decimals(ctx, l.network, l.token)
	if err != nil {
		return 0, err
	}
	l.decimals.Set(key, d, cache.NoExpiration)
	return d, nil
}

// Balance reads the token balance of address.
func (l *Live) Balance(ctx context.Context, address string) (Balance, error) {
	owner, err := validateAddress(address)
	if err != nil {
		return Balance{}, err
	}

	decimals, err := l.Decimals(ctx)
	if err != nil {
		return Balance{}, err
	}

	raw, err := l.wallet.GetERC20Balance(ctx, l.network, l.token, owner)
	if err != nil {
		return Balance{}, err
	}

	return Balance{Amount: wallet.ParseUnits(raw, decimals)}, nil
}

// Transfer sends amount tokens from the wallet to the recipient and waits for the
// receipt. The sender balance is checked first; a failed receipt is TRANSACTION_FAILED.
func (l *Live) Transfer(ctx context.Context, to string, amount decimal.Decimal) (TransferResult, error) {
	recipient, err := validateAddress(to)
	if err != nil {
		return TransferResult{}, err
	}
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}
	if !l.wallet.HasSigner() {
		return TransferResult{}, wallet.NewWalletError(wallet.ErrCodeNoSigner, "transfer requires a signing key", nil, l.network)
	}

	decimals, err := l.Decimals(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	value, err := wallet.ToBaseUnits(amount, decimals, l.network)
	if err != nil {
		return TransferResult{}, err
	}

	balance, err := l.wallet.GetERC20Balance(ctx, l.network, l.token, l.wallet.Address())
	if err != nil {
		return TransferResult{}, err
	}
	if balance.Cmp(value) < 0 {
		return TransferResult{}, wallet.NewWalletError(wallet.ErrCodeInsufficientFunds,
			fmt.Sprintf("balance %s is below %s", wallet.ParseUnits(balance, decimals), amount), nil, l.network)
	}

	log := l.log.WithFields(logrus.Fields{
		"network":  l.network,
		"contract": l.token.Hex(),
		"to":       recipient.Hex(),
		"amount":   amount.String(),
	})
	log.Info("Submitting token transfer")

	status, err := l.wallet.TransferERC20(ctx, l.network, l.token, recipient, value, wallet.DefaultTransactionOptions())
	if err != nil {
		return TransferResult{Status: status}, err
	}

	log.WithField("tx_hash", status.Hash.Hex()).Info("Token transfer confirmed")
	return TransferResult{TxHash: status.Hash.Hex(), Status: status}, nil
}
