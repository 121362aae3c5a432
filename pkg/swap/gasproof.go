package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/sirupsen/logrus"
)

// selfTransferGas is the intrinsic gas of a plain value transfer.
const selfTransferGas = 21000

// GasProofSender submits a zero-value transfer from the wallet to itself on the
// fallback network. The resulting hash only proves that gas was paid.
type GasProofSender struct {
	wallet  *wallet.Client
	network wallet.NetworkType
	log     *logrus.Logger
}

// NewGasProofSender creates a sender for network.
func NewGasProofSender(log *logrus.Logger, w *wallet.Client, network wallet.NetworkType) *GasProofSender {
	if log == nil {
		log = logrus.New()
	}
	return &GasProofSender{wallet: w, network: network, log: log}
}

// Send submits the self-transfer and waits for its receipt.
func (g *GasProofSender) Send(ctx context.Context) (*wallet.TransactionStatus, error) {
	if !g.wallet.HasSigner() {
		return nil, wallet.NewWalletError(wallet.ErrCodeNoSigner, "gas proof requires a signing key", nil, g.network)
	}
	self := g.wallet.Address()

	if err := g.checkGasFunds(ctx, self); err != nil {
		return nil, err
	}

	status, err := g.wallet.SendTransactionWithOptions(ctx, g.network, self, nil, new(big.Int),
		&wallet.TransactionOptions{GasLimit: selfTransferGas, WaitReceipt: true})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"network": g.network,
		"tx_hash": status.Hash.Hex(),
		"address": self.Hex(),
	}).Warn("Sent gas-proof self-transfer in place of swap")
	return status, nil
}

// checkGasFunds refuses to sign when the native balance cannot cover the worst-case
// fee of the self-transfer. A failed balance read is left for the send to surface.
func (g *GasProofSender) checkGasFunds(ctx context.Context, self common.Address) error {
	resolver, err := g.wallet.FeeResolver(g.network)
	if err != nil {
		return err
	}
	fee := resolver.Resolve(ctx)
	price := fee.GasPrice
	if fee.IsDynamic() {
		price = fee.MaxFeePerGas
	}
	cost := new(big.Int).Mul(price, big.NewInt(selfTransferGas))

	balance, err := g.wallet.GetBalance(ctx, g.network, self.Hex())
	if err != nil {
		g.log.WithError(err).WithField("network", g.network).Warn("Could not read gas balance before gas proof")
		return nil
	}
	if balance.Cmp(cost) < 0 {
		return wallet.NewWalletError(wallet.ErrCodeInsufficientGasFunds,
			fmt.Sprintf("balance %s wei cannot cover %s wei of gas", balance, cost), nil, g.network)
	}
	return nil
}
