package wallet_test

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/lisanmuaddib/stablepay/pkg/wallet/backendmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		logger *logrus.Logger
		km     *wallet.KeyManager
		config wallet.NetworkConfig

		recipient = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
		token     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)

		key, err := crypto.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		km = wallet.NewKeyManagerFromECDSA(key)

		config = wallet.NetworkConfig{
			Type:                wallet.LOCAL,
			ChainID:             31337,
			ReceiptPollInterval: 5 * time.Millisecond,
			ReceiptTimeout:      time.Second,
		}
	})

	newClient := func(km *wallet.KeyManager, backend *backendmock.Backend) *wallet.Client {
		client, err := wallet.NewClientWithBackends(logger, []wallet.NetworkConfig{config}, km,
			map[wallet.NetworkType]wallet.Backend{wallet.LOCAL: backend}, nil)
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	sendingBackend := func(status uint64, sent *[]*types.Transaction, opts ...backendmock.Option) *backendmock.Backend {
		base := []backendmock.Option{
			backendmock.WithEstimateGasFunc(func(context.Context, ethereum.CallMsg) (uint64, error) { return 50000, nil }),
			backendmock.WithPendingNonceAtFunc(func(context.Context, common.Address) (uint64, error) { return 7, nil }),
			backendmock.WithHeaderByNumberFunc(func(context.Context, *big.Int) (*types.Header, error) {
				return &types.Header{Number: big.NewInt(10), BaseFee: wallet.GweiToWei(1)}, nil
			}),
			backendmock.WithSuggestGasPriceFunc(func(context.Context) (*big.Int, error) { return wallet.GweiToWei(2), nil }),
			backendmock.WithSuggestGasTipCapFunc(func(context.Context) (*big.Int, error) { return wallet.GweiToWei(1), nil }),
			backendmock.WithSendTransactionFunc(func(_ context.Context, tx *types.Transaction) error {
				*sent = append(*sent, tx)
				return nil
			}),
			backendmock.WithTransactionReceiptFunc(func(_ context.Context, hash common.Hash) (*types.Receipt, error) {
				r := backendmock.SuccessReceipt(hash, 11)
				r.Status = status
				return r, nil
			}),
			backendmock.WithBlockNumberFunc(func(context.Context) (uint64, error) { return 12, nil }),
		}
		return backendmock.New(append(base, opts...)...)
	}

	Context("read-only", func() {
		It("reports no signer and refuses to send", func() {
			client := newClient(nil, backendmock.New())
			Expect(client.HasSigner()).To(BeFalse())
			Expect(client.Address()).To(Equal(common.Address{}))

			_, err := client.SendTransaction(ctx, wallet.LOCAL, recipient, nil, big.NewInt(1))
			Expect(wallet.IsWalletError(err, wallet.ErrCodeNoSigner)).To(BeTrue())
		})

		It("rejects unknown networks", func() {
			client := newClient(nil, backendmock.New())
			_, err := client.Backend(wallet.ETH)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidNetwork)).To(BeTrue())
		})
	})

	Context("SendTransactionWithOptions", func() {
		It("signs a dynamic-fee transaction with a 20% gas margin and waits for the receipt", func() {
			var sent []*types.Transaction
			client := newClient(km, sendingBackend(types.ReceiptStatusSuccessful, &sent))

			status, err := client.SendTransaction(ctx, wallet.LOCAL, recipient, []byte{0x01}, big.NewInt(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Succeeded()).To(BeTrue())
			Expect(status.Fee.Tier).To(Equal(wallet.FeeTierStandard))

			Expect(sent).To(HaveLen(1))
			tx := sent[0]
			Expect(tx.Type()).To(Equal(uint8(types.DynamicFeeTxType)))
			Expect(tx.Nonce()).To(Equal(uint64(7)))
			Expect(tx.Gas()).To(Equal(uint64(60000)))
			Expect(tx.ChainId().Int64()).To(Equal(int64(31337)))
			Expect(status.Hash).To(Equal(tx.Hash()))

			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			Expect(err).NotTo(HaveOccurred())
			Expect(from).To(Equal(km.GetAddress()))
		})

		It("returns TRANSACTION_FAILED for a reverted receipt", func() {
			var sent []*types.Transaction
			client := newClient(km, sendingBackend(types.ReceiptStatusFailed, &sent))

			status, err := client.SendTransaction(ctx, wallet.LOCAL, recipient, nil, nil)
			Expect(err).To(MatchError(wallet.ErrTransactionFailed))
			Expect(status.State).To(Equal(wallet.TxStateFailed))
		})

		It("classifies send failures", func() {
			var sent []*types.Transaction
			backend := sendingBackend(types.ReceiptStatusSuccessful, &sent,
				backendmock.WithSendTransactionFunc(func(context.Context, *types.Transaction) error {
					return errors.New("insufficient funds for gas * price + value")
				}))
			client := newClient(km, backend)

			_, err := client.SendTransaction(ctx, wallet.LOCAL, recipient, nil, nil)
			Expect(err).To(MatchError(wallet.ErrInsufficientGasFunds))
		})

		It("wraps estimation failures", func() {
			var sent []*types.Transaction
			backend := sendingBackend(types.ReceiptStatusSuccessful, &sent,
				backendmock.WithEstimateGasFunc(func(context.Context, ethereum.CallMsg) (uint64, error) {
					return 0, errors.New("execution reverted")
				}))
			client := newClient(km, backend)

			_, err := client.SendTransaction(ctx, wallet.LOCAL, recipient, nil, nil)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeGasEstimationFailed)).To(BeTrue())
			Expect(wallet.ClassifyTxError(err)).To(Equal(wallet.ErrCodeReverted))
			Expect(sent).To(BeEmpty())
		})

		It("returns immediately when not waiting for the receipt", func() {
			var sent []*types.Transaction
			client := newClient(km, sendingBackend(types.ReceiptStatusSuccessful, &sent))

			opts := wallet.DefaultTransactionOptions()
			opts.WaitReceipt = false
			opts.GasLimit = 21000
			status, err := client.SendTransactionWithOptions(ctx, wallet.LOCAL, recipient, nil, nil, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(wallet.TxStatePending))
			Expect(sent[0].Gas()).To(Equal(uint64(21000)))
		})
	})

	Context("WaitForReceipt", func() {
		It("times out when no receipt appears", func() {
			backend := backendmock.New(
				backendmock.WithTransactionReceiptFunc(func(context.Context, common.Hash) (*types.Receipt, error) {
					return nil, ethereum.NotFound
				}),
			)
			config.ReceiptTimeout = 30 * time.Millisecond
			client := newClient(km, backend)

			_, err := client.WaitForReceipt(ctx, wallet.LOCAL, common.HexToHash("0x01"))
			Expect(wallet.IsWalletError(err, wallet.ErrCodeTimeout)).To(BeTrue())
		})

		It("waits for the configured confirmations", func() {
			head := uint64(11)
			backend := backendmock.New(
				backendmock.WithTransactionReceiptFunc(func(_ context.Context, hash common.Hash) (*types.Receipt, error) {
					return backendmock.SuccessReceipt(hash, 11), nil
				}),
				backendmock.WithBlockNumberFunc(func(context.Context) (uint64, error) {
					head++
					return head, nil
				}),
			)
			config.MinConfirmations = 3
			client := newClient(km, backend)

			status, err := client.WaitForReceipt(ctx, wallet.LOCAL, common.HexToHash("0x02"))
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Confirmations).To(BeNumerically(">=", 3))
		})
	})

	Context("tokens", func() {
		It("reads decimals, balance and allowance", func() {
			parsed, err := wallet.ERC20ABI()
			Expect(err).NotTo(HaveOccurred())

			backend := backendmock.New(backendmock.WithContractMethods(parsed, map[string]backendmock.MethodHandler{
				"decimals":  func([]interface{}) ([]interface{}, error) { return []interface{}{uint8(6)}, nil },
				"balanceOf": func([]interface{}) ([]interface{}, error) { return []interface{}{big.NewInt(1_500_000)}, nil },
				"allowance": func(in []interface{}) ([]interface{}, error) {
					Expect(in[1]).To(Equal(recipient))
					return []interface{}{big.NewInt(42)}, nil
				},
			}))
			client := newClient(nil, backend)

			decimals, err := client.GetERC20Decimals(ctx, wallet.LOCAL, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(decimals).To(Equal(uint8(6)))

			balance, err := client.GetERC20Balance(ctx, wallet.LOCAL, token, recipient)
			Expect(err).NotTo(HaveOccurred())
			Expect(wallet.ParseUnits(balance, decimals).String()).To(Equal("1.5"))

			allowance, err := client.GetERC20Allowance(ctx, wallet.LOCAL, token, km.GetAddress(), recipient)
			Expect(err).NotTo(HaveOccurred())
			Expect(allowance.Int64()).To(Equal(int64(42)))
		})

		It("reports missing bytecode", func() {
			backend := backendmock.New(backendmock.WithCodeAtFunc(func(context.Context, common.Address, *big.Int) ([]byte, error) {
				return nil, nil
			}))
			client := newClient(nil, backend)

			ok, err := client.HasCode(ctx, wallet.LOCAL, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})
})
