package swap_test

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/lisanmuaddib/stablepay/pkg/wallet/backendmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Executor", func() {
	var (
		ctx   context.Context
		chain *fakeChain
		w     *wallet.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		chain = newFakeChain()
		w = newTestWallet(chain.backend(), true)
	})

	executor := func(strict bool) *swap.Executor {
		return swap.NewExecutor(quietLogger(), swap.ExecutorConfig{
			Wallet:          w,
			Network:         wallet.LOCAL,
			Contract:        connect(w),
			StrictPreflight: strict,
		})
	}

	Describe("fiat to USDT", func() {
		It("submits swapFiatToUSDT and reports the mined hash", func() {
			e := executor(false)
			out := e.SwapFiatToUSDT(ctx, "inr", decimal.NewFromInt(1000), "ref-1")

			Expect(out.Kind).To(Equal(swap.OutcomeExecuted), out.String())
			Expect(e.State()).To(Equal(swap.StateConfirmed))

			sent := chain.sentTo(contractAddr)
			Expect(sent).To(HaveLen(1))
			Expect(out.TxHash).To(Equal(sent[0].Hash().Hex()))
			Expect(hasSelector(sent[0], "swapFiatToUSDT")).To(BeTrue())
			Expect(sent[0].Gas()).To(Equal(uint64(120000)))

			parsed, err := swap.ContractABI()
			Expect(err).NotTo(HaveOccurred())
			args, err := parsed.Methods["swapFiatToUSDT"].Inputs.Unpack(sent[0].Data()[4:])
			Expect(err).NotTo(HaveOccurred())
			Expect(args[0]).To(Equal(w.Address()))
			Expect(args[1]).To(Equal("INR"))
			Expect(args[2].(*big.Int).String()).To(Equal(ether(1000).String()))
			Expect(args[3]).To(Equal("ref-1"))
		})

		It("generates a reference when none is given", func() {
			out := executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeExecuted))

			parsed, _ := swap.ContractABI()
			args, err := parsed.Methods["swapFiatToUSDT"].Inputs.Unpack(chain.sentTo(contractAddr)[0].Data()[4:])
			Expect(err).NotTo(HaveOccurred())
			Expect(args[3]).To(MatchRegexp(`^[0-9a-f-]{36}$`))
		})

		It("needs a fallback when the currency is unsupported", func() {
			chain.set(func(c *fakeChain) {
				c.swap["isCurrencySupported"] = func([]interface{}) ([]interface{}, error) { return []interface{}{false}, nil }
			})
			e := executor(false)
			out := e.SwapFiatToUSDT(ctx, "XYZ", decimal.NewFromInt(1), "")

			Expect(out.Kind).To(Equal(swap.OutcomeNeedsFallback))
			Expect(errors.Is(out.Err, wallet.ErrUnsupportedCurrency)).To(BeTrue())
			Expect(e.State()).To(Equal(swap.StateNeedsFallback))
			Expect(chain.sentTo(contractAddr)).To(BeEmpty())
		})

		It("assumes support when the currency check fails outside strict mode", func() {
			chain.set(func(c *fakeChain) { delete(c.swap, "isCurrencySupported") })
			Expect(executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "").Kind).To(Equal(swap.OutcomeExecuted))
		})

		It("fails when the currency check fails in strict mode", func() {
			chain.set(func(c *fakeChain) { delete(c.swap, "isCurrencySupported") })
			out := executor(true).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(wallet.ErrorCode(out.Err)).To(Equal(wallet.ErrCodeContractError))
		})

		It("needs a fallback when gas estimation reverts", func() {
			chain.set(func(c *fakeChain) {
				c.estimate = func(ethereum.CallMsg) (uint64, error) { return 0, errors.New("execution reverted: rate not set") }
			})
			out := executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeNeedsFallback))
			Expect(out.Reason).To(Equal("gas estimation failed"))
			Expect(chain.sentTo(contractAddr)).To(BeEmpty())
		})

		It("fails when the signer rejects", func() {
			chain.set(func(c *fakeChain) {
				c.estimate = func(ethereum.CallMsg) (uint64, error) {
					return 0, &backendmock.RPCError{Code: 4001, Message: "request denied"}
				}
			})
			out := executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(errors.Is(out.Err, wallet.ErrUserRejected)).To(BeTrue())
		})

		It("fails when the wallet cannot pay for gas", func() {
			chain.set(func(c *fakeChain) {
				c.estimate = func(ethereum.CallMsg) (uint64, error) {
					return 0, errors.New("insufficient funds for gas * price + value")
				}
			})
			out := executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(errors.Is(out.Err, wallet.ErrInsufficientGasFunds)).To(BeTrue())
		})

		It("needs a fallback when the swap is mined reverted", func() {
			chain.set(func(c *fakeChain) { c.receipt = 0 })
			out := executor(false).SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeNeedsFallback))
			Expect(out.Reason).To(Equal("swap transaction reverted"))
			Expect(chain.sentTo(contractAddr)).To(HaveLen(1))
		})

		DescribeTable("rejects bad input before touching the chain",
			func(currency string, amount decimal.Decimal, code string) {
				out := executor(false).SwapFiatToUSDT(ctx, currency, amount, "")
				Expect(out.Kind).To(Equal(swap.OutcomeFailed))
				Expect(wallet.ErrorCode(out.Err)).To(Equal(code))
				Expect(chain.sentTo(contractAddr)).To(BeEmpty())
			},
			Entry("zero amount", "INR", decimal.Zero, wallet.ErrCodeInvalidAmount),
			Entry("negative amount", "INR", decimal.NewFromInt(-5), wallet.ErrCodeInvalidAmount),
			Entry("below one wei", "INR", decimal.RequireFromString("0.0000000000000000001"), wallet.ErrCodeInvalidAmount),
			Entry("USDT as fiat", "USDT", decimal.NewFromInt(1), wallet.ErrCodeUnsupportedCurrency),
			Entry("empty currency", " ", decimal.NewFromInt(1), wallet.ErrCodeUnsupportedCurrency),
		)

		It("fails without a signer", func() {
			readOnly := newTestWallet(chain.backend(), false)
			e := swap.NewExecutor(quietLogger(), swap.ExecutorConfig{Wallet: readOnly, Network: wallet.LOCAL, Contract: connect(readOnly)})
			out := e.SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(wallet.ErrorCode(out.Err)).To(Equal(wallet.ErrCodeNoSigner))
		})

		It("runs one swap at a time", func() {
			release := make(chan struct{})
			chain.set(func(c *fakeChain) {
				c.estimate = func(ethereum.CallMsg) (uint64, error) {
					<-release
					return 100000, nil
				}
			})
			e := executor(false)

			done := make(chan swap.Outcome, 1)
			go func() {
				defer GinkgoRecover()
				done <- e.SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			}()
			Eventually(e.State).Should(Equal(swap.StateEstimatingGas))

			second := e.SwapFiatToUSDT(ctx, "INR", decimal.NewFromInt(1), "")
			Expect(second.Kind).To(Equal(swap.OutcomeFailed))
			Expect(second.Err).To(MatchError(swap.ErrSwapInProgress))

			close(release)
			var first swap.Outcome
			Eventually(done).Should(Receive(&first))
			Expect(first.Kind).To(Equal(swap.OutcomeExecuted))
		})
	})

	Describe("USDT to fiat", func() {
		It("approves the missing allowance before swapping", func() {
			chain.set(func(c *fakeChain) {
				c.token["allowance"] = func([]interface{}) ([]interface{}, error) { return []interface{}{big.NewInt(0)}, nil }
			})
			out := executor(false).SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(5), "")
			Expect(out.Kind).To(Equal(swap.OutcomeExecuted), out.String())

			approvals := chain.sentTo(tokenAddr)
			Expect(approvals).To(HaveLen(1))
			tokenABI, _ := wallet.ERC20ABI()
			args, err := tokenABI.Methods["approve"].Inputs.Unpack(approvals[0].Data()[4:])
			Expect(err).NotTo(HaveOccurred())
			Expect(args[0]).To(Equal(contractAddr))
			Expect(args[1].(*big.Int).String()).To(Equal(ether(5).String()))

			swaps := chain.sentTo(contractAddr)
			Expect(swaps).To(HaveLen(1))
			Expect(hasSelector(swaps[0], "swapUSDTToFiat")).To(BeTrue())
			Expect(swaps[0].Nonce()).To(Equal(approvals[0].Nonce() + 1))
		})

		It("skips approval when the allowance covers the amount", func() {
			Expect(executor(false).SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(5), "").Kind).To(Equal(swap.OutcomeExecuted))
			Expect(chain.sentTo(tokenAddr)).To(BeEmpty())
		})

		It("fails on a short balance in strict mode", func() {
			out := executor(true).SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(500), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(errors.Is(out.Err, wallet.ErrInsufficientBalance)).To(BeTrue())
			Expect(chain.sentTo(contractAddr)).To(BeEmpty())
		})

		It("continues past a short balance outside strict mode", func() {
			out := executor(false).SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(500), "")
			Expect(out.Kind).To(Equal(swap.OutcomeExecuted))
		})

		It("fails when the amount is below one token unit even outside strict mode", func() {
			chain.set(func(c *fakeChain) {
				c.token["decimals"] = func([]interface{}) ([]interface{}, error) { return []interface{}{uint8(6)}, nil }
			})
			out := executor(false).SwapUSDTToFiat(ctx, "INR", decimal.RequireFromString("0.0000001"), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(wallet.ErrorCode(out.Err)).To(Equal(wallet.ErrCodeInvalidAmount))
			Expect(chain.sentTo(tokenAddr)).To(BeEmpty())
			Expect(chain.sentTo(contractAddr)).To(BeEmpty())
		})

		It("fails when no token contract is deployed in strict mode", func() {
			chain.set(func(c *fakeChain) { delete(c.code, tokenAddr) })
			out := executor(true).SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(5), "")
			Expect(out.Kind).To(Equal(swap.OutcomeFailed))
			Expect(errors.Is(out.Err, wallet.ErrTokenNotFound)).To(BeTrue())
		})

		It("uses the configured token address over usdtToken", func() {
			chain.set(func(c *fakeChain) { delete(c.swap, "usdtToken") })
			e := swap.NewExecutor(quietLogger(), swap.ExecutorConfig{
				Wallet:          w,
				Network:         wallet.LOCAL,
				Contract:        connect(w),
				TokenAddress:    tokenAddr.Hex(),
				StrictPreflight: true,
			})
			Expect(e.SwapUSDTToFiat(ctx, "INR", decimal.NewFromInt(5), "").Kind).To(Equal(swap.OutcomeExecuted))
		})
	})
})
