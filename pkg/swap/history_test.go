package swap_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("History", func() {
	const user = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	var (
		ctx      context.Context
		chain    *fakeChain
		contract *swap.Contract
	)

	BeforeEach(func() {
		ctx = context.Background()
		chain = newFakeChain()
		contract = connect(newTestWallet(chain.backend(), false))
	})

	Describe("LiveHistory", func() {
		It("decodes the contract's records", func() {
			chain.set(func(c *fakeChain) {
				c.swap["getUserSwapHistory"] = func(in []interface{}) ([]interface{}, error) {
					return []interface{}{[]swap.ContractRecord{{
						User:         in[0].(common.Address),
						FromCurrency: "INR",
						ToCurrency:   "USDT",
						FromAmount:   ether(1000),
						ToAmount:     units("9.84"),
						GstAmount:    units("2.16"),
						Timestamp:    big.NewInt(1704103200),
						TxHash:       "ref-1",
					}}}, nil
				}
			})

			history, err := swap.NewLiveHistory(contract).UserSwapHistory(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Simulated).To(BeFalse())
			Expect(history.Records).To(Equal([]swap.SwapRecord{{
				User:            user,
				FromCurrency:    "INR",
				ToCurrency:      "USDT",
				FromAmount:      "1000",
				ToAmount:        "9.84",
				TaxAmount:       "2.16",
				Timestamp:       "2024-01-01T10:00:00Z",
				TransactionHash: "ref-1",
			}}))
		})

		It("returns an empty list for no records", func() {
			chain.set(func(c *fakeChain) {
				c.swap["getRecentSwaps"] = func([]interface{}) ([]interface{}, error) {
					return []interface{}{[]swap.ContractRecord{}}, nil
				}
			})
			history, err := swap.NewLiveHistory(contract).RecentSwaps(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Records).To(BeEmpty())
		})

		It("caches currency rates", func() {
			var calls atomic.Int32
			chain.set(func(c *fakeChain) {
				c.swap["currencyRates"] = func([]interface{}) ([]interface{}, error) {
					calls.Add(1)
					return []interface{}{big.NewInt(12000000000000000)}, nil
				}
			})
			live := swap.NewLiveHistory(contract)

			for i := 0; i < 3; i++ {
				rate, err := live.CurrencyRate(ctx, "inr")
				Expect(err).NotTo(HaveOccurred())
				Expect(rate.String()).To(Equal("0.012"))
			}
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("reads the GST rate as a percentage", func() {
			rate, err := swap.NewLiveHistory(contract).GSTRate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rate.String()).To(Equal("18"))
		})
	})

	Describe("SimulatedHistory", func() {
		It("returns the same records on every read", func() {
			first, err := swap.SimulatedHistory{}.UserSwapHistory(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			second, _ := swap.SimulatedHistory{}.UserSwapHistory(ctx, user)

			Expect(first).To(Equal(second))
			Expect(first.Simulated).To(BeTrue())
			Expect(first.Records).To(HaveLen(2))
			Expect(first.Records[0].ToAmount).To(Equal("9.84"))
			Expect(first.Records[1].ToAmount).To(Equal("410"))
			Expect(first.Records[0].TransactionHash).To(MatchRegexp("^0x[0-9a-f]{64}$"))
		})

		It("validates the address", func() {
			_, err := swap.SimulatedHistory{}.UserSwapHistory(ctx, "nope")
			Expect(errors.Is(err, wallet.ErrInvalidAddress)).To(BeTrue())
		})
	})

	Describe("FallbackHistory", func() {
		It("substitutes placeholder records and keeps the cause", func() {
			history, err := swap.NewFallbackHistory(quietLogger(), swap.NewLiveHistory(contract)).UserSwapHistory(ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Simulated).To(BeTrue())
			Expect(history.Records).To(HaveLen(2))
			Expect(wallet.ErrorCode(history.Cause)).To(Equal(wallet.ErrCodeContractError))
		})

		It("returns validation errors instead of placeholders", func() {
			_, err := swap.NewFallbackHistory(quietLogger(), swap.NewLiveHistory(contract)).UserSwapHistory(ctx, "0x12")
			Expect(errors.Is(err, wallet.ErrInvalidAddress)).To(BeTrue())
		})

		It("falls back to the simulated rate", func() {
			rate, err := swap.NewFallbackHistory(quietLogger(), swap.NewLiveHistory(contract)).CurrencyRate(ctx, "INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(rate.Equal(swap.SimulatedRate)).To(BeTrue())
		})
	})
})
