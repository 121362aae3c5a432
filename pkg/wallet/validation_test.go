package wallet_test

import (
	"strings"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validation", func() {
	Context("ValidateAddress", func() {
		const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

		It("accepts a checksummed address", func() {
			addr, err := wallet.ValidateAddress(checksummed)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr.Hex()).To(Equal(checksummed))
		})

		It("accepts all-lowercase and all-uppercase hex", func() {
			_, err := wallet.ValidateAddress(strings.ToLower(checksummed))
			Expect(err).NotTo(HaveOccurred())

			_, err = wallet.ValidateAddress("0x" + strings.ToUpper(checksummed[2:]))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a mixed-case address with a bad checksum", func() {
			bad := "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
			_, err := wallet.ValidateAddress(bad)
			Expect(err).To(MatchError(wallet.ErrInvalidAddress))
		})

		DescribeTable("rejects malformed input",
			func(input string) {
				_, err := wallet.ValidateAddress(input)
				Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAddress)).To(BeTrue())
			},
			Entry("free text", "not-an-address"),
			Entry("empty", ""),
			Entry("missing prefix", "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
			Entry("too short", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"),
			Entry("non-hex", "0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"),
		)
	})

	Context("ValidateAmount", func() {
		It("parses a positive decimal", func() {
			d, err := wallet.ValidateAmount(" 12.5 ")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.String()).To(Equal("12.5"))
		})

		DescribeTable("rejects non-positive or unparsable amounts",
			func(input string) {
				_, err := wallet.ValidateAmount(input)
				Expect(err).To(MatchError(wallet.ErrInvalidAmount))
			},
			Entry("zero", "0"),
			Entry("negative", "-1"),
			Entry("garbage", "ten"),
			Entry("empty", ""),
		)
	})

	Context("units", func() {
		It("round-trips 18-decimal amounts", func() {
			d, err := wallet.ValidateAmount("1000.25")
			Expect(err).NotTo(HaveOccurred())

			raw := wallet.FormatUnits(d, wallet.ContractDecimals)
			Expect(raw.String()).To(Equal("1000250000000000000000"))
			Expect(wallet.ParseUnits(raw, wallet.ContractDecimals).Equal(d)).To(BeTrue())
		})

		It("truncates below the smallest unit", func() {
			d, _ := wallet.ValidateAmount("1.1234567")
			Expect(wallet.FormatUnits(d, 6).String()).To(Equal("1123456"))
		})

		It("refuses on-chain amounts that truncate to zero", func() {
			d, err := wallet.ValidateAmount("0.0000001")
			Expect(err).NotTo(HaveOccurred())

			_, err = wallet.ToBaseUnits(d, 6, wallet.LOCAL)
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAmount)).To(BeTrue())

			value, err := wallet.ToBaseUnits(d, wallet.ContractDecimals, wallet.LOCAL)
			Expect(err).NotTo(HaveOccurred())
			Expect(value.String()).To(Equal("100000000000"))
		})
	})
})
