package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lisanmuaddib/stablepay/internal/cli"
	"github.com/lisanmuaddib/stablepay/internal/config"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"
)

const user = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var _ = Describe("stablepay", func() {
	var app *cli.App

	BeforeEach(func() {
		log, _ := test.NewNullLogger()
		app = &cli.App{
			Config: &config.Config{
				Network:              wallet.LOCAL,
				RefreshInterval:      time.Second,
				DegradeTokenFailures: true,
				OverrideFile:         filepath.Join(GinkgoT().TempDir(), "override.yaml"),
			},
			Log:     log,
			Service: swap.NewService(context.Background(), log, swap.Config{Network: wallet.LOCAL}),
		}
		DeferCleanup(app.Close)
	})

	run := func(args ...string) (string, error) {
		cmd := cli.NewRootCmd(app)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	runJSON := func(args ...string) map[string]interface{} {
		out, err := run(append(args, "--json")...)
		Expect(err).NotTo(HaveOccurred())
		var v map[string]interface{}
		Expect(json.Unmarshal([]byte(out), &v)).To(Succeed())
		return v
	}

	It("reports a simulated status without a node", func() {
		v := runJSON("status")
		Expect(v).To(HaveKeyWithValue("isConnected", false))
		Expect(v).To(HaveKeyWithValue("mode", "simulated"))
		Expect(v).To(HaveKeyWithValue("network", "LOCAL"))
	})

	Describe("quote", func() {
		It("previews fiat to USDT", func() {
			v := runJSON("quote", "1000", "inr", "usdt")
			Expect(v).To(HaveKeyWithValue("toAmount", "9.84"))
			Expect(v).To(HaveKeyWithValue("taxAmount", "2.16"))
			Expect(v).To(HaveKeyWithValue("source", "simulated"))
			Expect(v).To(HaveKeyWithValue("fromCurrency", "INR"))
		})

		It("formats amounts for people", func() {
			out, err := run("quote", "6", "USDT", "INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("410 INR"))
			Expect(out).To(ContainSubstring("90 INR"))
			Expect(out).To(ContainSubstring("local rate table"))
		})

		It("rejects an unparsable amount", func() {
			_, err := run("quote", "lots", "INR", "USDT")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAmount)).To(BeTrue())
		})

		It("rejects a pair without USDT", func() {
			_, err := run("quote", "1", "INR", "EUR")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeUnsupportedCurrency)).To(BeTrue())
		})
	})

	Describe("swap", func() {
		It("reports that the contract path needs a fallback", func() {
			out, err := run("swap", "1000", "INR", "USDT", "--json")
			Expect(err).To(MatchError(ContainSubstring("swap not executed")))

			var v map[string]interface{}
			Expect(json.Unmarshal([]byte(out), &v)).To(Succeed())
			Expect(v).To(HaveKeyWithValue("outcome", "needs_fallback"))
			Expect(v).To(HaveKeyWithValue("reason", "swap contract not connected"))
		})

		It("fails on a bad pair", func() {
			out, err := run("swap", "1", "USDT", "USDT")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeUnsupportedCurrency)).To(BeTrue())
			Expect(out).To(ContainSubstring("SWAP FAILED"))
		})
	})

	Describe("balance and transfer", func() {
		It("marks simulated balances as placeholders", func() {
			v := runJSON("balance", user)
			Expect(v).To(HaveKeyWithValue("balance", "1000"))
			Expect(v).To(HaveKeyWithValue("placeholder", true))
		})

		It("rejects a malformed address", func() {
			_, err := run("balance", "0x1234")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAddress)).To(BeTrue())
		})

		It("returns a synthetic transfer id", func() {
			v := runJSON("transfer", user, "5")
			Expect(v).To(HaveKeyWithValue("synthetic", true))
			Expect(v["txHash"]).To(HaveLen(66))
		})

		It("rejects a zero transfer", func() {
			_, err := run("transfer", user, "0")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAmount)).To(BeTrue())
		})
	})

	Describe("history", func() {
		It("flags placeholder history", func() {
			v := runJSON("history", user)
			Expect(v).To(HaveKeyWithValue("simulated", true))
			Expect(v).To(HaveKeyWithValue("source", "contract"))
			Expect(v["records"]).To(HaveLen(2))
		})

		It("merges several addresses", func() {
			v := runJSON("history", user, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", user)
			Expect(v["records"]).To(HaveLen(4))
		})

		It("prints a table", func() {
			out, err := run("history", user, "--limit", "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("TIME"))
			Expect(out).To(ContainSubstring("1,000 INR"))
			Expect(out).NotTo(ContainSubstring("6 USDT"))
		})

		It("needs a database for local history", func() {
			_, err := run("history", "--local")
			Expect(err).To(MatchError(cli.ErrNoDatabase))
		})
	})

	It("shows rates and GST", func() {
		v := runJSON("rates", "inr", "INR")
		Expect(v).To(HaveKeyWithValue("gstPercent", "18"))
		Expect(v["rates"]).To(Equal(map[string]interface{}{"INR": "0.012"}))
	})

	Describe("contract override", func() {
		It("sets, shows and clears the override", func() {
			app.Config.ContractAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"

			_, err := run("contract", "set", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
			Expect(err).NotTo(HaveOccurred())
			v := runJSON("contract", "show")
			Expect(v).To(HaveKeyWithValue("override", user))
			Expect(v).To(HaveKeyWithValue("effective", user))

			saved, err := config.ReadOverride(app.Config.OverrideFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(user))

			_, err = run("contract", "clear")
			Expect(err).NotTo(HaveOccurred())
			v = runJSON("contract", "show")
			Expect(v).To(HaveKeyWithValue("effective", app.Config.ContractAddress))
		})

		It("refuses an invalid address", func() {
			_, err := run("contract", "set", "nope")
			Expect(wallet.IsWalletError(err, wallet.ErrCodeInvalidAddress)).To(BeTrue())
		})
	})

	Context("with a malformed override file", func() {
		var args []string

		BeforeEach(func() {
			dir := GinkgoT().TempDir()
			override := filepath.Join(dir, "override.yaml")
			configFile := filepath.Join(dir, "stablepay.yaml")
			Expect(os.WriteFile(override, []byte("contract_address: \"0x1234\"\n"), 0o600)).To(Succeed())
			Expect(os.WriteFile(configFile, []byte(fmt.Sprintf("override_file: %q\nlog_level: panic\n", override)), 0o600)).To(Succeed())

			app = &cli.App{}
			DeferCleanup(app.Close)
			args = []string{"--config", configFile, "--env-file", filepath.Join(dir, "missing.env")}
		})

		It("still quotes in simulated mode", func() {
			out, err := run(append(args, "quote", "1000", "INR", "USDT", "--json")...)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"source": "simulated"`))
		})

		It("lets the override be shown and cleared", func() {
			out, err := run(append(args, "contract", "show", "--json")...)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"override": "0x1234"`))

			_, err = run(append(args, "contract", "clear")...)
			Expect(err).NotTo(HaveOccurred())
			Expect(app.Config.OverrideAddress).To(BeEmpty())
			_, statErr := os.Stat(app.Config.OverrideFile)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	It("needs a database for migrations", func() {
		_, err := run("db", "migrate")
		Expect(err).To(MatchError(cli.ErrNoDatabase))
	})
})
