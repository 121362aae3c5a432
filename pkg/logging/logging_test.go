package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lisanmuaddib/stablepay/pkg/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Logging", func() {
	Describe("ColoredJSONFormatter", func() {
		format := func(fields logrus.Fields) string {
			f := logging.NewColoredJSONFormatter()
			f.DisableColors = true
			entry := &logrus.Entry{
				Logger:  logrus.New(),
				Data:    fields,
				Time:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
				Level:   logrus.WarnLevel,
				Message: "Swap needs fallback network",
			}
			out, err := f.Format(entry)
			Expect(err).NotTo(HaveOccurred())
			return string(out)
		}

		It("puts the header first and priority fields before the rest", func() {
			line := format(logrus.Fields{
				"reason":  "gas estimation failed",
				"network": "LOCAL",
				"tx_hash": "0xabc",
				"error":   errors.New("execution reverted"),
			})

			Expect(line).To(HavePrefix("2024-01-01T10:00:00Z WARNING Swap needs fallback network "))
			Expect(strings.Index(line, "tx_hash=")).To(BeNumerically("<", strings.Index(line, "network=")))
			Expect(strings.Index(line, "network=")).To(BeNumerically("<", strings.Index(line, "error=")))
			Expect(strings.Index(line, "error=")).To(BeNumerically("<", strings.Index(line, "reason=")))
			Expect(line).To(ContainSubstring(`error="execution reverted"`))
			Expect(line).To(HaveSuffix("\n"))
		})

		It("encodes non-string values as JSON", func() {
			line := format(logrus.Fields{"gas_limit": 60000, "dynamic": true})
			Expect(line).To(ContainSubstring("gas_limit=60000"))
			Expect(line).To(ContainSubstring("dynamic=true"))
		})
	})

	Describe("NewLogger", func() {
		It("falls back to info on an invalid level", func() {
			log := logging.NewLogger(logging.Options{Level: "loud", Format: "json"})
			Expect(log.GetLevel()).To(Equal(logrus.InfoLevel))
		})

		It("parses the level", func() {
			log := logging.NewLogger(logging.Options{Level: "debug", Format: "color"})
			Expect(log.GetLevel()).To(Equal(logrus.DebugLevel))
			Expect(log.Formatter).To(BeAssignableToTypeOf(&logging.ColoredJSONFormatter{}))
		})

		It("also writes JSON lines to the log file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "stablepay.log")
			log := logging.NewLogger(logging.Options{Format: "json", File: path})
			log.SetOutput(GinkgoWriter)

			log.WithField("tx_hash", "0xabc").Info("Transaction submitted")

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"tx_hash":"0xabc"`))
			Expect(string(data)).To(ContainSubstring(`"msg":"Transaction submitted"`))
		})
	})
})
