package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fixedNonce struct {
	nonce uint64
	err   error
}

func (f fixedNonce) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, f.err
}

var _ = Describe("NonceManager", func() {
	account := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	It("skips nonces that are still reserved", func() {
		nm := newNonceManager()
		source := fixedNonce{nonce: 4}

		first, err := nm.GetNonce(context.Background(), source, AMOY, account)
		Expect(err).NotTo(HaveOccurred())
		second, err := nm.GetNonce(context.Background(), source, AMOY, account)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(Equal(uint64(4)))
		Expect(second).To(Equal(uint64(5)))
		Expect(nm.Pending(AMOY)).To(Equal(2))
		Expect(nm.Pending(LOCAL)).To(BeZero())
	})

	It("reuses a released nonce", func() {
		nm := newNonceManager()
		source := fixedNonce{nonce: 9}

		n, err := nm.GetNonce(context.Background(), source, LOCAL, account)
		Expect(err).NotTo(HaveOccurred())
		nm.ReleaseNonce(LOCAL, n)
		Expect(nm.Pending(LOCAL)).To(BeZero())

		again, err := nm.GetNonce(context.Background(), source, LOCAL, account)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(n))
	})

	It("hands out distinct nonces to concurrent senders", func() {
		nm := newNonceManager()
		source := fixedNonce{nonce: 0}

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			nonces = map[uint64]bool{}
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				n, err := nm.GetNonce(context.Background(), source, LOCAL, account)
				Expect(err).NotTo(HaveOccurred())
				mu.Lock()
				nonces[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		Expect(nonces).To(HaveLen(10))
	})

	It("reports node failures", func() {
		nm := newNonceManager()
		_, err := nm.GetNonce(context.Background(), fixedNonce{err: errors.New("timeout")}, LOCAL, account)
		Expect(err).To(HaveOccurred())
		Expect(nm.Pending(LOCAL)).To(BeZero())
	})
})
