package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager hands out nonces per network so that concurrent sends from the same
// account do not collide. A nonce stays reserved until ReleaseNonce is called.
type NonceManager struct {
	pendingNonces map[NetworkType]map[uint64]time.Time
	mu            sync.Mutex
}

func newNonceManager() *NonceManager {
	return &NonceManager{
		pendingNonces: make(map[NetworkType]map[uint64]time.Time),
	}
}

// NonceSource reports the next nonce the node expects for an account.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// GetNonce reserves the next available nonce for account on network. It starts from
// the node's pending nonce and skips any nonce still reserved locally.
func (nm *NonceManager) GetNonce(ctx context.Context, source NonceSource, network NetworkType, account common.Address) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce, err := source.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, NewWalletError(ErrCodeRPCError, "failed to get nonce", err, network)
	}

	if nm.pendingNonces[network] == nil {
		nm.pendingNonces[network] = make(map[uint64]time.Time)
	}

	for {
		if _, isPending := nm.pendingNonces[network][nonce]; !isPending {
			nm.pendingNonces[network][nonce] = time.Now()
			return nonce, nil
		}
		nonce++
	}
}

// ReleaseNonce releases a previously reserved nonce.
func (nm *NonceManager) ReleaseNonce(network NetworkType, nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.pendingNonces[network] != nil {
		delete(nm.pendingNonces[network], nonce)
	}
}

// Pending returns how many nonces are reserved on network.
func (nm *NonceManager) Pending(network NetworkType) int {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	return len(nm.pendingNonces[network])
}
