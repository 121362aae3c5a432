package swap

import (
	"errors"
	"fmt"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
)

// ErrSwapInProgress is returned when a swap is started while another one on the
// same executor is still running.
var ErrSwapInProgress = errors.New("swap already in progress")

// OutcomeKind tags the result of a swap attempt.
type OutcomeKind int

const (
	// OutcomeExecuted means the contract swap was mined successfully
	OutcomeExecuted OutcomeKind = iota
	// OutcomeNeedsFallback means the contract path cannot complete the swap
	OutcomeNeedsFallback
	// OutcomeGasProof means a self-transfer was sent on the fallback network.
	// TxHash proves gas was spent, not that a swap happened.
	OutcomeGasProof
	// OutcomeFailed means the attempt failed with Err
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExecuted:
		return "executed"
	case OutcomeNeedsFallback:
		return "needs_fallback"
	case OutcomeGasProof:
		return "gas_proof"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the tagged result of a swap attempt.
type Outcome struct {
	Kind   OutcomeKind
	TxHash string
	Status *wallet.TransactionStatus
	// Reason explains NeedsFallback and is kept on GasProof
	Reason string
	// Err is the failure for Failed and the underlying cause for NeedsFallback
	Err error
}

func executed(status *wallet.TransactionStatus) Outcome {
	return Outcome{Kind: OutcomeExecuted, TxHash: status.Hash.Hex(), Status: status}
}

func needsFallback(reason string, cause error) Outcome {
	return Outcome{Kind: OutcomeNeedsFallback, Reason: reason, Err: cause}
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// String renders the outcome for logs and CLI output.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeExecuted:
		return fmt.Sprintf("executed %s", o.TxHash)
	case OutcomeGasProof:
		return fmt.Sprintf("gas proof %s (%s)", o.TxHash, o.Reason)
	case OutcomeNeedsFallback:
		return fmt.Sprintf("needs fallback: %s", o.Reason)
	default:
		return fmt.Sprintf("failed: %v", o.Err)
	}
}
