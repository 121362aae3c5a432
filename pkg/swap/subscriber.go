package swap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned when an operation needs a connected contract.
var ErrNotConnected = errors.New("swap contract not connected")

// Listener receives each swap record seen on chain.
type Listener func(SwapRecord)

type registration struct {
	id string
	fn Listener
}

// Subscriber watches SwapExecuted events and republishes them as SwapRecords.
// Listeners run one after another on the watch goroutine in registration order.
// A panicking listener is logged and does not stop the others.
type Subscriber struct {
	contract *Contract
	log      *logrus.Logger
	now      func() time.Time

	mu        sync.Mutex
	listeners []registration
	sub       event.Subscription
	cancel    context.CancelFunc
}

// NewSubscriber creates a subscriber. contract may be nil, in which case Start
// returns ErrNotConnected and listeners are only kept.
func NewSubscriber(log *logrus.Logger, contract *Contract) *Subscriber {
	if log == nil {
		log = logrus.New()
	}
	return &Subscriber{contract: contract, log: log, now: time.Now}
}

// Subscribe registers fn and returns its id.
func (s *Subscriber) Subscribe(fn Listener) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.listeners = append(s.listeners, registration{id: id, fn: fn})
	return id
}

// Unsubscribe removes one listener and reports whether it was registered.
func (s *Subscriber) Unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.listeners)
	s.listeners = lo.Reject(s.listeners, func(r registration, _ int) bool { return r.id == id })
	return len(s.listeners) != before
}

// ListenerCount returns how many listeners are registered.
func (s *Subscriber) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// IsWatching reports whether an event watch is running. It turns false when the
// node ends the subscription, after which Start may be called again.
func (s *Subscriber) IsWatching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Start attaches the event watch. It returns once the watch is established; events
// are delivered until ctx is cancelled or RemoveAllListeners is called.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.contract == nil {
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	logs, sub, err := s.contract.bound.WatchLogs(&bind.WatchOpts{Context: watchCtx}, eventSwapExecuted)
	if err != nil {
		cancel()
		return wallet.NewWalletError(wallet.ErrCodeRPCError, "failed to watch swap events", err, s.contract.network)
	}

	s.sub, s.cancel = sub, cancel
	go s.loop(watchCtx, logs, sub)

	s.log.WithFields(logrus.Fields{
		"network":  s.contract.network,
		"contract": s.contract.Address().Hex(),
	}).Info("Watching swap events")
	return nil
}

func (s *Subscriber) loop(ctx context.Context, logs <-chan types.Log, sub event.Subscription) {
	defer func() {
		s.mu.Lock()
		if s.sub == sub {
			s.cancel()
			s.sub, s.cancel = nil, nil
		}
		s.mu.Unlock()
		sub.Unsubscribe()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-sub.Err():
			if ok && err != nil {
				s.log.WithError(err).Warn("Swap event subscription ended")
			}
			return
		case l := <-logs:
			record, err := s.decode(l)
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"tx_hash": l.TxHash.Hex(),
					"error":   err,
				}).Warn("Failed to decode swap event")
				continue
			}
			s.Dispatch(record)
		}
	}
}

func (s *Subscriber) decode(l types.Log) (SwapRecord, error) {
	var ev swapExecutedEvent
	if err := s.contract.bound.UnpackLog(&ev, eventSwapExecuted, l); err != nil {
		return SwapRecord{}, err
	}
	return SwapRecord{
		User:            ev.User.Hex(),
		FromCurrency:    ev.FromCurrency,
		ToCurrency:      ev.ToCurrency,
		FromAmount:      wallet.ParseUnits(ev.FromAmount, wallet.ContractDecimals).String(),
		ToAmount:        wallet.ParseUnits(ev.ToAmount, wallet.ContractDecimals).String(),
		TaxAmount:       wallet.ParseUnits(ev.GstAmount, wallet.ContractDecimals).String(),
		Timestamp:       s.now().UTC().Format(time.RFC3339),
		TransactionHash: ev.TxHash,
	}, nil
}

// Dispatch delivers record to a snapshot of the current listeners.
func (s *Subscriber) Dispatch(record SwapRecord) {
	s.mu.Lock()
	snapshot := lo.Map(s.listeners, func(r registration, _ int) registration { return r })
	s.mu.Unlock()

	for _, r := range snapshot {
		s.invoke(r, record)
	}
}

func (s *Subscriber) invoke(r registration, record SwapRecord) {
	defer func() {
		if p := recover(); p != nil {
			s.log.WithFields(logrus.Fields{
				"listener": r.id,
				"tx_hash":  record.TransactionHash,
				"panic":    p,
			}).Error("Swap listener panicked")
		}
	}()
	r.fn(record)
}

// RemoveAllListeners drops every listener and stops the event watch. Calling it
// again is a no-op.
func (s *Subscriber) RemoveAllListeners() {
	s.mu.Lock()
	s.listeners = nil
	sub, cancel := s.sub, s.cancel
	s.sub, s.cancel = nil, nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Unsubscribe()
}
