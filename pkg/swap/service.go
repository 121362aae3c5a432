package swap

import (
	"context"
	"sync"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config configures a Service.
type Config struct {
	// Wallet may be nil, in which case the service runs simulated
	Wallet          *wallet.Client
	Network         wallet.NetworkType
	FallbackNetwork wallet.NetworkType
	ContractAddress string
	OverrideAddress string
	TokenAddress    string
	// GasProofFallback enables the fallback-network self-transfer for swaps that
	// need a fallback. When false such swaps end as OutcomeNeedsFallback.
	GasProofFallback bool
	StrictPreflight  bool
}

// Service owns the connection and the components selected for it. Build one with
// NewService and pass it to whatever needs swap functionality.
type Service struct {
	cfg       Config
	log       *logrus.Logger
	connector *Connector

	mu         sync.RWMutex
	calculator Calculator
	history    HistoryReader
	executor   *Executor
	subscriber *Subscriber
	gasProof   *GasProofSender
}

// NewService connects once and selects live or simulated components.
func NewService(ctx context.Context, log *logrus.Logger, cfg Config) *Service {
	if log == nil {
		log = logrus.New()
	}
	s := &Service{
		cfg: cfg,
		log: log,
		connector: NewConnector(log, ConnectorConfig{
			Wallet:          cfg.Wallet,
			Network:         cfg.Network,
			ContractAddress: cfg.ContractAddress,
			OverrideAddress: cfg.OverrideAddress,
		}),
	}
	if cfg.GasProofFallback && cfg.Wallet != nil && cfg.FallbackNetwork != "" {
		s.gasProof = NewGasProofSender(log, cfg.Wallet, cfg.FallbackNetwork)
	}
	s.Reconnect(ctx)
	return s
}

// Reconnect reruns the connection checks and reselects components. Existing
// event listeners are dropped.
func (s *Service) Reconnect(ctx context.Context) bool {
	connected := s.connector.Connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscriber != nil {
		s.subscriber.RemoveAllListeners()
	}

	contract, _ := s.connector.Contract()
	if !connected {
		s.calculator = SimulatedCalculator{}
		s.history = SimulatedHistory{}
		s.executor = nil
		s.subscriber = NewSubscriber(s.log, nil)
		return false
	}

	s.calculator = NewFallbackCalculator(s.log, NewLiveCalculator(contract))
	s.history = NewFallbackHistory(s.log, NewLiveHistory(contract))
	s.executor = NewExecutor(s.log, ExecutorConfig{
		Wallet:          s.cfg.Wallet,
		Network:         s.cfg.Network,
		Contract:        contract,
		TokenAddress:    s.cfg.TokenAddress,
		StrictPreflight: s.cfg.StrictPreflight,
	})
	s.subscriber = NewSubscriber(s.log, contract)
	return true
}

// Status reports the current connection status.
func (s *Service) Status() ConnectionStatus {
	return s.connector.Status()
}

// Calculate previews a swap.
func (s *Service) Calculate(ctx context.Context, from, to string, amount decimal.Decimal) (SwapCalculation, error) {
	s.mu.RLock()
	calc := s.calculator
	s.mu.RUnlock()
	return calc.Calculate(ctx, from, to, amount)
}

// History returns the reader selected for the current connection.
func (s *Service) History() HistoryReader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Subscriber returns the event subscriber for the current connection.
func (s *Service) Subscriber() *Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriber
}

// ResumeEvents restarts the event watch when the node dropped it while the
// contract is still connected and listeners are registered.
func (s *Service) ResumeEvents(ctx context.Context) (bool, error) {
	sub := s.Subscriber()
	if !s.Status().IsConnected || sub.ListenerCount() == 0 || sub.IsWatching() {
		return false, nil
	}
	if err := sub.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Swap executes amount of from into to. Exactly one side must be USDT.
//
// When the contract path needs a fallback and gas-proof fallback is enabled, a
// self-transfer is sent on the fallback network and the result is OutcomeGasProof
// with the original reason kept. It is never reported as OutcomeExecuted.
func (s *Service) Swap(ctx context.Context, from, to string, amount decimal.Decimal, reference string) Outcome {
	dir, fiat, err := DirectionOf(from, to)
	if err != nil {
		return failed(err)
	}

	s.mu.RLock()
	executor := s.executor
	s.mu.RUnlock()

	var outcome Outcome
	switch {
	case executor == nil:
		outcome = needsFallback("swap contract not connected", ErrNotConnected)
	case dir == USDTToFiat:
		outcome = executor.SwapUSDTToFiat(ctx, fiat, amount, reference)
	default:
		outcome = executor.SwapFiatToUSDT(ctx, fiat, amount, reference)
	}

	if outcome.Kind != OutcomeNeedsFallback || s.gasProof == nil {
		return outcome
	}

	status, err := s.gasProof.Send(ctx)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"network": s.cfg.FallbackNetwork,
			"reason":  outcome.Reason,
			"error":   err,
		}).Error("Gas-proof fallback failed")
		return failed(err)
	}
	return Outcome{
		Kind:   OutcomeGasProof,
		TxHash: status.Hash.Hex(),
		Status: status,
		Reason: outcome.Reason,
		Err:    outcome.Err,
	}
}

// Close stops event delivery and drops the contract handle.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber != nil {
		s.subscriber.RemoveAllListeners()
	}
	s.connector.Disconnect()
}
