package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/lisanmuaddib/stablepay/internal/config"
	"github.com/lisanmuaddib/stablepay/pkg/db"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/token"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/sirupsen/logrus"
)

// ErrNoDatabase is returned by commands that need the local swap store when no
// database is configured.
var ErrNoDatabase = errors.New("database not configured (set database.host and database.name)")

// App holds what commands run against. Fields left nil are built on first use
// from Config, so a command only dials what it needs. Tests preset them.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Wallet  *wallet.Client
	Service *swap.Service
	Tokens  token.Client
	Store   *db.SwapStore

	loadOpts    config.LoadOptions
	jsonOutput  bool
	verbose     bool
	walletTried bool
}

func (a *App) wallet(ctx context.Context) (*wallet.Client, error) {
	if a.Wallet != nil || a.walletTried {
		return a.Wallet, nil
	}
	a.walletTried = true
	if !a.Config.HasRPC() {
		a.Log.WithField("network", a.Config.Network).Info("No rpc_url configured, running simulated")
		return nil, nil
	}
	w, err := wallet.NewClient(ctx, a.Log, a.Config.NetworkConfigs(), a.Config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", a.Config.Network, err)
	}
	a.Wallet = w
	return w, nil
}

func (a *App) service(ctx context.Context) (*swap.Service, error) {
	if a.Service != nil {
		return a.Service, nil
	}
	w, err := a.wallet(ctx)
	if err != nil {
		return nil, err
	}
	a.Service = swap.NewService(ctx, a.Log, swap.Config{
		Wallet:           w,
		Network:          a.Config.Network,
		FallbackNetwork:  a.Config.FallbackNetwork,
		ContractAddress:  a.Config.ContractAddress,
		OverrideAddress:  a.Config.OverrideAddress,
		TokenAddress:     a.Config.TokenAddress,
		GasProofFallback: a.Config.GasProofFallback,
		StrictPreflight:  a.Config.StrictPreflight,
	})
	return a.Service, nil
}

func (a *App) tokens(ctx context.Context) (token.Client, error) {
	if a.Tokens != nil {
		return a.Tokens, nil
	}
	w, err := a.wallet(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := token.New(token.Config{
		Wallet:       w,
		Network:      a.Config.Network,
		TokenAddress: a.Config.TokenAddress,
		Degrade:      a.Config.DegradeTokenFailures,
		Log:          a.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token configuration: %w", err)
	}
	a.Tokens = tokens
	return tokens, nil
}

func (a *App) store() (*db.SwapStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	if !a.Config.Database.Enabled() {
		return nil, ErrNoDatabase
	}
	gdb, err := db.SetupDatabase(a.Log, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.Store = db.NewSwapStore(a.Log, gdb, string(a.Config.Network))
	return a.Store, nil
}

// Close releases the service, network and database connections.
func (a *App) Close() {
	if a.Service != nil {
		a.Service.Close()
	}
	if a.Wallet != nil {
		a.Wallet.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.WithError(err).Warn("Failed to close database")
		}
	}
}
