package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lisanmuaddib/stablepay/pkg/db"
	"github.com/lisanmuaddib/stablepay/pkg/scheduler"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seenTTL bounds how long a delivered record is remembered for de-duplication
// between the event stream and the periodic poll.
const seenTTL = time.Hour

func newWatchCmd(app *App) *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow swap events and store them",
		Long: `Follow SwapExecuted events from the contract and print each swap once.
Recent swaps are also polled every refresh_interval, which reconnects a dropped
contract and backfills anything the event stream missed. When a database is
configured every record is saved to it. Send SIGHUP to poll immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := app.service(ctx)
			if err != nil {
				return err
			}

			var store *db.SwapStore
			if !noStore {
				store, err = app.store()
				if err != nil && !errors.Is(err, ErrNoDatabase) {
					return err
				}
			}

			w := newWatcher(app.Log, svc, store, cmd.OutOrStdout(), app.jsonOutput)
			return w.run(ctx, app.Config.RefreshInterval)
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not save records to the database")
	return cmd
}

// watcher prints each swap record once, whether it arrives as an event or from
// polling, and saves it when a store is set.
type watcher struct {
	log        *logrus.Logger
	svc        *swap.Service
	store      *db.SwapStore
	out        io.Writer
	jsonOutput bool

	seen *cache.Cache

	mu       sync.Mutex
	ctx      context.Context
	attached *swap.Subscriber
}

func newWatcher(log *logrus.Logger, svc *swap.Service, store *db.SwapStore, out io.Writer, jsonOutput bool) *watcher {
	return &watcher{
		log:        log,
		svc:        svc,
		store:      store,
		out:        out,
		jsonOutput: jsonOutput,
		seen:       cache.New(seenTTL, 2*seenTTL),
		ctx:        context.Background(),
	}
}

func (w *watcher) run(ctx context.Context, interval time.Duration) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	if err := w.attach(ctx); err != nil {
		w.log.WithError(err).Warn("Swap events unavailable, relying on polling")
	}

	task, err := scheduler.NewPeriodicTask(w.log, "refresh-swaps", interval, w.refresh)
	if err != nil {
		return err
	}
	// backfill right away instead of after the first interval
	task.Trigger()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if !task.Trigger() {
					w.log.Debug("Refresh already requested recently")
				}
			}
		}
	}()

	err = scheduler.NewRunner(w.log).Run(ctx, task)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// attach registers on the service's current subscriber. A reconnect replaces the
// subscriber, so this is called again after every successful reconnect.
func (w *watcher) attach(ctx context.Context) error {
	sub := w.svc.Subscriber()

	w.mu.Lock()
	already := w.attached == sub
	w.mu.Unlock()
	if already {
		return nil
	}

	id := sub.Subscribe(w.onEvent)
	if err := sub.Start(ctx); err != nil {
		sub.Unsubscribe(id)
		return err
	}

	w.mu.Lock()
	w.attached = sub
	w.mu.Unlock()
	return nil
}

func (w *watcher) onEvent(r swap.SwapRecord) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	w.record(ctx, r, "event")
}

// refresh reconnects when needed and backfills recent swaps.
func (w *watcher) refresh(ctx context.Context) error {
	if !w.svc.Status().IsConnected && w.svc.Reconnect(ctx) {
		w.mu.Lock()
		w.attached = nil
		w.mu.Unlock()
		if err := w.attach(ctx); err != nil {
			w.log.WithError(err).Warn("Failed to watch swap events after reconnect")
		}
	}
	if resumed, err := w.svc.ResumeEvents(ctx); err != nil {
		w.log.WithError(err).Warn("Failed to resume swap events")
	} else if resumed {
		w.log.Info("Resumed swap events")
	}

	history, err := w.svc.History().RecentSwaps(ctx)
	if err != nil {
		return err
	}
	if history.Simulated {
		w.log.Debug("Contract not readable, skipping placeholder records")
		return nil
	}
	for _, r := range history.Records {
		w.record(ctx, r, "poll")
	}
	return nil
}

// record delivers r unless it was already delivered.
func (w *watcher) record(ctx context.Context, r swap.SwapRecord, source string) bool {
	key := strings.ToLower(r.TransactionHash + "/" + r.User)
	if err := w.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return false
	}

	if w.store != nil {
		saved, err := w.store.Save(ctx, r)
		if err != nil {
			w.seen.Delete(key)
			w.log.WithFields(logrus.Fields{
				"tx_hash": r.TransactionHash,
				"error":   err,
			}).Error("Failed to save swap record")
			return false
		}
		if !saved {
			return false
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.jsonOutput {
		line, err := json.Marshal(r)
		if err == nil {
			fmt.Fprintln(w.out, string(line))
		}
		return true
	}
	fmt.Fprintf(w.out, "[%s] %s swapped %s %s -> %s %s (tax %s) tx %s\n",
		source,
		r.User,
		formatAmountString(r.FromAmount), r.FromCurrency,
		formatAmountString(r.ToAmount), r.ToCurrency,
		formatAmountString(r.TaxAmount),
		r.TransactionHash,
	)
	return true
}
