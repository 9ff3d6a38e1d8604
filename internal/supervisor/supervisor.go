// Package supervisor owns process-level wiring: discover rollups, open
// the store, spawn one Driver goroutine per rollup, mount the HTTP
// surface once every worker is running, and propagate a worker's fatal
// error into a non-zero process exit (§4.6).
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/rollupfed/indexer/internal/chain"
	"github.com/rollupfed/indexer/internal/discovery"
	"github.com/rollupfed/indexer/internal/httpapi"
	"github.com/rollupfed/indexer/internal/indexer"
	"github.com/rollupfed/indexer/internal/store"
)

// Config collects the CLI-derived settings the supervisor needs to start
// (§5 configuration).
type Config struct {
	L1RPCURL          string
	RollupManagerAddr common.Address
	HTTPAddr          string
	DBPath            string
	InMemory          bool
}

// Run discovers rollups, starts one Driver per rollup, serves HTTP until
// an interrupt or a worker's fatal error, then shuts every worker down.
// The returned error is non-nil when startup (dial, store, discovery,
// driver construction) fails or when a worker returns an error before a
// clean interrupt (§4.6, §6 exit codes).
func Run(ctx context.Context, cfg Config) error {
	log := gethlog.New("component", "supervisor")

	l1, err := chain.Dial(cfg.L1RPCURL)
	if err != nil {
		return fmt.Errorf("dial l1: %w", err)
	}

	st, err := store.Open(cfg.DBPath, cfg.InMemory)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rollups, err := discovery.Discover(ctx, l1, cfg.RollupManagerAddr, cfg.L1RPCURL)
	if err != nil {
		return fmt.Errorf("discover rollups: %w", err)
	}
	log.Info("discovered rollups", "count", len(rollups))

	for _, r := range rollups {
		if err := st.UpsertRollup(r.ID, r.Name); err != nil {
			return fmt.Errorf("register rollup %d: %w", r.ID, err)
		}
	}

	handles := make([]*indexer.Handle, 0, len(rollups))
	drivers := make([]*indexer.Driver, 0, len(rollups))
	for _, r := range rollups {
		d, h, err := indexer.New(r, st)
		if err != nil {
			return fmt.Errorf("build driver for rollup %d: %w", r.ID, err)
		}
		drivers = append(drivers, d)
		handles = append(handles, h)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(drivers))
	var wg sync.WaitGroup
	for _, d := range drivers {
		wg.Add(1)
		go func(d *indexer.Driver) {
			defer wg.Done()
			errCh <- d.Run(runCtx)
		}(d)
	}

	api := httpapi.New(st, handles)
	srv := api.Server(cfg.HTTPAddr)
	go func() {
		log.Info("http surface listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil {
			log.Debug("http server stopped", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var workerErr error
	remaining := len(drivers)
	done := false
	for !done && remaining > 0 {
		select {
		case <-sigCh:
			log.Info("interrupt received, shutting down workers")
			for _, h := range handles {
				h.Shutdown()
			}
			done = true
		case err := <-errCh:
			remaining--
			if err != nil {
				log.Error("worker exited with error", "err", err)
				workerErr = err
				for _, h := range handles {
					h.Shutdown()
				}
				done = true
			}
		}
	}

	cancel()
	_ = srv.Close()
	wg.Wait()

	return workerErr
}
