package indexer

import (
	"context"
	"sync/atomic"

	"github.com/rollupfed/indexer/internal/chain"
	"github.com/rollupfed/indexer/internal/store"
)

// Handle is the lightweight, cloneable view of a worker that the HTTP
// surface holds: a shutdown switch and enough to compute sync lag, without
// sharing the Driver's mutable wrapped-token set (design notes §9 — the
// handle/driver split replacing the source's clone-the-whole-worker
// pattern).
type Handle struct {
	RollupID uint32
	Network  string

	store   *store.Store
	chain   *chain.Client
	running *atomic.Bool
}

// SyncLag returns head(rollup) - last_indexed_block(rollup) at the instant
// of the call (§4.7 GET /sync/{id}, invariant 5).
func (h *Handle) SyncLag(ctx context.Context) (uint64, error) {
	head, err := h.chain.Head(ctx)
	if err != nil {
		return 0, err
	}
	last, err := h.store.LastIndexedBlock(h.RollupID)
	if err != nil {
		return 0, err
	}
	if last > head {
		return 0, nil
	}
	return head - last, nil
}

// Shutdown flips the running flag the Driver polls at the top of every
// window (§4.6, §5 Cancellation). In-flight RPC calls are not interrupted.
func (h *Handle) Shutdown() {
	h.running.Store(false)
}
