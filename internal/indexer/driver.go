// Package indexer implements the per-rollup driver loop from §4.5: read
// checkpoint, compute window, pull logs in three passes, decode, persist,
// advance checkpoint, sleep when caught up.
package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/common"
	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/rollupfed/indexer/internal/chain"
	"github.com/rollupfed/indexer/internal/codec"
	"github.com/rollupfed/indexer/internal/discovery"
	"github.com/rollupfed/indexer/internal/metrics"
	"github.com/rollupfed/indexer/internal/store"
	"github.com/rollupfed/indexer/internal/workererr"
)

var zeroAddress common.Address // the zero-value Address is the mint/burn sentinel (§6)

const caughtUpSleep = 5 * time.Second

// recentIDCacheSize bounds the per-worker LRU of just-inserted content
// ids, keyed per destination table; it only spares the Store a repeat
// insert of a log this Driver already persisted into the same table (e.g.
// one returned by both the out- and in-flow filters). The cache starts
// empty in every new Driver, so it does not carry across restarts, and it
// is never the correctness boundary (the Store's INSERT OR IGNORE is).
const recentIDCacheSize = 4096

// Driver owns a rollup's mutable indexing state: its in-memory
// wrapped-token set and its chain/store handles. The Supervisor runs one
// Driver per discovered rollup; HTTP holds only the corresponding Handle
// (design notes §9).
type Driver struct {
	rollupID       uint32
	network        string
	bridgeAddress  common.Address
	blockIncrement uint64

	chain *chain.Client
	store *store.Store

	wrappedTokens map[common.Address]struct{}
	recentIDs     *lru.Cache[string, struct{}]

	running *atomic.Bool
	log     gethlog.Logger

	rollupIDLabel string
}

// blockIncrement implements the per-rollup RPC-endpoint tolerance from
// §4.5: rollups 3 and 15 use a narrower window, everything else 10,000.
func blockIncrement(rollupID uint32) uint64 {
	switch rollupID {
	case 3, 15:
		return 1000
	default:
		return 10000
	}
}

// New constructs the Driver/Handle pair for a discovered rollup, rebuilding
// the in-memory wrapped-token set from the Store (§3 Ownership).
func New(r discovery.Rollup, st *store.Store) (*Driver, *Handle, error) {
	c, err := chain.Dial(r.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rollup %d (%s): %w", r.ID, r.Name, err)
	}

	tokens, err := st.FetchWrappedTokens(r.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch_wrapped_tokens(%d): %w", r.ID, err)
	}
	tokenSet := make(map[common.Address]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	cache, err := lru.New[string, struct{}](recentIDCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("new lru cache: %w", err)
	}

	running := &atomic.Bool{}
	running.Store(true)

	d := &Driver{
		rollupID:       r.ID,
		network:        r.Name,
		bridgeAddress:  r.BridgeAddress,
		blockIncrement: blockIncrement(r.ID),
		chain:          c,
		store:          st,
		wrappedTokens:  tokenSet,
		recentIDs:      cache,
		running:        running,
		log:            gethlog.New("rollup", r.ID, "network", r.Name),
		rollupIDLabel:  fmt.Sprintf("%d", r.ID),
	}
	h := &Handle{
		RollupID: r.ID,
		Network:  r.Name,
		store:    st,
		chain:    c,
		running:  running,
	}
	return d, h, nil
}

// Run is the main loop described in §4.5. It returns a workererr.Fatal
// when a Chain Client transport error, an unrecognised bridge log, or a
// Store write fails; it returns nil when the running flag is cleared by
// Shutdown, or when ctx is cancelled while it waits for new blocks.
func (d *Driver) Run(ctx context.Context) error {
	last, err := d.store.LastIndexedBlock(d.rollupID)
	if err != nil {
		return workererr.NewStoreWrite(err)
	}
	head, err := d.chain.Head(ctx)
	if err != nil {
		return err
	}

	for {
		if !d.running.Load() {
			d.log.Info("shutdown signal received, exiting")
			return nil
		}

		if last >= head {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(caughtUpSleep):
			}
			head, err = d.chain.Head(ctx)
			if err != nil {
				return err
			}
			continue
		}

		start := last + 1
		end := start + d.blockIncrement
		if end > head {
			end = head
		}

		if err := d.indexWindow(ctx, start, end); err != nil {
			return err
		}

		head, err = d.chain.Head(ctx)
		if err != nil {
			return err
		}
		last = end

		pct := float64(end) / float64(head) * 100
		d.log.Info("indexed window", "pct", fmt.Sprintf("%.2f", pct), "end", end, "head", head)

		if err := d.store.SetLastIndexedBlock(d.rollupID, end); err != nil {
			return workererr.NewStoreWrite(err)
		}

		metrics.WindowsProcessed.WithLabelValues(d.rollupIDLabel, d.network).Inc()
		lag := uint64(0)
		if head > end {
			lag = head - end
		}
		metrics.SyncLag.WithLabelValues(d.rollupIDLabel, d.network).Set(float64(lag))
	}
}

// indexWindow runs the three passes over [start, end] in the order §4.5
// requires: bridge-contract events, then wrapped-token mints/burns, then
// bridge in/out flows across all contracts.
func (d *Driver) indexWindow(ctx context.Context, start, end uint64) error {
	if err := d.passBridgeEvents(ctx, start, end); err != nil {
		return err
	}
	if len(d.wrappedTokens) > 0 {
		if err := d.passWrappedTransfers(ctx, start, end); err != nil {
			return err
		}
	}
	return d.passBridgeTransfers(ctx, start, end)
}

func (d *Driver) passBridgeEvents(ctx context.Context, start, end uint64) error {
	logs, err := d.chain.Logs(ctx, start, end, []common.Address{d.bridgeAddress}, nil)
	if err != nil {
		return err
	}
	for _, l := range logs {
		decoded, err := codec.DecodeBridgeLog(l, d.rollupID)
		if err != nil {
			return workererr.NewDecodeUnknown(l.TxHash.Hex(), err)
		}
		if err := d.persistDecoded(decoded); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) persistDecoded(decoded codec.Decoded) error {
	switch decoded.Kind {
	case codec.KindBridgeEvent:
		return d.dedupInsert(decoded.Bridge.ContentID, func() error {
			return d.store.InsertBridgeEvent(decoded.Bridge)
		})
	case codec.KindClaimEvent:
		return d.dedupInsert(decoded.Claim.ContentID, func() error {
			return d.store.InsertClaimEvent(decoded.Claim)
		})
	case codec.KindNewWrappedToken:
		if err := d.dedupInsert(decoded.Wrapped.ContentID, func() error {
			return d.store.InsertNewWrappedToken(decoded.Wrapped)
		}); err != nil {
			return err
		}
		// Grow the live set immediately so this window's Pass 2 already
		// scans the newly discovered token, rather than deferring to the
		// next window (design notes §9).
		d.wrappedTokens[decoded.Wrapped.WrappedTokenAddress] = struct{}{}
		return nil
	case codec.KindIgnored:
		d.log.Debug("ignored administrative log")
		return nil
	default:
		return workererr.NewDecodeUnknown("", codec.ErrUnknownLog)
	}
}

func (d *Driver) dedupInsert(contentID string, insert func() error) error {
	if _, ok := d.recentIDs.Get(contentID); ok {
		return nil
	}
	if err := insert(); err != nil {
		return err
	}
	d.recentIDs.Add(contentID, struct{}{})
	return nil
}

func (d *Driver) passWrappedTransfers(ctx context.Context, start, end uint64) error {
	addrs := make([]common.Address, 0, len(d.wrappedTokens))
	for a := range d.wrappedTokens {
		addrs = append(addrs, a)
	}
	zeroTopic := chain.ToTopic(zeroAddress)

	mints, err := d.chain.Logs(ctx, start, end, addrs, mintFilter(zeroTopic))
	if err != nil {
		return err
	}
	burns, err := d.chain.Logs(ctx, start, end, addrs, burnFilter(zeroTopic))
	if err != nil {
		return err
	}

	for _, l := range append(mints, burns...) {
		e, err := codec.DecodeTransfer(l, d.rollupID)
		if err != nil {
			d.log.Warn("skipping malformed wrapped transfer log", "tx", l.TxHash.Hex(), "err", err)
			continue
		}
		if err := d.dedupInsert("wrapped_transfer_events/"+e.ContentID, func() error {
			return d.store.InsertWrappedTransfer(&e)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) passBridgeTransfers(ctx context.Context, start, end uint64) error {
	bridgeTopic := chain.ToTopic(d.bridgeAddress)

	out, err := d.chain.Logs(ctx, start, end, nil, outFilter(bridgeTopic))
	if err != nil {
		return err
	}
	in, err := d.chain.Logs(ctx, start, end, nil, inFilter(bridgeTopic))
	if err != nil {
		return err
	}

	// Decode errors on this pass are logged and skipped, not fatal (§4.5,
	// §7): malformed Transfer logs have been seen in the wild here.
	for _, l := range append(out, in...) {
		e, err := codec.DecodeTransfer(l, d.rollupID)
		if err != nil {
			d.log.Warn("skipping malformed bridge transfer log", "tx", l.TxHash.Hex(), "err", err)
			continue
		}
		if err := d.dedupInsert("bridge_transfer_events/"+e.ContentID, func() error {
			return d.store.InsertBridgeTransfer(&e)
		}); err != nil {
			return err
		}
	}
	return nil
}

var transferSig = codec.TransferTopic()

func mintFilter(zeroTopic common.Hash) [][]common.Hash {
	return [][]common.Hash{{transferSig}, {zeroTopic}}
}

func burnFilter(zeroTopic common.Hash) [][]common.Hash {
	return [][]common.Hash{{transferSig}, {}, {zeroTopic}}
}

func outFilter(bridgeTopic common.Hash) [][]common.Hash {
	return [][]common.Hash{{transferSig}, {bridgeTopic}}
}

func inFilter(bridgeTopic common.Hash) [][]common.Hash {
	return [][]common.Hash{{transferSig}, {}, {bridgeTopic}}
}
