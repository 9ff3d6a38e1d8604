// Package discovery implements §4.4: enumerating the rollups registered
// with the L1 rollup manager, plus the L1 itself as rollup 0.
package discovery

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rollupfed/indexer/internal/chain"
)

// L1BridgeAddress is the hard-coded L1 bridge address carried forward from
// the original implementation (§6); the spec's open questions leave this
// unparameterized per deployment.
var L1BridgeAddress = common.HexToAddress("0x2a3dd3eb832af982ec71669e178424b10dca2ede")

// Rollup is a discovered chain to index: the L1 itself (id 0) or a rollup
// registered with the manager contract.
type Rollup struct {
	ID            uint32
	Name          string
	RPCURL        string
	BridgeAddress common.Address
}

// Discover reads rollup_count from the manager contract and resolves every
// rollup id in the inclusive range [0, rollup_count] (§4.4's open
// question: rollup_count is itself a valid, already-registered id).
// rollup_id 0 is always the L1, using l1RPCURL directly and the hard-coded
// L1 bridge address; every other id is resolved through the manager and
// then the rollup's own base contract.
func Discover(ctx context.Context, l1 *chain.Client, managerAddr common.Address, l1RPCURL string) ([]Rollup, error) {
	var count uint32
	if err := l1.Call(ctx, managerAddr, chain.MethodRollupCount, nil, []interface{}{&count}); err != nil {
		return nil, fmt.Errorf("rollupCount: %w", err)
	}

	rollups := make([]Rollup, 0, count+1)
	rollups = append(rollups, Rollup{
		ID:            0,
		Name:          "l1",
		RPCURL:        l1RPCURL,
		BridgeAddress: L1BridgeAddress,
	})

	for id := uint32(1); id <= count; id++ {
		var baseContract common.Address
		if err := l1.Call(ctx, managerAddr, chain.MethodRollupIDToRollupData, []interface{}{id}, []interface{}{&baseContract}); err != nil {
			return nil, fmt.Errorf("rollupIDToRollupData(%d): %w", id, err)
		}

		var trustedSeqURL string
		if err := l1.Call(ctx, baseContract, chain.MethodTrustedSequencerURL, nil, []interface{}{&trustedSeqURL}); err != nil {
			return nil, fmt.Errorf("trustedSequencerURL(rollup %d): %w", id, err)
		}
		var name string
		if err := l1.Call(ctx, baseContract, chain.MethodNetworkName, nil, []interface{}{&name}); err != nil {
			return nil, fmt.Errorf("networkName(rollup %d): %w", id, err)
		}
		var bridgeAddr common.Address
		if err := l1.Call(ctx, baseContract, chain.MethodBridgeAddress, nil, []interface{}{&bridgeAddr}); err != nil {
			return nil, fmt.Errorf("bridgeAddress(rollup %d): %w", id, err)
		}

		rollups = append(rollups, Rollup{
			ID:            id,
			Name:          name,
			RPCURL:        trustedSeqURL,
			BridgeAddress: bridgeAddr,
		})
	}

	return rollups, nil
}
