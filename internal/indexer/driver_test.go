package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBlockIncrement_NarrowForKnownRollups(t *testing.T) {
	require.EqualValues(t, 1000, blockIncrement(3))
	require.EqualValues(t, 1000, blockIncrement(15))
	require.EqualValues(t, 10000, blockIncrement(1))
	require.EqualValues(t, 10000, blockIncrement(0))
}

func TestMintBurnFilters_ConstrainOppositeTopicSlots(t *testing.T) {
	zero := common.Hash{}

	mint := mintFilter(zero)
	require.Len(t, mint, 2, "mint filter constrains topic0 and topic1 (from) only")
	require.Equal(t, []common.Hash{zero}, mint[1])

	burn := burnFilter(zero)
	require.Len(t, burn, 3, "burn filter leaves topic1 (from) unconstrained, constrains topic2 (to)")
	require.Empty(t, burn[1])
	require.Equal(t, []common.Hash{zero}, burn[2])
}

func TestBridgeFlowFilters_ConstrainOppositeTopicSlots(t *testing.T) {
	bridge := common.HexToHash("0xabcdef")

	out := outFilter(bridge)
	require.Equal(t, []common.Hash{bridge}, out[1])

	in := inFilter(bridge)
	require.Empty(t, in[1])
	require.Equal(t, []common.Hash{bridge}, in[2])
}
