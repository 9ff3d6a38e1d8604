package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMustMethod_PacksDeclaredInputs(t *testing.T) {
	// rollupIDToRollupData takes a uint32 rollup id; packing must round-trip
	// through the method's own Inputs definition without error.
	packed, err := MethodRollupIDToRollupData.Inputs.Pack(uint32(7))
	require.NoError(t, err)
	require.Len(t, packed, 32, "a single uint32 argument packs to one 32-byte word")
}

func TestMustMethod_NoInputMethodsPackEmpty(t *testing.T) {
	packed, err := MethodRollupCount.Inputs.Pack()
	require.NoError(t, err)
	require.Empty(t, packed)
}

func TestMethodSelectors_AreDistinct(t *testing.T) {
	ids := map[string]bool{}
	for _, m := range []struct {
		name string
		id   string
	}{
		{"rollupCount", string(MethodRollupCount.ID)},
		{"rollupIDToRollupData", string(MethodRollupIDToRollupData.ID)},
		{"trustedSequencerURL", string(MethodTrustedSequencerURL.ID)},
		{"networkName", string(MethodNetworkName.ID)},
		{"bridgeAddress", string(MethodBridgeAddress.ID)},
	} {
		require.False(t, ids[m.id], "selector collision for %s", m.name)
		ids[m.id] = true
	}
}
