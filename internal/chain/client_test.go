package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestToTopic_LeftPadsAddress(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	topic := ToTopic(addr)
	require.Equal(t, addr.Bytes(), topic.Bytes()[12:])
	for _, b := range topic.Bytes()[:12] {
		require.Zero(t, b, "leading 12 bytes of an address-derived topic must be zero")
	}
}

func TestIsRateLimited(t *testing.T) {
	require.True(t, isRateLimited(errors.New("429 Too Many Requests")))
	require.True(t, isRateLimited(errors.New("upstream: rate limit exceeded")))
	require.False(t, isRateLimited(errors.New("execution reverted")))
	require.False(t, isRateLimited(nil))
}

func TestAssignOutputs_WritesThroughCallerPointers(t *testing.T) {
	var count uint32
	var addr common.Address
	var name string

	wantAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	vals := []interface{}{uint32(7), wantAddr, "zkevm-a"}
	out := []interface{}{&count, &addr, &name}

	require.NoError(t, assignOutputs("test", vals, out))
	require.EqualValues(t, 7, count, "out[0] must receive the decoded value, not a fresh copy")
	require.Equal(t, wantAddr, addr)
	require.Equal(t, "zkevm-a", name)
}

func TestAssignOutputs_RejectsNonPointerDestination(t *testing.T) {
	var count uint32
	err := assignOutputs("test", []interface{}{uint32(1)}, []interface{}{count})
	require.Error(t, err)
}

func TestAssignOutputs_RejectsTooFewReturnValues(t *testing.T) {
	var count uint32
	err := assignOutputs("test", []interface{}{}, []interface{}{&count})
	require.Error(t, err)
}
