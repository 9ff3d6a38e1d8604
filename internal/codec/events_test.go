package codec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func packData(t *testing.T, typeNames []string, values ...interface{}) []byte {
	t.Helper()
	args := make(abi.Arguments, len(typeNames))
	for i, tn := range typeNames {
		typ, err := abi.NewType(tn, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: typ}
	}
	data, err := args.Pack(values...)
	require.NoError(t, err)
	return data
}

func TestDecodeBridgeLog_BridgeEvent(t *testing.T) {
	origin := common.HexToAddress("0x1111111111111111111111111111111111111111")
	dest := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data := packData(t, []string{"uint8", "uint32", "address", "uint32", "address", "uint256", "bytes", "uint32"},
		uint8(1), uint32(0), origin, uint32(1), dest, big.NewInt(1000), []byte("meta"), uint32(7))

	l := types.Log{
		Topics:      []common.Hash{bridgeEventTopic},
		Data:        data,
		TxHash:      common.HexToHash("0xaa"),
		BlockHash:   common.HexToHash("0xbb"),
		BlockNumber: 42,
		Index:       3,
	}

	decoded, err := DecodeBridgeLog(l, 1)
	require.NoError(t, err)
	require.Equal(t, KindBridgeEvent, decoded.Kind)
	require.Equal(t, uint32(7), decoded.Bridge.DepositCount)
	require.Equal(t, origin, decoded.Bridge.OriginAddress)
	require.Equal(t, big.NewInt(1000), decoded.Bridge.Amount)
	require.NotEmpty(t, decoded.Bridge.ContentID)
}

func TestDecodeBridgeLog_ClaimEventV2(t *testing.T) {
	origin := common.HexToAddress("0x1111111111111111111111111111111111111111")
	dest := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data := packData(t, []string{"uint256", "uint32", "address", "address", "uint256"},
		big.NewInt(99), uint32(2), origin, dest, big.NewInt(500))

	l := types.Log{
		Topics: []common.Hash{claimEventV2Topic},
		Data:   data,
		TxHash: common.HexToHash("0xcc"),
	}

	decoded, err := DecodeBridgeLog(l, 3)
	require.NoError(t, err)
	require.Equal(t, KindClaimEvent, decoded.Kind)
	require.EqualValues(t, 2, decoded.Claim.Version)
	require.Equal(t, big.NewInt(99), decoded.Claim.GlobalIndex)
}

func TestDecodeBridgeLog_IgnoredAdminEvent(t *testing.T) {
	l := types.Log{Topics: []common.Hash{upgradedTopic}, TxHash: common.HexToHash("0xdd")}
	decoded, err := DecodeBridgeLog(l, 1)
	require.NoError(t, err)
	require.Equal(t, KindIgnored, decoded.Kind)
}

func TestDecodeBridgeLog_UnknownTopic(t *testing.T) {
	l := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}
	_, err := DecodeBridgeLog(l, 1)
	require.ErrorIs(t, err, ErrUnknownLog)
}

func TestDecodeTransfer(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data := packData(t, []string{"uint256"}, big.NewInt(42))

	l := types.Log{
		Topics: []common.Hash{transferTopic, chainTopic(from), chainTopic(to)},
		Data:   data,
		TxHash: common.HexToHash("0xee"),
	}

	e, err := DecodeTransfer(l, 5)
	require.NoError(t, err)
	require.Equal(t, from, e.From)
	require.Equal(t, to, e.To)
	require.Equal(t, big.NewInt(42), e.Value)
}

func TestDecodeTransfer_WrongTopicCount(t *testing.T) {
	l := types.Log{Topics: []common.Hash{transferTopic}}
	_, err := DecodeTransfer(l, 1)
	require.Error(t, err)
}

func TestContentID_DeterministicAndDistinct(t *testing.T) {
	txA := common.HexToHash("0x01")
	txB := common.HexToHash("0x02")

	id1 := ContentID(txA, 0, 1)
	id2 := ContentID(txA, 0, 1)
	require.Equal(t, id1, id2, "content id must be deterministic for identical inputs")

	require.NotEqual(t, id1, ContentID(txA, 1, 1), "log index must affect content id")
	require.NotEqual(t, id1, ContentID(txB, 0, 1), "tx hash must affect content id")
	require.NotEqual(t, id1, ContentID(txA, 0, 2), "rollup id must affect content id")
}

func chainTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}
