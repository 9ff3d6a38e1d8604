package store

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rollupfed/indexer/internal/codec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpoint_DefaultsAndAdvances(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertRollup(1, "test-net"))

	last, err := s.LastIndexedBlock(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, last, "the -1 sentinel must surface as 0")

	require.NoError(t, s.SetLastIndexedBlock(1, 100))
	last, err = s.LastIndexedBlock(1)
	require.NoError(t, err)
	require.EqualValues(t, 100, last)
}

func TestUpsertRollup_DoesNotOverwrite(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertRollup(1, "first-name"))
	require.NoError(t, s.SetLastIndexedBlock(1, 50))
	require.NoError(t, s.UpsertRollup(1, "second-name"))

	last, err := s.LastIndexedBlock(1)
	require.NoError(t, err)
	require.EqualValues(t, 50, last, "re-registering a rollup must not reset its checkpoint")
}

func TestInsertBridgeEvent_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	e := &codec.BridgeEvent{
		LogMeta: codec.LogMeta{RollupID: 1, TxHash: common.HexToHash("0xaa"), LogIndex: 0},
		Amount:  big.NewInt(10),
	}
	e.ContentID = codec.ContentID(e.TxHash, e.LogIndex, e.RollupID)

	require.NoError(t, s.InsertBridgeEvent(e))
	require.NoError(t, s.InsertBridgeEvent(e), "replaying the same log must not error")

	rows, err := s.Rows("bridge_events", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1, "replay must not duplicate the row")
}

func TestAddressesAreStoredLowercase(t *testing.T) {
	s := newTestStore(t)
	mixedCase := common.HexToAddress("0xAbCdEf0123456789AbCdEf0123456789aBcDeF01")
	e := &codec.TransferEvent{
		LogMeta:      codec.LogMeta{RollupID: 1, TxHash: common.HexToHash("0xbb")},
		From:         mixedCase,
		To:           common.Address{},
		TokenAddress: mixedCase,
		Value:        big.NewInt(5),
	}
	e.ContentID = codec.ContentID(e.TxHash, e.LogIndex, e.RollupID)
	require.NoError(t, s.InsertWrappedTransfer(e))

	rows, err := s.Rows("wrapped_transfer_events", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	from, _ := rows[0]["from_address"].(string)
	require.Equal(t, strings.ToLower(from), from, "stored addresses must be lowercase")
}

func TestWrappedBalance_MintsMinusBurns(t *testing.T) {
	s := newTestStore(t)
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	holder := common.HexToAddress("0x4444444444444444444444444444444444444444")
	zero := common.Address{}

	mint := &codec.TransferEvent{
		LogMeta:      codec.LogMeta{RollupID: 1, TxHash: common.HexToHash("0x01"), LogIndex: 0},
		From:         zero,
		To:           holder,
		TokenAddress: token,
		Value:        big.NewInt(10),
	}
	mint.ContentID = codec.ContentID(mint.TxHash, mint.LogIndex, mint.RollupID)
	burn := &codec.TransferEvent{
		LogMeta:      codec.LogMeta{RollupID: 1, TxHash: common.HexToHash("0x02"), LogIndex: 0},
		From:         holder,
		To:           zero,
		TokenAddress: token,
		Value:        big.NewInt(3),
	}
	burn.ContentID = codec.ContentID(burn.TxHash, burn.LogIndex, burn.RollupID)

	require.NoError(t, s.InsertWrappedTransfer(mint))
	require.NoError(t, s.InsertWrappedTransfer(burn))

	balance, err := s.WrappedBalance(1, token.Hex())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(7), balance)
}

func TestFetchWrappedTokens(t *testing.T) {
	s := newTestStore(t)
	wrapped := common.HexToAddress("0x5555555555555555555555555555555555555555")
	ev := &codec.NewWrappedToken{
		LogMeta:             codec.LogMeta{RollupID: 2, TxHash: common.HexToHash("0x10")},
		OriginTokenAddress:  common.HexToAddress("0x6666666666666666666666666666666666666666"),
		WrappedTokenAddress: wrapped,
	}
	ev.ContentID = codec.ContentID(ev.TxHash, ev.LogIndex, ev.RollupID)
	require.NoError(t, s.InsertNewWrappedToken(ev))

	tokens, err := s.FetchWrappedTokens(2)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, wrapped, tokens[0])
}
