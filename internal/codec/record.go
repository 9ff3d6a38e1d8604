// Package codec decodes raw chain logs into the typed records persisted
// by the Store, and computes the content-derived identifier that makes
// persistence idempotent under replay.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// ContentID implements the invariant from §3: SHA-256(tx_hash || log_index ||
// rollup_id), lowercase hex. Stable across restarts and replays so that
// INSERT OR IGNORE makes persistence idempotent.
func ContentID(txHash common.Hash, logIndex uint, rollupID uint32) string {
	h := sha256.New()
	h.Write([]byte(txHash.Hex()))
	h.Write([]byte(strconv.FormatUint(uint64(logIndex), 10)))
	h.Write([]byte(strconv.FormatUint(uint64(rollupID), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// LogMeta carries the per-log identifying fields every record shares,
// independent of which event it decodes into.
type LogMeta struct {
	RollupID    uint32
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
}

func metaFrom(rollupID uint32, txHash, blockHash common.Hash, blockNumber uint64, txIndex, logIndex uint) LogMeta {
	return LogMeta{
		RollupID:    rollupID,
		TxHash:      txHash,
		BlockHash:   blockHash,
		BlockNumber: blockNumber,
		TxIndex:     txIndex,
		LogIndex:    logIndex,
	}
}

// BridgeEvent is a cross-chain deposit emission from the bridge contract.
type BridgeEvent struct {
	LogMeta
	ContentID          string
	LeafType           uint8
	OriginNetwork      uint32
	OriginAddress      common.Address
	DestinationNetwork uint32
	DestinationAddress common.Address
	Amount             *big.Int
	Metadata           []byte
	DepositCount       uint32
}

// ClaimEvent is a claim of a previously bridged asset. Version 1 carries a
// narrower `index` field that the codec widens into GlobalIndex.
type ClaimEvent struct {
	LogMeta
	ContentID          string
	Version            uint8
	GlobalIndex        *big.Int
	OriginNetwork      uint32
	OriginAddress      common.Address
	DestinationAddress common.Address
	Amount             *big.Int
}

// NewWrappedToken records the deployment of a wrapped ERC-20 representing
// an asset bridged from another network.
type NewWrappedToken struct {
	LogMeta
	ContentID           string
	OriginNetwork       uint32
	OriginTokenAddress  common.Address
	WrappedTokenAddress common.Address
	Metadata            []byte
}

// TransferEvent is a plain ERC-20 Transfer, recorded either as a
// wrapped-token mint/burn or as a bridge-contract in/out flow depending on
// which pass decoded it.
type TransferEvent struct {
	LogMeta
	ContentID    string
	From         common.Address
	To           common.Address
	TokenAddress common.Address
	Value        *big.Int
}
