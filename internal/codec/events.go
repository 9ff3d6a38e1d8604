package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind tags the outcome of decoding a bridge-contract log, modelling the
// "try decode v1; else v2; else ..." chain from §4.3 as an explicit
// enumeration rather than nested type-assertion chains.
type Kind int

const (
	KindUnknown Kind = iota
	KindBridgeEvent
	KindClaimEvent
	KindNewWrappedToken
	KindIgnored
)

// Decoded is the tagged result of DecodeBridgeLog. For KindBridgeEvent,
// KindClaimEvent and KindNewWrappedToken exactly the matching pointer field
// is set; a KindIgnored result carries none.
type Decoded struct {
	Kind    Kind
	Bridge  *BridgeEvent
	Claim   *ClaimEvent
	Wrapped *NewWrappedToken
}

var ErrUnknownLog = errors.New("log could not be decoded by any known bridge event shape")

func mustArgs(indexed []bool, types_ ...string) abi.Arguments {
	args := make(abi.Arguments, len(types_))
	for i, t := range types_ {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: typ, Indexed: indexed != nil && indexed[i]}
	}
	return args
}

func topic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

var (
	bridgeEventTopic  = topic("BridgeEvent(uint8,uint32,address,uint32,address,uint256,bytes,uint32)")
	claimEventV1Topic = topic("ClaimEvent(uint32,uint32,address,address,uint256)")
	claimEventV2Topic = topic("ClaimEvent(uint256,uint32,address,address,uint256)")
	newWrappedTopic   = topic("NewWrappedToken(uint32,address,address,bytes)")

	emergencyActivatedTopic   = topic("EmergencyStateActivated()")
	emergencyDeactivatedTopic = topic("EmergencyStateDeactivated()")
	upgradedTopic             = topic("Upgraded(address)")
	initializedTopic          = topic("Initialized(uint8)")
	adminChangedTopic         = topic("AdminChanged(address,address)")

	transferTopic = topic("Transfer(address,address,uint256)")

	bridgeEventArgs  = mustArgs(nil, "uint8", "uint32", "address", "uint32", "address", "uint256", "bytes", "uint32")
	claimEventV1Args = mustArgs(nil, "uint32", "uint32", "address", "address", "uint256")
	claimEventV2Args = mustArgs(nil, "uint256", "uint32", "address", "address", "uint256")
	newWrappedArgs   = mustArgs(nil, "uint32", "address", "address", "bytes")
	transferDataArgs = mustArgs(nil, "uint256")
)

// TransferTopic exposes the ERC-20 Transfer event signature hash so
// callers building eth_getLogs topic filters (mint/burn/bridge-flow
// passes) don't re-derive it.
func TransferTopic() common.Hash {
	return transferTopic
}

// DecodeBridgeLog implements the §4.3 decoder chain for logs emitted by a
// rollup's bridge contract: BridgeEvent, ClaimEvent v1, ClaimEvent v2,
// NewWrappedToken, then the administrative events that are recognised but
// never persisted, in that order. An unrecognised topic0 is fatal for the
// caller (schema drift) and reported via ErrUnknownLog.
func DecodeBridgeLog(log types.Log, rollupID uint32) (Decoded, error) {
	if len(log.Topics) == 0 {
		return Decoded{}, fmt.Errorf("%w: log has no topics", ErrUnknownLog)
	}
	meta := metaFrom(rollupID, log.TxHash, log.BlockHash, log.BlockNumber, log.TxIndex, log.Index)

	switch log.Topics[0] {
	case bridgeEventTopic:
		vals, err := bridgeEventArgs.Unpack(log.Data)
		if err != nil {
			return Decoded{}, fmt.Errorf("decode BridgeEvent: %w", err)
		}
		e := &BridgeEvent{
			LogMeta:            meta,
			LeafType:           vals[0].(uint8),
			OriginNetwork:      vals[1].(uint32),
			OriginAddress:      vals[2].(common.Address),
			DestinationNetwork: vals[3].(uint32),
			DestinationAddress: vals[4].(common.Address),
			Amount:             vals[5].(*big.Int),
			Metadata:           vals[6].([]byte),
			DepositCount:       vals[7].(uint32),
		}
		e.ContentID = ContentID(log.TxHash, log.Index, rollupID)
		return Decoded{Kind: KindBridgeEvent, Bridge: e}, nil

	case claimEventV1Topic:
		vals, err := claimEventV1Args.Unpack(log.Data)
		if err != nil {
			return Decoded{}, fmt.Errorf("decode ClaimEvent v1: %w", err)
		}
		index := vals[0].(uint32)
		e := &ClaimEvent{
			LogMeta:            meta,
			Version:            1,
			GlobalIndex:        new(big.Int).SetUint64(uint64(index)),
			OriginNetwork:      vals[1].(uint32),
			OriginAddress:      vals[2].(common.Address),
			DestinationAddress: vals[3].(common.Address),
			Amount:             vals[4].(*big.Int),
		}
		e.ContentID = ContentID(log.TxHash, log.Index, rollupID)
		return Decoded{Kind: KindClaimEvent, Claim: e}, nil

	case claimEventV2Topic:
		vals, err := claimEventV2Args.Unpack(log.Data)
		if err != nil {
			return Decoded{}, fmt.Errorf("decode ClaimEvent v2: %w", err)
		}
		e := &ClaimEvent{
			LogMeta:            meta,
			Version:            2,
			GlobalIndex:        vals[0].(*big.Int),
			OriginNetwork:      vals[1].(uint32),
			OriginAddress:      vals[2].(common.Address),
			DestinationAddress: vals[3].(common.Address),
			Amount:             vals[4].(*big.Int),
		}
		e.ContentID = ContentID(log.TxHash, log.Index, rollupID)
		return Decoded{Kind: KindClaimEvent, Claim: e}, nil

	case newWrappedTopic:
		vals, err := newWrappedArgs.Unpack(log.Data)
		if err != nil {
			return Decoded{}, fmt.Errorf("decode NewWrappedToken: %w", err)
		}
		e := &NewWrappedToken{
			LogMeta:             meta,
			OriginNetwork:       vals[0].(uint32),
			OriginTokenAddress:  vals[1].(common.Address),
			WrappedTokenAddress: vals[2].(common.Address),
			Metadata:            vals[3].([]byte),
		}
		e.ContentID = ContentID(log.TxHash, log.Index, rollupID)
		return Decoded{Kind: KindNewWrappedToken, Wrapped: e}, nil

	case emergencyActivatedTopic, emergencyDeactivatedTopic, upgradedTopic, initializedTopic, adminChangedTopic:
		return Decoded{Kind: KindIgnored}, nil

	default:
		return Decoded{}, fmt.Errorf("%w: topic0 %s", ErrUnknownLog, log.Topics[0])
	}
}

// DecodeTransfer decodes the single ERC-20 Transfer(address,address,uint256)
// shape shared by wrapped tokens and arbitrary bridge-counterparty tokens.
// Transfers are decoded separately from DecodeBridgeLog because they
// originate from many token contracts rather than the bridge address.
func DecodeTransfer(log types.Log, rollupID uint32) (TransferEvent, error) {
	if len(log.Topics) != 3 || log.Topics[0] != transferTopic {
		return TransferEvent{}, fmt.Errorf("not a Transfer log: topics=%d", len(log.Topics))
	}
	vals, err := transferDataArgs.Unpack(log.Data)
	if err != nil {
		return TransferEvent{}, fmt.Errorf("decode Transfer value: %w", err)
	}
	meta := metaFrom(rollupID, log.TxHash, log.BlockHash, log.BlockNumber, log.TxIndex, log.Index)
	e := TransferEvent{
		LogMeta:      meta,
		From:         common.BytesToAddress(log.Topics[1].Bytes()),
		To:           common.BytesToAddress(log.Topics[2].Bytes()),
		TokenAddress: log.Address,
		Value:        vals[0].(*big.Int),
	}
	e.ContentID = ContentID(log.TxHash, log.Index, rollupID)
	return e, nil
}
