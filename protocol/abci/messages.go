// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package abci

import (
	"fmt"

	"github.com/blinklabs-io/goabci/cbor"
	"github.com/blinklabs-io/goabci/protocol"
)

// Message types, shared between each request and its response
const (
	MessageTypeEcho               = 0
	MessageTypeFlush              = 1
	MessageTypeInfo               = 2
	MessageTypeSetOption          = 3
	MessageTypeQuery              = 4
	MessageTypeInitChain          = 5
	MessageTypeBeginBlock         = 6
	MessageTypeDeliverTx          = 7
	MessageTypeEndBlock           = 8
	MessageTypeCommit             = 9
	MessageTypeCheckTx            = 10
	MessageTypeListSnapshots      = 11
	MessageTypeOfferSnapshot      = 12
	MessageTypeLoadSnapshotChunk  = 13
	MessageTypeApplySnapshotChunk = 14
)

// Wire variant names, used for classification, logs, and errors
var messageNames = map[uint8]string{
	MessageTypeEcho:               "echo",
	MessageTypeFlush:              "flush",
	MessageTypeInfo:               "info",
	MessageTypeSetOption:          "set_option",
	MessageTypeQuery:              "query",
	MessageTypeInitChain:          "init_chain",
	MessageTypeBeginBlock:         "begin_block",
	MessageTypeDeliverTx:          "deliver_tx",
	MessageTypeEndBlock:           "end_block",
	MessageTypeCommit:             "commit",
	MessageTypeCheckTx:            "check_tx",
	MessageTypeListSnapshots:      "list_snapshots",
	MessageTypeOfferSnapshot:      "offer_snapshot",
	MessageTypeLoadSnapshotChunk:  "load_snapshot_chunk",
	MessageTypeApplySnapshotChunk: "apply_snapshot_chunk",
}

// MessageName returns the wire variant name for a message
func MessageName(msg protocol.Message) string {
	if msg == nil {
		return "unknown"
	}
	name, ok := messageNames[msg.Type()]
	if !ok {
		return "unknown"
	}
	return name
}

// NewRequestFromCbor parses an ABCI request message from CBOR
func NewRequestFromCbor(data []byte) (protocol.Message, error) {
	msgType, err := cbor.DecodeIdFromList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	var ret protocol.Message
	switch msgType {
	case MessageTypeEcho:
		ret = &MsgEcho{}
	case MessageTypeFlush:
		ret = &MsgFlush{}
	case MessageTypeInfo:
		ret = &MsgInfo{}
	case MessageTypeSetOption:
		ret = &MsgSetOption{}
	case MessageTypeQuery:
		ret = &MsgQuery{}
	case MessageTypeInitChain:
		ret = &MsgInitChain{}
	case MessageTypeBeginBlock:
		ret = &MsgBeginBlock{}
	case MessageTypeDeliverTx:
		ret = &MsgDeliverTx{}
	case MessageTypeEndBlock:
		ret = &MsgEndBlock{}
	case MessageTypeCommit:
		ret = &MsgCommit{}
	case MessageTypeCheckTx:
		ret = &MsgCheckTx{}
	case MessageTypeListSnapshots:
		ret = &MsgListSnapshots{}
	case MessageTypeOfferSnapshot:
		ret = &MsgOfferSnapshot{}
	case MessageTypeLoadSnapshotChunk:
		ret = &MsgLoadSnapshotChunk{}
	case MessageTypeApplySnapshotChunk:
		ret = &MsgApplySnapshotChunk{}
	default:
		return nil, fmt.Errorf(
			"%s: received unknown message type: %d",
			ProtocolName,
			msgType,
		)
	}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	// Store the raw message CBOR
	ret.SetCbor(data)
	return ret, nil
}

// NewResponseFromCbor parses an ABCI response message from CBOR
func NewResponseFromCbor(data []byte) (protocol.Message, error) {
	msgType, err := cbor.DecodeIdFromList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	var ret protocol.Message
	switch msgType {
	case MessageTypeEcho:
		ret = &MsgEchoResponse{}
	case MessageTypeFlush:
		ret = &MsgFlushResponse{}
	case MessageTypeInfo:
		ret = &MsgInfoResponse{}
	case MessageTypeSetOption:
		ret = &MsgSetOptionResponse{}
	case MessageTypeQuery:
		ret = &MsgQueryResponse{}
	case MessageTypeInitChain:
		ret = &MsgInitChainResponse{}
	case MessageTypeBeginBlock:
		ret = &MsgBeginBlockResponse{}
	case MessageTypeDeliverTx:
		ret = &MsgDeliverTxResponse{}
	case MessageTypeEndBlock:
		ret = &MsgEndBlockResponse{}
	case MessageTypeCommit:
		ret = &MsgCommitResponse{}
	case MessageTypeCheckTx:
		ret = &MsgCheckTxResponse{}
	case MessageTypeListSnapshots:
		ret = &MsgListSnapshotsResponse{}
	case MessageTypeOfferSnapshot:
		ret = &MsgOfferSnapshotResponse{}
	case MessageTypeLoadSnapshotChunk:
		ret = &MsgLoadSnapshotChunkResponse{}
	case MessageTypeApplySnapshotChunk:
		ret = &MsgApplySnapshotChunkResponse{}
	default:
		return nil, fmt.Errorf(
			"%s: received unknown message type: %d",
			ProtocolName,
			msgType,
		)
	}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	ret.SetCbor(data)
	return ret, nil
}

// Snapshot describes an application state snapshot offered for state sync
type Snapshot struct {
	cbor.StructAsArray
	Height   uint64
	Format   uint32
	Chunks   uint32
	Hash     []byte
	Metadata []byte
}

type MsgEcho struct {
	protocol.MessageBase
	Message string
}

func NewMsgEcho(message string) *MsgEcho {
	return &MsgEcho{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeEcho,
		},
		Message: message,
	}
}

type MsgEchoResponse struct {
	protocol.MessageBase
	Message string
}

func NewMsgEchoResponse(message string) *MsgEchoResponse {
	return &MsgEchoResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeEcho,
		},
		Message: message,
	}
}

type MsgFlush struct {
	protocol.MessageBase
}

func NewMsgFlush() *MsgFlush {
	return &MsgFlush{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeFlush,
		},
	}
}

type MsgFlushResponse struct {
	protocol.MessageBase
}

func NewMsgFlushResponse() *MsgFlushResponse {
	return &MsgFlushResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeFlush,
		},
	}
}

type MsgInfo struct {
	protocol.MessageBase
	Version      string
	BlockVersion uint64
	P2pVersion   uint64
}

func NewMsgInfo(version string, blockVersion uint64, p2pVersion uint64) *MsgInfo {
	return &MsgInfo{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeInfo,
		},
		Version:      version,
		BlockVersion: blockVersion,
		P2pVersion:   p2pVersion,
	}
}

type MsgInfoResponse struct {
	protocol.MessageBase
	Data             string
	Version          string
	AppVersion       uint64
	LastBlockHeight  int64
	LastBlockAppHash []byte
}

func NewMsgInfoResponse(
	data string,
	version string,
	appVersion uint64,
	lastBlockHeight int64,
	lastBlockAppHash []byte,
) *MsgInfoResponse {
	return &MsgInfoResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeInfo,
		},
		Data:             data,
		Version:          version,
		AppVersion:       appVersion,
		LastBlockHeight:  lastBlockHeight,
		LastBlockAppHash: lastBlockAppHash,
	}
}

type MsgSetOption struct {
	protocol.MessageBase
	Key   string
	Value string
}

func NewMsgSetOption(key string, value string) *MsgSetOption {
	return &MsgSetOption{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeSetOption,
		},
		Key:   key,
		Value: value,
	}
}

type MsgSetOptionResponse struct {
	protocol.MessageBase
	Code uint32
	Log  string
}

func NewMsgSetOptionResponse(code uint32, log string) *MsgSetOptionResponse {
	return &MsgSetOptionResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeSetOption,
		},
		Code: code,
		Log:  log,
	}
}

type MsgQuery struct {
	protocol.MessageBase
	Data   []byte
	Path   string
	Height int64
	Prove  bool
}

func NewMsgQuery(data []byte, path string, height int64, prove bool) *MsgQuery {
	return &MsgQuery{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeQuery,
		},
		Data:   data,
		Path:   path,
		Height: height,
		Prove:  prove,
	}
}

type MsgQueryResponse struct {
	protocol.MessageBase
	Code   uint32
	Log    string
	Key    []byte
	Value  []byte
	Height int64
}

func NewMsgQueryResponse(
	code uint32,
	log string,
	key []byte,
	value []byte,
	height int64,
) *MsgQueryResponse {
	return &MsgQueryResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeQuery,
		},
		Code:   code,
		Log:    log,
		Key:    key,
		Value:  value,
		Height: height,
	}
}

type MsgInitChain struct {
	protocol.MessageBase
	ChainId       string
	InitialHeight int64
	AppStateBytes []byte
}

func NewMsgInitChain(
	chainId string,
	initialHeight int64,
	appStateBytes []byte,
) *MsgInitChain {
	return &MsgInitChain{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeInitChain,
		},
		ChainId:       chainId,
		InitialHeight: initialHeight,
		AppStateBytes: appStateBytes,
	}
}

type MsgInitChainResponse struct {
	protocol.MessageBase
	AppHash []byte
}

func NewMsgInitChainResponse(appHash []byte) *MsgInitChainResponse {
	return &MsgInitChainResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeInitChain,
		},
		AppHash: appHash,
	}
}

type MsgBeginBlock struct {
	protocol.MessageBase
	Hash   []byte
	Height int64
}

func NewMsgBeginBlock(hash []byte, height int64) *MsgBeginBlock {
	return &MsgBeginBlock{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeBeginBlock,
		},
		Hash:   hash,
		Height: height,
	}
}

type MsgBeginBlockResponse struct {
	protocol.MessageBase
}

func NewMsgBeginBlockResponse() *MsgBeginBlockResponse {
	return &MsgBeginBlockResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeBeginBlock,
		},
	}
}

type MsgDeliverTx struct {
	protocol.MessageBase
	Tx []byte
}

func NewMsgDeliverTx(tx []byte) *MsgDeliverTx {
	return &MsgDeliverTx{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeDeliverTx,
		},
		Tx: tx,
	}
}

type MsgDeliverTxResponse struct {
	protocol.MessageBase
	Code uint32
	Data []byte
	Log  string
}

func NewMsgDeliverTxResponse(code uint32, data []byte, log string) *MsgDeliverTxResponse {
	return &MsgDeliverTxResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeDeliverTx,
		},
		Code: code,
		Data: data,
		Log:  log,
	}
}

type MsgEndBlock struct {
	protocol.MessageBase
	Height int64
}

func NewMsgEndBlock(height int64) *MsgEndBlock {
	return &MsgEndBlock{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeEndBlock,
		},
		Height: height,
	}
}

type MsgEndBlockResponse struct {
	protocol.MessageBase
}

func NewMsgEndBlockResponse() *MsgEndBlockResponse {
	return &MsgEndBlockResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeEndBlock,
		},
	}
}

type MsgCommit struct {
	protocol.MessageBase
}

func NewMsgCommit() *MsgCommit {
	return &MsgCommit{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeCommit,
		},
	}
}

type MsgCommitResponse struct {
	protocol.MessageBase
	Data         []byte
	RetainHeight int64
}

func NewMsgCommitResponse(data []byte, retainHeight int64) *MsgCommitResponse {
	return &MsgCommitResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeCommit,
		},
		Data:         data,
		RetainHeight: retainHeight,
	}
}

type MsgCheckTx struct {
	protocol.MessageBase
	Tx []byte
	// CheckType distinguishes new transactions from rechecks after a block
	CheckType uint8
}

func NewMsgCheckTx(tx []byte, checkType uint8) *MsgCheckTx {
	return &MsgCheckTx{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeCheckTx,
		},
		Tx:        tx,
		CheckType: checkType,
	}
}

type MsgCheckTxResponse struct {
	protocol.MessageBase
	Code uint32
	Data []byte
	Log  string
}

func NewMsgCheckTxResponse(code uint32, data []byte, log string) *MsgCheckTxResponse {
	return &MsgCheckTxResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeCheckTx,
		},
		Code: code,
		Data: data,
		Log:  log,
	}
}

type MsgListSnapshots struct {
	protocol.MessageBase
}

func NewMsgListSnapshots() *MsgListSnapshots {
	return &MsgListSnapshots{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeListSnapshots,
		},
	}
}

type MsgListSnapshotsResponse struct {
	protocol.MessageBase
	Snapshots []Snapshot
}

func NewMsgListSnapshotsResponse(snapshots []Snapshot) *MsgListSnapshotsResponse {
	return &MsgListSnapshotsResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeListSnapshots,
		},
		Snapshots: snapshots,
	}
}

type MsgOfferSnapshot struct {
	protocol.MessageBase
	Snapshot Snapshot
	AppHash  []byte
}

func NewMsgOfferSnapshot(snapshot Snapshot, appHash []byte) *MsgOfferSnapshot {
	return &MsgOfferSnapshot{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeOfferSnapshot,
		},
		Snapshot: snapshot,
		AppHash:  appHash,
	}
}

// Snapshot acceptance results
const (
	SnapshotResultUnknown      = 0
	SnapshotResultAccept       = 1
	SnapshotResultAbort        = 2
	SnapshotResultReject       = 3
	SnapshotResultRejectFormat = 4
	SnapshotResultRejectSender = 5
)

type MsgOfferSnapshotResponse struct {
	protocol.MessageBase
	Result uint8
}

func NewMsgOfferSnapshotResponse(result uint8) *MsgOfferSnapshotResponse {
	return &MsgOfferSnapshotResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeOfferSnapshot,
		},
		Result: result,
	}
}

type MsgLoadSnapshotChunk struct {
	protocol.MessageBase
	Height uint64
	Format uint32
	Chunk  uint32
}

func NewMsgLoadSnapshotChunk(height uint64, format uint32, chunk uint32) *MsgLoadSnapshotChunk {
	return &MsgLoadSnapshotChunk{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeLoadSnapshotChunk,
		},
		Height: height,
		Format: format,
		Chunk:  chunk,
	}
}

type MsgLoadSnapshotChunkResponse struct {
	protocol.MessageBase
	Chunk []byte
}

func NewMsgLoadSnapshotChunkResponse(chunk []byte) *MsgLoadSnapshotChunkResponse {
	return &MsgLoadSnapshotChunkResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeLoadSnapshotChunk,
		},
		Chunk: chunk,
	}
}

type MsgApplySnapshotChunk struct {
	protocol.MessageBase
	Index  uint32
	Chunk  []byte
	Sender string
}

func NewMsgApplySnapshotChunk(index uint32, chunk []byte, sender string) *MsgApplySnapshotChunk {
	return &MsgApplySnapshotChunk{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeApplySnapshotChunk,
		},
		Index:  index,
		Chunk:  chunk,
		Sender: sender,
	}
}

type MsgApplySnapshotChunkResponse struct {
	protocol.MessageBase
	Result        uint8
	RefetchChunks []uint32
	RejectSenders []string
}

func NewMsgApplySnapshotChunkResponse(
	result uint8,
	refetchChunks []uint32,
	rejectSenders []string,
) *MsgApplySnapshotChunkResponse {
	return &MsgApplySnapshotChunkResponse{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeApplySnapshotChunk,
		},
		Result:        result,
		RefetchChunks: refetchChunks,
		RejectSenders: rejectSenders,
	}
}
