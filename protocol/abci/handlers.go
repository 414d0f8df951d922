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
	"github.com/blinklabs-io/goabci/protocol"
)

// HandlerClass identifies which category of requests a connection handler
// services. The consensus engine opens a separate connection per class
type HandlerClass uint8

const (
	HandlerClassNone HandlerClass = iota

	HandlerClassInfo
	HandlerClassConsensus
	HandlerClassStateSync
	HandlerClassMempool
)

func (h HandlerClass) String() string {
	tmp := map[HandlerClass]string{
		HandlerClassInfo:      "Info",
		HandlerClassConsensus: "Consensus",
		HandlerClassStateSync: "StateSync",
		HandlerClassMempool:   "Mempool",
	}
	ret, ok := tmp[h]
	if !ok {
		return "Unknown"
	}
	return ret
}

// Handler is an externally supplied object servicing one class of requests
// for the lifetime of a connection. It is expected to implement one or more
// of the capability interfaces below; requests whose capability it lacks
// fail with ErrMethodNotImplemented
type Handler any

// Application is the external factory that provides connection handlers.
// The returned handler may be shared across connections of the same class
// or freshly constructed; the engine assumes neither
type Application interface {
	ConnectionHandler(HandlerClass) (Handler, error)
}

// InfoHandler services informational queries
type InfoHandler interface {
	Info(*MsgInfo) (*MsgInfoResponse, error)
	SetOption(*MsgSetOption) (*MsgSetOptionResponse, error)
	Query(*MsgQuery) (*MsgQueryResponse, error)
}

// ConsensusHandler services block-execution requests
type ConsensusHandler interface {
	InitChain(*MsgInitChain) (*MsgInitChainResponse, error)
	BeginBlock(*MsgBeginBlock) (*MsgBeginBlockResponse, error)
	DeliverTx(*MsgDeliverTx) (*MsgDeliverTxResponse, error)
	EndBlock(*MsgEndBlock) (*MsgEndBlockResponse, error)
	Commit(*MsgCommit) (*MsgCommitResponse, error)
}

// StateSyncHandler services snapshot transfer requests
type StateSyncHandler interface {
	ListSnapshots(*MsgListSnapshots) (*MsgListSnapshotsResponse, error)
	OfferSnapshot(*MsgOfferSnapshot) (*MsgOfferSnapshotResponse, error)
	LoadSnapshotChunk(*MsgLoadSnapshotChunk) (*MsgLoadSnapshotChunkResponse, error)
	ApplySnapshotChunk(*MsgApplySnapshotChunk) (*MsgApplySnapshotChunkResponse, error)
}

// MempoolHandler services transaction validation requests
type MempoolHandler interface {
	CheckTx(*MsgCheckTx) (*MsgCheckTxResponse, error)
}

// HandlerClassForMessage maps a request to the handler class that services
// it. Echo and flush are handled by the engine itself and map to no class
func HandlerClassForMessage(msg protocol.Message) HandlerClass {
	switch msg.(type) {
	case *MsgInfo, *MsgSetOption, *MsgQuery:
		return HandlerClassInfo
	case *MsgInitChain, *MsgBeginBlock, *MsgDeliverTx, *MsgEndBlock, *MsgCommit:
		return HandlerClassConsensus
	case *MsgListSnapshots, *MsgOfferSnapshot, *MsgLoadSnapshotChunk, *MsgApplySnapshotChunk:
		return HandlerClassStateSync
	case *MsgCheckTx:
		return HandlerClassMempool
	default:
		return HandlerClassNone
	}
}
