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

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	goabci "github.com/blinklabs-io/goabci"
	"github.com/blinklabs-io/goabci/protocol/abci"
	"golang.org/x/crypto/blake2b"
)

type cmdFlags struct {
	socket  string
	address string
}

func main() {
	f := cmdFlags{}
	flag.StringVar(&f.socket, "socket", "", "UNIX socket path to listen on")
	flag.StringVar(&f.address, "address", "", "TCP address to listen on in address:port format")
	flag.Parse()

	var listenProto string
	var listenAddress string
	if f.socket != "" {
		listenProto = "unix"
		listenAddress = f.socket
	} else if f.address != "" {
		listenProto = "tcp"
		listenAddress = f.address
	} else {
		fmt.Println("You must specify one of -socket or -address")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	server, err := goabci.NewServer(
		goabci.WithServerApplication(newKVStore()),
		goabci.WithServerLogger(logger),
	)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	logger.Info("listening for ABCI connections", "address", listenAddress)
	if err := server.ListenAndServe(listenProto, listenAddress); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
}

// kvStore is a minimal in-memory key/value ABCI application. Transactions
// are "key=value" strings applied at commit
type kvStore struct {
	mutex   sync.Mutex
	state   map[string]string
	options map[string]string
	height  int64
	appHash []byte
}

func newKVStore() *kvStore {
	return &kvStore{
		state:   make(map[string]string),
		options: make(map[string]string),
	}
}

// ConnectionHandler implements abci.Application. The same store services
// every handler class
func (k *kvStore) ConnectionHandler(class abci.HandlerClass) (abci.Handler, error) {
	switch class {
	case abci.HandlerClassInfo,
		abci.HandlerClassConsensus,
		abci.HandlerClassStateSync,
		abci.HandlerClassMempool:
		return k, nil
	default:
		return nil, fmt.Errorf("unknown handler class: %d", class)
	}
}

// hashState computes the blake2b hash over the sorted state entries
func (k *kvStore) hashState() []byte {
	keys := make([]string, 0, len(k.state))
	for key := range k.state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write([]byte(k.state[key]))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}

func splitTx(tx []byte) (string, string, error) {
	key, value, ok := strings.Cut(string(tx), "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("malformed tx: expected key=value")
	}
	return key, value, nil
}

func (k *kvStore) Info(req *abci.MsgInfo) (*abci.MsgInfoResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return abci.NewMsgInfoResponse(
		"goabci-kvstore",
		"0.1.0",
		1,
		k.height,
		k.appHash,
	), nil
}

func (k *kvStore) SetOption(req *abci.MsgSetOption) (*abci.MsgSetOptionResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.options[req.Key] = req.Value
	return abci.NewMsgSetOptionResponse(0, ""), nil
}

func (k *kvStore) Query(req *abci.MsgQuery) (*abci.MsgQueryResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	key := string(req.Data)
	value, ok := k.state[key]
	if !ok {
		return abci.NewMsgQueryResponse(1, "key not found", req.Data, nil, k.height), nil
	}
	return abci.NewMsgQueryResponse(0, "", req.Data, []byte(value), k.height), nil
}

func (k *kvStore) InitChain(req *abci.MsgInitChain) (*abci.MsgInitChainResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.state = make(map[string]string)
	if req.InitialHeight > 0 {
		k.height = req.InitialHeight - 1
	}
	k.appHash = k.hashState()
	return abci.NewMsgInitChainResponse(k.appHash), nil
}

func (k *kvStore) BeginBlock(req *abci.MsgBeginBlock) (*abci.MsgBeginBlockResponse, error) {
	return abci.NewMsgBeginBlockResponse(), nil
}

func (k *kvStore) DeliverTx(req *abci.MsgDeliverTx) (*abci.MsgDeliverTxResponse, error) {
	key, value, err := splitTx(req.Tx)
	if err != nil {
		return abci.NewMsgDeliverTxResponse(1, nil, err.Error()), nil
	}
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.state[key] = value
	return abci.NewMsgDeliverTxResponse(0, nil, ""), nil
}

func (k *kvStore) EndBlock(req *abci.MsgEndBlock) (*abci.MsgEndBlockResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.height = req.Height
	return abci.NewMsgEndBlockResponse(), nil
}

func (k *kvStore) Commit(req *abci.MsgCommit) (*abci.MsgCommitResponse, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.appHash = k.hashState()
	return abci.NewMsgCommitResponse(k.appHash, 0), nil
}

func (k *kvStore) CheckTx(req *abci.MsgCheckTx) (*abci.MsgCheckTxResponse, error) {
	if _, _, err := splitTx(req.Tx); err != nil {
		return abci.NewMsgCheckTxResponse(1, nil, err.Error()), nil
	}
	return abci.NewMsgCheckTxResponse(0, nil, ""), nil
}

func (k *kvStore) ListSnapshots(req *abci.MsgListSnapshots) (*abci.MsgListSnapshotsResponse, error) {
	// Snapshots are not retained by this application
	return abci.NewMsgListSnapshotsResponse(nil), nil
}

func (k *kvStore) OfferSnapshot(req *abci.MsgOfferSnapshot) (*abci.MsgOfferSnapshotResponse, error) {
	return abci.NewMsgOfferSnapshotResponse(abci.SnapshotResultReject), nil
}

func (k *kvStore) LoadSnapshotChunk(req *abci.MsgLoadSnapshotChunk) (*abci.MsgLoadSnapshotChunkResponse, error) {
	return abci.NewMsgLoadSnapshotChunkResponse(nil), nil
}

func (k *kvStore) ApplySnapshotChunk(req *abci.MsgApplySnapshotChunk) (*abci.MsgApplySnapshotChunkResponse, error) {
	return abci.NewMsgApplySnapshotChunkResponse(abci.SnapshotResultAbort, nil, nil), nil
}
