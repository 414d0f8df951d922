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

// Package abci implements the server side of the ABCI socket protocol:
// request classification, per-connection handler binding, and dispatch of
// requests to the bound handler
package abci

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/blinklabs-io/goabci/protocol"
)

const ProtocolName = "abci"

// ABCI implements the application side of a single ABCI connection
type ABCI struct {
	*protocol.Protocol
	app    Application
	logger *slog.Logger
	remote net.Addr

	handlerMutex sync.Mutex
	handler      Handler
}

// New returns a new ABCI object wrapping the provided connection
func New(protoOptions protocol.ProtocolOptions, app Application) *ABCI {
	a := &ABCI{
		app:    app,
		logger: protoOptions.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if protoOptions.Conn != nil {
		a.remote = protoOptions.Conn.RemoteAddr()
	}
	protoConfig := protocol.ProtocolConfig{
		Name:                ProtocolName,
		Conn:                protoOptions.Conn,
		ErrorChan:           protoOptions.ErrorChan,
		Logger:              protoOptions.Logger,
		Timeout:             protoOptions.Timeout,
		MessageFromCborFunc: NewRequestFromCbor,
		MessageNameFunc:     MessageName,
		DispatchFunc:        a.handleRequest,
	}
	a.Protocol = protocol.New(protoConfig)
	return a
}

// Handler returns the handler bound to this connection, or nil if no
// classifiable request has arrived yet
func (a *ABCI) Handler() Handler {
	a.handlerMutex.Lock()
	defer a.handlerMutex.Unlock()
	return a.handler
}

// handleRequest produces the response for one decoded request. It runs in a
// dedicated goroutine per request; response ordering is enforced by the
// embedded protocol engine
func (a *ABCI) handleRequest(name string, msg protocol.Message) (protocol.Message, error) {
	if err := a.ensureHandler(msg); err != nil {
		return nil, fmt.Errorf("bind handler: %w", err)
	}
	if resp, handled, err := a.invokeHandler(msg); handled {
		return resp, err
	}
	// Echo and flush are serviced by the engine itself and never touch the
	// bound handler
	switch m := msg.(type) {
	case *MsgEcho:
		return NewMsgEchoResponse(m.Message), nil
	case *MsgFlush:
		return NewMsgFlushResponse(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMethodNotImplemented, name)
}

// ensureHandler resolves the connection handler on the first classifiable
// request. Once bound, the handler never changes for the remaining lifetime
// of the connection, even if a later request would classify differently
func (a *ABCI) ensureHandler(msg protocol.Message) error {
	a.handlerMutex.Lock()
	defer a.handlerMutex.Unlock()
	if a.handler != nil {
		return nil
	}
	class := HandlerClassForMessage(msg)
	if class == HandlerClassNone {
		return nil
	}
	handler, err := a.app.ConnectionHandler(class)
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	a.handler = handler
	a.logger.Info(
		fmt.Sprintf("%sConnection established", class),
		"component", ProtocolName,
		"remote", a.remote,
	)
	return nil
}

// invokeHandler routes a request to the matching operation on the bound
// handler. handled is false when no handler is bound, the handler lacks the
// capability for this request, or the operation declined to produce a
// response
func (a *ABCI) invokeHandler(msg protocol.Message) (resp protocol.Message, handled bool, err error) {
	a.handlerMutex.Lock()
	handler := a.handler
	a.handlerMutex.Unlock()
	if handler == nil {
		return nil, false, nil
	}
	switch m := msg.(type) {
	case *MsgInfo:
		if h, ok := handler.(InfoHandler); ok {
			return invoke(h.Info, m)
		}
	case *MsgSetOption:
		if h, ok := handler.(InfoHandler); ok {
			return invoke(h.SetOption, m)
		}
	case *MsgQuery:
		if h, ok := handler.(InfoHandler); ok {
			return invoke(h.Query, m)
		}
	case *MsgInitChain:
		if h, ok := handler.(ConsensusHandler); ok {
			return invoke(h.InitChain, m)
		}
	case *MsgBeginBlock:
		if h, ok := handler.(ConsensusHandler); ok {
			return invoke(h.BeginBlock, m)
		}
	case *MsgDeliverTx:
		if h, ok := handler.(ConsensusHandler); ok {
			return invoke(h.DeliverTx, m)
		}
	case *MsgEndBlock:
		if h, ok := handler.(ConsensusHandler); ok {
			return invoke(h.EndBlock, m)
		}
	case *MsgCommit:
		if h, ok := handler.(ConsensusHandler); ok {
			return invoke(h.Commit, m)
		}
	case *MsgListSnapshots:
		if h, ok := handler.(StateSyncHandler); ok {
			return invoke(h.ListSnapshots, m)
		}
	case *MsgOfferSnapshot:
		if h, ok := handler.(StateSyncHandler); ok {
			return invoke(h.OfferSnapshot, m)
		}
	case *MsgLoadSnapshotChunk:
		if h, ok := handler.(StateSyncHandler); ok {
			return invoke(h.LoadSnapshotChunk, m)
		}
	case *MsgApplySnapshotChunk:
		if h, ok := handler.(StateSyncHandler); ok {
			return invoke(h.ApplySnapshotChunk, m)
		}
	case *MsgCheckTx:
		if h, ok := handler.(MempoolHandler); ok {
			return invoke(h.CheckTx, m)
		}
	}
	return nil, false, nil
}

// invoke calls a single handler operation and normalizes its result. A nil
// response without an error falls through to the not-implemented path
func invoke[Req any, Resp protocol.Message](
	f func(Req) (Resp, error),
	m Req,
) (protocol.Message, bool, error) {
	resp, err := f(m)
	if err != nil {
		return nil, true, err
	}
	var zero Resp
	if any(resp) == any(zero) {
		return nil, false, nil
	}
	return resp, true, nil
}
