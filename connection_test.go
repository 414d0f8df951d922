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

package goabci_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/blinklabs-io/goabci"
	"github.com/blinklabs-io/goabci/cbor"
	"github.com/blinklabs-io/goabci/protocol"
	"github.com/blinklabs-io/goabci/protocol/abci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockApplication serves every handler class with the same handler
type mockApplication struct {
	handler abci.Handler
}

func (a *mockApplication) ConnectionHandler(
	class abci.HandlerClass,
) (abci.Handler, error) {
	return a.handler, nil
}

// mockHandler answers info requests with canned data
type mockHandler struct{}

func (h *mockHandler) Info(msg *abci.MsgInfo) (*abci.MsgInfoResponse, error) {
	return abci.NewMsgInfoResponse("mock", "1.0.0", 1, 0, nil), nil
}

func (h *mockHandler) SetOption(
	msg *abci.MsgSetOption,
) (*abci.MsgSetOptionResponse, error) {
	return abci.NewMsgSetOptionResponse(0, ""), nil
}

func (h *mockHandler) Query(msg *abci.MsgQuery) (*abci.MsgQueryResponse, error) {
	return abci.NewMsgQueryResponse(0, "", msg.Data, nil, 0), nil
}

// engineClient mimics the consensus engine side of a connection
type engineClient struct {
	conn    net.Conn
	framer  protocol.Framer
	pending [][]byte
}

func (c *engineClient) writeRequest(t *testing.T, msg protocol.Message) {
	t.Helper()
	payload, err := cbor.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(c.conn, payload))
}

func (c *engineClient) readResponse(t *testing.T) protocol.Message {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	for len(c.pending) == 0 {
		n, err := c.conn.Read(buf)
		require.NoError(t, err)
		payloads, err := c.framer.Ingest(buf[:n])
		require.NoError(t, err)
		c.pending = append(c.pending, payloads...)
	}
	payload := c.pending[0]
	c.pending = c.pending[1:]
	msg, err := abci.NewResponseFromCbor(payload)
	require.NoError(t, err)
	return msg
}

func TestConnectionEchoRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	conn, err := goabci.NewConnection(
		goabci.WithConnection(serverConn),
		goabci.WithApplication(&mockApplication{handler: &mockHandler{}}),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, conn.Close())
		_ = clientConn.Close()
	}()

	client := &engineClient{conn: clientConn}
	client.writeRequest(t, abci.NewMsgEcho("are you there"))
	resp := client.readResponse(t)
	echoResp, ok := resp.(*abci.MsgEchoResponse)
	require.True(t, ok, "expected *abci.MsgEchoResponse, got %T", resp)
	assert.Equal(t, "are you there", echoResp.Message)
	// Echo never binds a handler
	assert.Nil(t, conn.Handler())
}

func TestConnectionHandlerBinding(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	handler := &mockHandler{}
	conn, err := goabci.NewConnection(
		goabci.WithConnection(serverConn),
		goabci.WithApplication(&mockApplication{handler: handler}),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, conn.Close())
		_ = clientConn.Close()
	}()

	client := &engineClient{conn: clientConn}
	client.writeRequest(t, abci.NewMsgInfo("0.34.0", 11, 8))
	resp := client.readResponse(t)
	require.IsType(t, &abci.MsgInfoResponse{}, resp)
	assert.Same(t, handler, conn.Handler())
}

func TestConnectionPeerDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	clientConn, serverConn := net.Pipe()
	conn, err := goabci.NewConnection(
		goabci.WithConnection(serverConn),
		goabci.WithApplication(&mockApplication{handler: &mockHandler{}}),
	)
	require.NoError(t, err)

	// Drop the connection from the engine side
	require.NoError(t, clientConn.Close())

	select {
	case err := <-conn.ErrorChan():
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect error")
	}
	// The connection closes itself and the error channel is closed once
	// teardown completes
	select {
	case _, ok := <-conn.ErrorChan():
		require.False(t, ok, "expected error channel to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel close")
	}
}

func TestConnectionRequiresConnAndApp(t *testing.T) {
	_, err := goabci.NewConnection(
		goabci.WithApplication(&mockApplication{}),
	)
	require.ErrorContains(t, err, "no connection provided")
	clientConn, serverConn := net.Pipe()
	defer func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	}()
	_, err = goabci.NewConnection(
		goabci.WithConnection(serverConn),
	)
	require.ErrorContains(t, err, "no application provided")
}
