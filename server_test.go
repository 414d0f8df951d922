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
	"net"
	"testing"
	"time"

	"github.com/blinklabs-io/goabci"
	"github.com/blinklabs-io/goabci/protocol/abci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startServer(t *testing.T) (*goabci.Server, net.Addr, chan error) {
	t.Helper()
	server, err := goabci.NewServer(
		goabci.WithServerApplication(&mockApplication{handler: &mockHandler{}}),
	)
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveResult := make(chan error, 1)
	go func() {
		serveResult <- server.Serve(listener)
	}()
	return server, listener.Addr(), serveResult
}

func TestServerServesMultipleConnections(t *testing.T) {
	defer goleak.VerifyNone(t)
	server, addr, serveResult := startServer(t)
	defer func() {
		require.NoError(t, server.Shutdown())
	}()

	// The consensus engine opens one connection per handler class; each gets
	// its own independent engine
	var clients []*engineClient
	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		clients = append(clients, &engineClient{conn: conn})
	}

	for i, client := range clients {
		client.writeRequest(t, abci.NewMsgEcho("hello"))
		resp := client.readResponse(t)
		echoResp, ok := resp.(*abci.MsgEchoResponse)
		require.True(t, ok, "client %d: expected *abci.MsgEchoResponse, got %T", i, resp)
		assert.Equal(t, "hello", echoResp.Message)
	}

	manager := server.ConnectionManager()
	require.Eventually(
		t,
		func() bool { return manager.ConnectionCount() == 2 },
		2*time.Second,
		10*time.Millisecond,
	)

	// Dropping one client must not disturb the other
	require.NoError(t, clients[0].conn.Close())
	require.Eventually(
		t,
		func() bool { return manager.ConnectionCount() == 1 },
		2*time.Second,
		10*time.Millisecond,
	)
	clients[1].writeRequest(t, abci.NewMsgInfo("0.34.0", 11, 8))
	resp := clients[1].readResponse(t)
	require.IsType(t, &abci.MsgInfoResponse{}, resp)

	require.NoError(t, server.Shutdown())
	select {
	case err := <-serveResult:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
	require.Eventually(
		t,
		func() bool { return manager.ConnectionCount() == 0 },
		2*time.Second,
		10*time.Millisecond,
	)
}

func TestServerRequiresApplication(t *testing.T) {
	_, err := goabci.NewServer()
	require.ErrorContains(t, err, "no application provided")
}
