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

package abci_test

import (
	"testing"

	"github.com/blinklabs-io/goabci/cbor"
	"github.com/blinklabs-io/goabci/internal/test"
	"github.com/blinklabs-io/goabci/protocol"
	"github.com/blinklabs-io/goabci/protocol/abci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageName(t *testing.T) {
	testDefs := []struct {
		msg  protocol.Message
		name string
	}{
		{abci.NewMsgEcho("hi"), "echo"},
		{abci.NewMsgFlush(), "flush"},
		{abci.NewMsgInfo("0.34.0", 11, 8), "info"},
		{abci.NewMsgDeliverTx([]byte{0x01}), "deliver_tx"},
		{abci.NewMsgCheckTx([]byte{0x01}, 0), "check_tx"},
		{abci.NewMsgApplySnapshotChunk(0, nil, ""), "apply_snapshot_chunk"},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.name, abci.MessageName(testDef.msg))
	}
}

// Wire fixture: CBOR [0, "hello"]
func TestRequestFromCborEcho(t *testing.T) {
	data := test.DecodeHexString("82006568656c6c6f")
	msg, err := abci.NewRequestFromCbor(data)
	require.NoError(t, err)
	echoMsg, ok := msg.(*abci.MsgEcho)
	require.True(t, ok, "expected *abci.MsgEcho, got %T", msg)
	assert.Equal(t, "hello", echoMsg.Message)
	assert.Equal(t, data, msg.Cbor())
}

func TestRequestRoundTrip(t *testing.T) {
	testDefs := []struct {
		name string
		msg  protocol.Message
	}{
		{
			name: "echo",
			msg:  abci.NewMsgEcho("ping"),
		},
		{
			name: "query",
			msg:  abci.NewMsgQuery([]byte("some-key"), "/store", 42, true),
		},
		{
			name: "check_tx",
			msg:  abci.NewMsgCheckTx([]byte{0xde, 0xad}, 1),
		},
		{
			name: "offer_snapshot",
			msg: abci.NewMsgOfferSnapshot(
				abci.Snapshot{
					Height:   100,
					Format:   1,
					Chunks:   4,
					Hash:     []byte{0x01, 0x02},
					Metadata: []byte{0x03},
				},
				[]byte{0x0a, 0x0b},
			),
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			data, err := cbor.Encode(testDef.msg)
			require.NoError(t, err)
			decoded, err := abci.NewRequestFromCbor(data)
			require.NoError(t, err)
			require.IsType(t, testDef.msg, decoded)
			assert.Equal(t, testDef.name, abci.MessageName(decoded))
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	msg := abci.NewMsgCheckTxResponse(0, []byte{0x01}, "ok")
	data, err := cbor.Encode(msg)
	require.NoError(t, err)
	decoded, err := abci.NewResponseFromCbor(data)
	require.NoError(t, err)
	checkResp, ok := decoded.(*abci.MsgCheckTxResponse)
	require.True(t, ok, "expected *abci.MsgCheckTxResponse, got %T", decoded)
	assert.Equal(t, uint32(0), checkResp.Code)
	assert.Equal(t, []byte{0x01}, checkResp.Data)
	assert.Equal(t, "ok", checkResp.Log)
}

func TestRequestFromCborUnknownType(t *testing.T) {
	data, err := cbor.Encode([]any{99})
	require.NoError(t, err)
	_, err = abci.NewRequestFromCbor(data)
	require.ErrorContains(t, err, "unknown message type")
}

func TestHandlerClassForMessage(t *testing.T) {
	testDefs := []struct {
		msg   protocol.Message
		class abci.HandlerClass
	}{
		{abci.NewMsgEcho(""), abci.HandlerClassNone},
		{abci.NewMsgFlush(), abci.HandlerClassNone},
		{abci.NewMsgInfo("", 0, 0), abci.HandlerClassInfo},
		{abci.NewMsgSetOption("k", "v"), abci.HandlerClassInfo},
		{abci.NewMsgQuery(nil, "", 0, false), abci.HandlerClassInfo},
		{abci.NewMsgInitChain("test-chain", 1, nil), abci.HandlerClassConsensus},
		{abci.NewMsgBeginBlock(nil, 1), abci.HandlerClassConsensus},
		{abci.NewMsgDeliverTx(nil), abci.HandlerClassConsensus},
		{abci.NewMsgEndBlock(1), abci.HandlerClassConsensus},
		{abci.NewMsgCommit(), abci.HandlerClassConsensus},
		{abci.NewMsgListSnapshots(), abci.HandlerClassStateSync},
		{abci.NewMsgOfferSnapshot(abci.Snapshot{}, nil), abci.HandlerClassStateSync},
		{abci.NewMsgLoadSnapshotChunk(0, 0, 0), abci.HandlerClassStateSync},
		{abci.NewMsgApplySnapshotChunk(0, nil, ""), abci.HandlerClassStateSync},
		{abci.NewMsgCheckTx(nil, 0), abci.HandlerClassMempool},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.class,
			abci.HandlerClassForMessage(testDef.msg),
			"unexpected class for %s",
			abci.MessageName(testDef.msg),
		)
	}
}
