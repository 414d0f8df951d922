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

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Maximum payload length we'll accept in a single frame
const MaxFramePayloadLength = 64 * 1024 * 1024

// Framer converts a possibly-fragmented byte stream into discrete message
// payloads and back. Each frame on the wire is a varint encoding
// (payload length << 1) followed by the payload bytes. The low bit of the
// length prefix is reserved and ignored by this layer
type Framer struct {
	recvBuffer bytes.Buffer
}

// Ingest appends data to the receive buffer and extracts as many complete
// frames as are available. A partial frame is left in the buffer until more
// data arrives. The returned payloads do not alias the internal buffer
func (f *Framer) Ingest(data []byte) ([][]byte, error) {
	f.recvBuffer.Write(data)
	var payloads [][]byte
	for {
		buf := f.recvBuffer.Bytes()
		if len(buf) == 0 {
			break
		}
		prefix, prefixLen := binary.Uvarint(buf)
		if prefixLen == 0 {
			// Not enough data for the length prefix yet
			break
		}
		if prefixLen < 0 {
			return payloads, ErrFramingInvalidPrefix
		}
		payloadLen := prefix >> 1
		if payloadLen > MaxFramePayloadLength {
			return payloads, fmt.Errorf(
				"%w: declared payload length %d",
				ErrFramingPayloadTooLarge,
				payloadLen,
			)
		}
		if uint64(len(buf)-prefixLen) < payloadLen {
			// Wait for the rest of the payload
			break
		}
		payload := make([]byte, payloadLen)
		copy(payload, buf[prefixLen:uint64(prefixLen)+payloadLen])
		payloads = append(payloads, payload)
		// Drop the consumed frame, leaving exactly the unparsed suffix
		f.recvBuffer.Next(prefixLen + int(payloadLen)) // #nosec G115
	}
	return payloads, nil
}

// BufferedLen returns the number of unparsed bytes currently buffered
func (f *Framer) BufferedLen() int {
	return f.recvBuffer.Len()
}

// WriteFrame encodes payload as a frame and writes it to w. The length
// prefix and the payload body are written separately, matching the peer's
// expectation of transport-level ordering only
func WriteFrame(w io.Writer, payload []byte) error {
	prefix := make([]byte, binary.MaxVarintLen64)
	prefixLen := binary.PutUvarint(prefix, uint64(len(payload))<<1)
	if _, err := w.Write(prefix[:prefixLen]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}
