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

// Package protocol provides the generic connection engine for framed
// request/response protocols: incremental frame decoding, concurrent
// request dispatch, and strictly ordered response emission
package protocol

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/goabci/cbor"
)

// Receive buffer size for the transport read loop
const readBufferSize = 8192

// Number of dispatch units that can be queued before the read loop
// backpressures
const pendingQueueSize = 64

// Protocol implements the framing and ordered-dispatch engine for a single
// connection. Requests are dispatched concurrently as they are decoded, but
// responses are always written in the order the requests arrived
type Protocol struct {
	config        ProtocolConfig
	framer        Framer
	sendMutex     sync.Mutex
	pending       chan *dispatchUnit
	doneChan      chan struct{}
	recvDoneChan  chan struct{}
	onceStop      sync.Once
	shutdownCause error
	waitGroup     sync.WaitGroup
}

// ProtocolConfig provides the configuration for Protocol
type ProtocolConfig struct {
	Name                string
	Conn                net.Conn
	ErrorChan           chan error
	Logger              *slog.Logger
	Timeout             time.Duration
	MessageFromCborFunc MessageFromCborFunc
	MessageNameFunc     MessageNameFunc
	DispatchFunc        DispatchFunc
}

// ProtocolOptions provides common arguments for the concrete protocol
type ProtocolOptions struct {
	Conn      net.Conn
	ErrorChan chan error
	Logger    *slog.Logger
	Timeout   time.Duration
}

// MessageFromCborFunc parses a frame payload into a typed message
type MessageFromCborFunc func([]byte) (Message, error)

// MessageNameFunc returns the wire variant name for a message
type MessageNameFunc func(Message) string

// DispatchFunc produces the response for a single decoded request. It is
// called from a dedicated goroutine per request and may block arbitrarily
type DispatchFunc func(string, Message) (Message, error)

func New(config ProtocolConfig) *Protocol {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	p := &Protocol{
		config:       config,
		pending:      make(chan *dispatchUnit, pendingQueueSize),
		doneChan:     make(chan struct{}),
		recvDoneChan: make(chan struct{}),
	}
	return p
}

// Start begins processing frames from the transport
func (p *Protocol) Start() {
	p.waitGroup.Add(2)
	go p.recvLoop()
	go p.sendLoop()
}

// Stop shuts the engine down, failing any in-flight dispatch units with
// ErrConnectionReset. The caller is expected to close the underlying
// transport to unblock a pending read
func (p *Protocol) Stop() {
	p.shutdown(ErrConnectionReset)
}

// Wait blocks until the engine goroutines have finished and every pending
// dispatch unit has settled
func (p *Protocol) Wait() {
	p.waitGroup.Wait()
}

// shutdown records the failure cause for pending dispatch units and signals
// the engine goroutines. Only the first cause wins
func (p *Protocol) shutdown(cause error) {
	p.onceStop.Do(func() {
		if cause == nil {
			cause = ErrConnectionReset
		}
		p.shutdownCause = cause
		close(p.doneChan)
	})
}

// closeCause returns the recorded shutdown cause. Only valid after doneChan
// is closed
func (p *Protocol) closeCause() error {
	return p.shutdownCause
}

// sendError reports an error to the consumer and shuts the engine down
func (p *Protocol) sendError(err error) {
	// Immediately return if we're already shutting down
	select {
	case <-p.doneChan:
		return
	default:
	}
	p.config.ErrorChan <- err
	p.shutdown(err)
}

func (p *Protocol) recvLoop() {
	defer p.waitGroup.Done()
	defer close(p.recvDoneChan)
	buf := make([]byte, readBufferSize)
	for {
		// Break out of read loop if we're shutting down
		select {
		case <-p.doneChan:
			return
		default:
		}
		if p.config.Timeout > 0 {
			// Treat an idle connection as a disconnect
			if err := p.config.Conn.SetReadDeadline(time.Now().Add(p.config.Timeout)); err != nil {
				p.sendError(err)
				return
			}
		}
		n, err := p.config.Conn.Read(buf)
		if n > 0 {
			payloads, ferr := p.framer.Ingest(buf[:n])
			for _, payload := range payloads {
				if !p.processPayload(payload) {
					return
				}
			}
			if ferr != nil {
				p.sendError(fmt.Errorf("%s: %w", p.config.Name, ferr))
				return
			}
		}
		if err != nil {
			p.sendError(err)
			return
		}
	}
}

// processPayload decodes a single frame payload and enqueues its dispatch
// unit. It returns false if the engine is shutting down
func (p *Protocol) processPayload(payload []byte) bool {
	msg, err := p.config.MessageFromCborFunc(payload)
	if err != nil {
		p.sendError(fmt.Errorf("%s: decode error: %w", p.config.Name, err))
		return false
	}
	// No new dispatch units once shutdown has begun
	select {
	case <-p.doneChan:
		return false
	default:
	}
	unit := &dispatchUnit{
		name: p.config.MessageNameFunc(msg),
		done: make(chan struct{}),
	}
	go p.runDispatch(unit, msg)
	select {
	case p.pending <- unit:
	case <-p.doneChan:
		unit.fail(p.closeCause())
		return false
	}
	return true
}

func (p *Protocol) runDispatch(unit *dispatchUnit, msg Message) {
	resp, err := p.config.DispatchFunc(unit.name, msg)
	if err != nil {
		unit.fail(err)
		return
	}
	unit.complete(resp)
}

// sendLoop drains the pending queue from its head, blocking on the head
// unit until it settles. This is what converts out-of-order completion into
// strictly ordered emission
func (p *Protocol) sendLoop() {
	defer p.waitGroup.Done()
	for {
		select {
		case <-p.doneChan:
			p.failPending()
			return
		case unit := <-p.pending:
			select {
			case <-unit.done:
			case <-p.doneChan:
				unit.fail(p.closeCause())
				<-unit.done
			}
			if unit.err != nil {
				p.config.Logger.Error(
					"operation failed",
					"component", p.config.Name,
					"operation", unit.name,
					"error", unit.err,
				)
				p.sendError(
					fmt.Errorf("%s: operation %s: %w", p.config.Name, unit.name, unit.err),
				)
				p.failPending()
				return
			}
			if err := p.SendMessage(unit.response); err != nil {
				p.sendError(err)
				p.failPending()
				return
			}
		}
	}
}

// failPending force-fails every queued dispatch unit with the shutdown
// cause and waits for each to settle. The read loop is waited on first so
// that no further units can arrive
func (p *Protocol) failPending() {
	<-p.recvDoneChan
	cause := p.closeCause()
	for {
		select {
		case unit := <-p.pending:
			unit.fail(cause)
			<-unit.done
		default:
			return
		}
	}
}

// SendMessage encodes a message and writes it to the transport as a single
// frame
func (p *Protocol) SendMessage(msg Message) error {
	select {
	case <-p.doneChan:
		return ErrProtocolShuttingDown
	default:
	}
	data := msg.Cbor()
	if data == nil {
		var err error
		data, err = cbor.Encode(msg)
		if err != nil {
			return fmt.Errorf("%s: encode error: %w", p.config.Name, err)
		}
	}
	// Only one goroutine may write to the transport at a time
	p.sendMutex.Lock()
	defer p.sendMutex.Unlock()
	return WriteFrame(p.config.Conn, data)
}

// dispatchUnit tracks one in-flight request/response pair and its position
// in emission order
type dispatchUnit struct {
	name       string
	settleOnce sync.Once
	done       chan struct{}
	response   Message
	err        error
}

// complete settles the unit with a response. It loses against an earlier
// forced failure
func (u *dispatchUnit) complete(msg Message) {
	u.settleOnce.Do(func() {
		u.response = msg
		close(u.done)
	})
}

// fail settles the unit with an error
func (u *dispatchUnit) fail(err error) {
	u.settleOnce.Do(func() {
		u.err = err
		close(u.done)
	})
}
