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

// Package goabci implements the server side of the ABCI socket protocol
// used by a blockchain consensus engine to drive an external application.
//
// One physical connection carries a continuous stream of length-prefixed
// request/response frames. Requests are dispatched to the application
// concurrently, but responses are always written in the order the requests
// arrived. The consensus engine opens a separate connection per handler
// class (info, consensus, state-sync, mempool).
//
// This package is the main entry point into this library. The protocol
// packages can be used outside of this one, but it's not a primary design
// goal.
package goabci

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/goabci/protocol"
	"github.com/blinklabs-io/goabci/protocol/abci"
)

// DefaultTimeout is the default idle/read timeout for a connection. A
// connection idle for longer is treated as disconnected
const DefaultTimeout = 300 * time.Second

// ConnectionId uniquely identifies a connection
type ConnectionId struct {
	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// String returns a human-readable connection ID
func (c ConnectionId) String() string {
	return fmt.Sprintf(
		"%s<->%s",
		c.LocalAddr.String(),
		c.RemoteAddr.String(),
	)
}

// The Connection type is a wrapper around a net.Conn object that handles
// communication with a consensus engine using the ABCI socket protocol
type Connection struct {
	conn           net.Conn
	app            abci.Application
	logger         *slog.Logger
	timeout        time.Duration
	abci           *abci.ABCI
	errorChan      chan error
	protoErrorChan chan error
	doneChan       chan struct{}
	waitGroup      sync.WaitGroup
	onceClose      sync.Once
}

// NewConnection returns a new Connection object with the specified options
// and begins processing frames from the connection
func NewConnection(options ...ConnectionOptionFunc) (*Connection, error) {
	c := &Connection{
		protoErrorChan: make(chan error, 10),
		doneChan:       make(chan struct{}),
		timeout:        DefaultTimeout,
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	if c.errorChan == nil {
		c.errorChan = make(chan error, 10)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.conn == nil {
		return nil, errors.New("no connection provided")
	}
	if c.app == nil {
		return nil, errors.New("no application provided")
	}
	c.setupConnection()
	return c, nil
}

// New is an alias to NewConnection
func New(options ...ConnectionOptionFunc) (*Connection, error) {
	return NewConnection(options...)
}

// Id returns the connection ID
func (c *Connection) Id() ConnectionId {
	return ConnectionId{
		LocalAddr:  c.conn.LocalAddr(),
		RemoteAddr: c.conn.RemoteAddr(),
	}
}

// RemoteAddr returns the address of the remote peer
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ErrorChan returns the channel for asynchronous errors. It is closed once
// connection teardown has fully completed
func (c *Connection) ErrorChan() chan error {
	return c.errorChan
}

// Handler returns the handler bound to this connection, or nil if no
// classifiable request has arrived yet
func (c *Connection) Handler() abci.Handler {
	return c.abci.Handler()
}

// Close shuts down the connection. Any in-flight dispatch units are failed
// with the disconnect cause and waited for before the error channel is
// closed
func (c *Connection) Close() error {
	var err error
	c.onceClose.Do(func() {
		// Close doneChan to signify that we're shutting down
		close(c.doneChan)
		// Stop the engine; this fails pending dispatch units
		c.abci.Stop()
		// Close the socket to unblock a pending read
		err = c.conn.Close()
		// Wait for all pending dispatch units to settle
		c.abci.Wait()
		// The engine can no longer produce errors
		close(c.protoErrorChan)
		// Wait for other goroutines to finish
		c.waitGroup.Wait()
		// Closing errorChan signals that teardown is complete
		close(c.errorChan)
	})
	return err
}

// setupConnection initializes the ABCI protocol engine and starts the
// goroutine that propagates engine errors
func (c *Connection) setupConnection() {
	protoOptions := protocol.ProtocolOptions{
		Conn:      c.conn,
		ErrorChan: c.protoErrorChan,
		Logger:    c.logger,
		Timeout:   c.timeout,
	}
	c.abci = abci.New(protoOptions, c.app)
	// Start goroutine to pass along errors from the protocol engine
	c.waitGroup.Add(1)
	go func() {
		defer c.waitGroup.Done()
		select {
		case <-c.doneChan:
			return
		case err, ok := <-c.protoErrorChan:
			// The channel is closed, which means we're already shutting down
			if !ok {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Return a bare io.EOF error if error is EOF/ErrUnexpectedEOF
				c.errorChan <- io.EOF
			} else {
				// Wrap error message to denote it comes from the protocol engine
				c.errorChan <- fmt.Errorf("protocol error: %w", err)
			}
			// Close connection on engine errors
			go func() {
				_ = c.Close()
			}()
		}
	}()
	c.abci.Start()
}
