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

package goabci

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/goabci/protocol/abci"
)

// Server accepts consensus engine connections and manages their lifecycle
type Server struct {
	app       abci.Application
	logger    *slog.Logger
	timeout   time.Duration
	manager   *ConnectionManager
	listener  net.Listener
	doneChan  chan struct{}
	onceClose sync.Once
	waitGroup sync.WaitGroup
}

// ServerOptionFunc is a type that represents functions that modify the
// Server config
type ServerOptionFunc func(*Server)

// WithServerApplication specifies the application that provides connection
// handlers
func WithServerApplication(app abci.Application) ServerOptionFunc {
	return func(s *Server) {
		s.app = app
	}
}

// WithServerLogger specifies the logger to use. If none is provided,
// slog.Default() will be used
func WithServerLogger(logger *slog.Logger) ServerOptionFunc {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerTimeout specifies the per-connection idle/read timeout
func WithServerTimeout(timeout time.Duration) ServerOptionFunc {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// NewServer returns a new Server object with the specified options
func NewServer(options ...ServerOptionFunc) (*Server, error) {
	s := &Server{
		timeout:  DefaultTimeout,
		doneChan: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.app == nil {
		return nil, errors.New("no application provided")
	}
	s.manager = NewConnectionManager(
		ConnectionManagerConfig{
			ConnClosedFunc: s.connectionClosed,
		},
	)
	return s, nil
}

// ConnectionManager returns the server's connection registry
func (s *Server) ConnectionManager() *ConnectionManager {
	return s.manager
}

// ListenAndServe listens on the provided network/address ("tcp" or "unix")
// and serves connections until Shutdown is called
func (s *Server) ListenAndServe(network string, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections from the provided listener until it is closed.
// Each accepted connection is registered with the connection manager and
// deregistered once its teardown completes
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	s.waitGroup.Add(1)
	defer s.waitGroup.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.doneChan:
				return nil
			default:
			}
			return err
		}
		c, err := NewConnection(
			WithConnection(conn),
			WithApplication(s.app),
			WithLogger(s.logger),
			WithTimeout(s.timeout),
		)
		if err != nil {
			s.logger.Error(
				"failed to set up connection",
				"remote", conn.RemoteAddr(),
				"error", err,
			)
			conn.Close()
			continue
		}
		s.manager.AddConnection(c)
	}
}

// Shutdown closes the listener and every registered connection, waiting for
// the accept loop to finish
func (s *Server) Shutdown() error {
	var err error
	s.onceClose.Do(func() {
		close(s.doneChan)
		if s.listener != nil {
			err = s.listener.Close()
		}
		for _, conn := range s.manager.GetConnections() {
			_ = conn.Close()
		}
		s.waitGroup.Wait()
	})
	return err
}

// connectionClosed deregisters a closed connection
func (s *Server) connectionClosed(connId ConnectionId, err error) {
	s.manager.RemoveConnection(connId)
	if err != nil {
		s.logger.Info(
			"connection closed",
			"connection", connId.String(),
			"error", err,
		)
	}
}
