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
	"log/slog"
	"net"
	"time"

	"github.com/blinklabs-io/goabci/protocol/abci"
)

// ConnectionOptionFunc is a type that represents functions that modify the
// Connection config
type ConnectionOptionFunc func(*Connection)

// WithConnection specifies the accepted connection to use
func WithConnection(conn net.Conn) ConnectionOptionFunc {
	return func(c *Connection) {
		c.conn = conn
	}
}

// WithApplication specifies the application that provides connection
// handlers
func WithApplication(app abci.Application) ConnectionOptionFunc {
	return func(c *Connection) {
		c.app = app
	}
}

// WithLogger specifies the logger to use. If none is provided,
// slog.Default() will be used
func WithLogger(logger *slog.Logger) ConnectionOptionFunc {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithTimeout specifies the idle/read timeout. The default is
// DefaultTimeout; zero disables the timeout
func WithTimeout(timeout time.Duration) ConnectionOptionFunc {
	return func(c *Connection) {
		c.timeout = timeout
	}
}

// WithErrorChan specifies the error channel to use. If none is provided,
// one will be created. The channel is closed when connection teardown
// completes, so it must not be shared between connections
func WithErrorChan(errorChan chan error) ConnectionOptionFunc {
	return func(c *Connection) {
		c.errorChan = errorChan
	}
}
