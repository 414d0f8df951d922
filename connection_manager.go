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

import "sync"

// ConnectionManagerConnClosedFunc is a function that takes a connection ID
// and an optional error. It is called after the connection has fully torn
// down
type ConnectionManagerConnClosedFunc func(ConnectionId, error)

// ConnectionManager tracks the currently open connections. Only the
// connection lifecycle path mutates it
type ConnectionManager struct {
	config           ConnectionManagerConfig
	connections      map[ConnectionId]*Connection
	connectionsMutex sync.Mutex
}

type ConnectionManagerConfig struct {
	ConnClosedFunc ConnectionManagerConnClosedFunc
}

func NewConnectionManager(cfg ConnectionManagerConfig) *ConnectionManager {
	return &ConnectionManager{
		config:      cfg,
		connections: make(map[ConnectionId]*Connection),
	}
}

// AddConnection registers a connection and starts a goroutine that fires
// the configured ConnClosedFunc once the connection's teardown completes
func (c *ConnectionManager) AddConnection(conn *Connection) {
	connId := conn.Id()
	c.connectionsMutex.Lock()
	c.connections[connId] = conn
	c.connectionsMutex.Unlock()
	go func() {
		// The error channel is closed only after every pending dispatch unit
		// has settled, so the closed callback never observes a partially
		// torn down connection
		var connErr error
		for err := range conn.ErrorChan() {
			if connErr == nil {
				connErr = err
			}
		}
		if c.config.ConnClosedFunc != nil {
			c.config.ConnClosedFunc(connId, connErr)
		}
	}()
}

func (c *ConnectionManager) RemoveConnection(connId ConnectionId) {
	c.connectionsMutex.Lock()
	delete(c.connections, connId)
	c.connectionsMutex.Unlock()
}

func (c *ConnectionManager) GetConnectionById(connId ConnectionId) *Connection {
	c.connectionsMutex.Lock()
	defer c.connectionsMutex.Unlock()
	return c.connections[connId]
}

// GetConnections returns a snapshot of the currently registered connections
func (c *ConnectionManager) GetConnections() []*Connection {
	c.connectionsMutex.Lock()
	defer c.connectionsMutex.Unlock()
	ret := make([]*Connection, 0, len(c.connections))
	for _, conn := range c.connections {
		ret = append(ret, conn)
	}
	return ret
}

// ConnectionCount returns the number of currently registered connections
func (c *ConnectionManager) ConnectionCount() int {
	c.connectionsMutex.Lock()
	defer c.connectionsMutex.Unlock()
	return len(c.connections)
}
