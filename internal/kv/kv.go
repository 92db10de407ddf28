/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package kv provides the local key/value stores that hold the panel collection
// and the saved project. Values are opaque strings (JSON documents in practice).
// Backends: in-memory (tests, ephemeral sessions), one-file-per-key with
// transactional writes and timestamped backups, and an embedded SQLite table.
package kv

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Store is the persistence capability injected into the panel store.
type Store interface {
	// Get returns the value for key; ok is false when the key was never set or was deleted.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	io.Closer
}

// Open constructs the backend named by kind ("memory", "file" or "sqlite") rooted at dir.
func Open(kind, dir string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "memory", "mem":
		return NewMemory(), nil
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return OpenSQLite(dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// Memory is a map-backed Store, safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{values: map[string]string{}} }

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	m.writes++
	return nil
}

// Writes counts Set and Delete calls; tests use it to observe write-through behaviour.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }
