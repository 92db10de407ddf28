/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/kv"
	applog "graphicnovel/internal/log"
)

// PanelStore holds the authoritative panel collection and mirrors it to the
// "panels" key after every mutation. The stored copy is written before the
// in-memory collection changes, so a failed write leaves both untouched.
type PanelStore struct {
	mu      sync.Mutex
	kv      kv.Store
	panels  []domain.Panel
	now     func() time.Time
	lastID  int64
	loadErr error
}

// Option configures a PanelStore.
type Option func(*PanelStore)

// WithClock replaces time.Now for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *PanelStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPanelStore loads the persisted collection from store. Stored data that
// does not parse or validate yields an empty collection; the reason is kept
// in LoadError. Only a failing backend read is returned as an error.
func NewPanelStore(store kv.Store, opts ...Option) (*PanelStore, error) {
	if store == nil {
		return nil, fmt.Errorf("panel store: nil kv store")
	}
	s := &PanelStore{kv: store, now: time.Now, panels: []domain.Panel{}}
	for _, o := range opts {
		o(s)
	}
	raw, ok, err := store.Get(KeyPanels)
	if err != nil {
		return nil, fmt.Errorf("load panels: %w", err)
	}
	if !ok {
		return s, nil
	}
	panels, derr := DecodePanels(raw)
	if derr != nil {
		s.loadErr = derr
		applog.WithComponent("storage").Warn("stored panels unreadable; starting empty", "err", derr)
		return s, nil
	}
	s.panels = panels
	for _, p := range panels {
		if p.ID > s.lastID {
			s.lastID = p.ID
		}
	}
	return s, nil
}

// DecodePanels parses and validates a serialized panel collection.
func DecodePanels(raw string) ([]domain.Panel, error) {
	if err := ValidatePanelsJSON([]byte(raw)); err != nil {
		return nil, err
	}
	var panels []domain.Panel
	if err := json.Unmarshal([]byte(raw), &panels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}
	if panels == nil {
		panels = []domain.Panel{}
	}
	return panels, nil
}

// LoadError reports why the stored collection was discarded at construction, if it was.
func (s *PanelStore) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// FindOpenSlot returns the first slot of layout, in row-major order, that holds no panel.
// ok is false when every slot is taken.
func (s *PanelStore) FindOpenSlot(layout domain.LayoutTemplate) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range layout.Slots() {
		if s.indexAtLocked(slot) < 0 {
			return slot, true
		}
	}
	return "", false
}

// Place creates a panel in slot of lay and persists the collection.
// The prompt must not be blank and slot must belong to lay.
func (s *PanelStore) Place(lay domain.LayoutTemplate, prompt, slot, styleID, image string) (domain.Panel, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Panel{}, fmt.Errorf("place %q: blank prompt: %w", slot, ErrInvalidPanel)
	}
	if !lay.HasSlot(slot) {
		return domain.Panel{}, fmt.Errorf("place %q: not a slot of layout %q: %w", slot, lay.ID, ErrInvalidPanel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexAtLocked(slot) >= 0 {
		return domain.Panel{}, fmt.Errorf("place %q: %w", slot, ErrSlotConflict)
	}
	now := s.now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	p := domain.Panel{
		ID:        id,
		Image:     image,
		Prompt:    prompt,
		CreatedAt: now.UTC(),
		Position:  slot,
		Style:     styleID,
	}
	next := make([]domain.Panel, 0, len(s.panels)+1)
	next = append(next, s.panels...)
	next = append(next, p)
	if err := s.persistLocked(next); err != nil {
		return domain.Panel{}, err
	}
	s.panels = next
	s.lastID = id
	return p, nil
}

// Remove deletes the panel with id. Unknown ids are not an error; the
// collection is rewritten either way.
func (s *PanelStore) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]domain.Panel, 0, len(s.panels))
	for _, p := range s.panels {
		if p.ID != id {
			next = append(next, p)
		}
	}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.panels = next
	return nil
}

// Clear removes every panel and persists the empty collection.
func (s *PanelStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := []domain.Panel{}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.panels = next
	return nil
}

// Snapshot returns a copy of the collection in insertion order.
func (s *PanelStore) Snapshot() []domain.Panel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Panel{}, s.panels...)
}

// Restore replaces the whole collection, for example from a loaded project.
// The input is checked for shape only; slot uniqueness is assumed.
func (s *PanelStore) Restore(panels []domain.Panel) error {
	if panels == nil {
		panels = []domain.Panel{}
	}
	raw, err := json.Marshal(panels)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}
	if err := ValidatePanelsJSON(raw); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]domain.Panel{}, panels...)
	if err := s.kv.Set(KeyPanels, string(raw)); err != nil {
		return fmt.Errorf("persist panels: %w", err)
	}
	s.panels = next
	for _, p := range next {
		if p.ID > s.lastID {
			s.lastID = p.ID
		}
	}
	return nil
}

// Get returns the panel with id.
func (s *PanelStore) Get(id int64) (domain.Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.panels {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Panel{}, false
}

// PanelAt returns the panel occupying slot.
func (s *PanelStore) PanelAt(slot string) (domain.Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexAtLocked(slot); i >= 0 {
		return s.panels[i], true
	}
	return domain.Panel{}, false
}

// Len returns the number of panels.
func (s *PanelStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panels)
}

func (s *PanelStore) indexAtLocked(slot string) int {
	for i, p := range s.panels {
		if p.Position == slot {
			return i
		}
	}
	return -1
}

// persistLocked refuses to write anything the loader would reject.
func (s *PanelStore) persistLocked(panels []domain.Panel) error {
	data, err := json.Marshal(panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}
	if err := ValidatePanelsJSON(data); err != nil {
		return err
	}
	if err := s.kv.Set(KeyPanels, string(data)); err != nil {
		return fmt.Errorf("persist panels: %w", err)
	}
	return nil
}
