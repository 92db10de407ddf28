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
	"time"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/kv"
	"graphicnovel/internal/layout"
)

// ProjectStore reads and writes the explicitly saved project under the "project" key.
type ProjectStore struct {
	kv  kv.Store
	now func() time.Time
}

// NewProjectStore returns a ProjectStore over store. A nil clock means time.Now.
func NewProjectStore(store kv.Store, now func() time.Time) *ProjectStore {
	if now == nil {
		now = time.Now
	}
	return &ProjectStore{kv: store, now: now}
}

// Save stamps LastModified and writes the project as indented JSON.
// The stamped project is returned.
func (ps *ProjectStore) Save(p domain.Project) (domain.Project, error) {
	return ps.saveTo(KeyProject, p)
}

// Autosave writes p under the "autosave" key, leaving the explicit save alone.
func (ps *ProjectStore) Autosave(p domain.Project) error {
	_, err := ps.saveTo(KeyAutosave, p)
	return err
}

func (ps *ProjectStore) saveTo(key string, p domain.Project) (domain.Project, error) {
	p.LastModified = ps.now().UTC()
	if p.Panels == nil {
		p.Panels = []domain.Panel{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return domain.Project{}, fmt.Errorf("marshal project: %w", err)
	}
	if err := ValidateProjectJSON(data); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	if err := ps.kv.Set(key, string(data)); err != nil {
		return domain.Project{}, fmt.Errorf("persist project: %w", err)
	}
	return p, nil
}

// Load returns the saved project. ErrNoProject means nothing was saved yet;
// ErrPersistenceCorrupt covers unparsable JSON, schema violations and a
// malformed layout grid.
func (ps *ProjectStore) Load() (domain.Project, error) { return ps.loadFrom(KeyProject) }

// LoadAutosave returns the project written by Autosave.
func (ps *ProjectStore) LoadAutosave() (domain.Project, error) { return ps.loadFrom(KeyAutosave) }

func (ps *ProjectStore) loadFrom(key string) (domain.Project, error) {
	raw, ok, err := ps.kv.Get(key)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	if !ok {
		return domain.Project{}, ErrNoProject
	}
	if err := ValidateProjectJSON([]byte(raw)); err != nil {
		return domain.Project{}, err
	}
	var p domain.Project
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}
	if err := layout.Validate(p.Layout); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}
	if p.Panels == nil {
		p.Panels = []domain.Panel{}
	}
	return p, nil
}

// Session is the current layout and style selection, kept between CLI invocations.
type Session struct {
	Layout string `json:"layout"`
	Style  string `json:"style"`
}

// SaveSession writes the selection under the "session" key.
func SaveSession(store kv.Store, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := store.Set(KeySession, string(data)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// LoadSession returns the stored selection. A missing or unreadable entry
// yields the zero Session, which the catalogs resolve to their defaults.
func LoadSession(store kv.Store) (Session, error) {
	raw, ok, err := store.Get(KeySession)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return Session{}, nil
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, nil
	}
	return s, nil
}
