/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// Keys used in the kv store.
const (
	KeyPanels   = "panels"
	KeyProject  = "project"
	KeySession  = "session"
	KeyAutosave = "autosave"
)

var (
	// ErrPersistenceCorrupt marks stored or restored data that fails to parse or validate.
	ErrPersistenceCorrupt = errors.New("persisted data is corrupt")
	// ErrSlotConflict is returned by Place when the slot already holds a panel.
	ErrSlotConflict = errors.New("slot already occupied")
	// ErrNoProject is returned by LoadProject when nothing was saved yet.
	ErrNoProject = errors.New("no saved project")
	// ErrInvalidPanel is returned by Place for a blank prompt or a slot the layout does not define.
	ErrInvalidPanel = errors.New("invalid panel")
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce    sync.Once
	panelsSchema  *gojsonschema.Schema
	projectSchema *gojsonschema.Schema
	schemaErr     error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		compile := func(name string) (*gojsonschema.Schema, error) {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				return nil, fmt.Errorf("read schema %s: %w", name, err)
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
			if err != nil {
				return nil, fmt.Errorf("compile schema %s: %w", name, err)
			}
			return s, nil
		}
		if panelsSchema, schemaErr = compile("panels.schema.json"); schemaErr != nil {
			return
		}
		projectSchema, schemaErr = compile("project.schema.json")
	})
	return schemaErr
}

// validateDoc checks raw JSON against schema and reports violations as ErrPersistenceCorrupt.
func validateDoc(schema func() *gojsonschema.Schema, raw []byte) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	res, err := schema().Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// not parseable as JSON at all
		return fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrPersistenceCorrupt, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidatePanelsJSON checks a panel collection document.
func ValidatePanelsJSON(raw []byte) error {
	return validateDoc(func() *gojsonschema.Schema { return panelsSchema }, raw)
}

// ValidateProjectJSON checks a saved project document.
func ValidateProjectJSON(raw []byte) error {
	return validateDoc(func() *gojsonschema.Schema { return projectSchema }, raw)
}
