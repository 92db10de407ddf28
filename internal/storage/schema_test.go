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
	"errors"
	"testing"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/kv"
)

func TestSchemasCompile(t *testing.T) {
	if err := loadSchemas(); err != nil {
		t.Fatalf("loadSchemas: %v", err)
	}
}

// TestPersistedPanelsConformToSchema checks what the store writes against the
// embedded schema, read independently of the validation helpers.
func TestPersistedPanelsConformToSchema(t *testing.T) {
	mem := kv.NewMemory()
	s := newStore(t, mem)
	if _, err := s.Place(testLayout, "a ship at dawn", "main", "fantasy", "https://img/ship"); err != nil {
		t.Fatalf("Place: %v", err)
	}
	raw, _, _ := mem.Get(KeyPanels)

	schemaBytes, err := schemaFS.ReadFile("schemas/panels.schema.json")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewStringLoader(raw))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("persisted panels do not conform to schema")
	}
}

func TestValidateProjectJSON(t *testing.T) {
	p := sampleProject()
	p.LastModified = time.Now().UTC()
	data, _ := json.Marshal(p)
	if err := ValidateProjectJSON(data); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	p.Layout.Columns = 0
	data, _ = json.Marshal(p)
	if err := ValidateProjectJSON(data); !errors.Is(err, ErrPersistenceCorrupt) {
		t.Fatalf("zero columns accepted: %v", err)
	}
}

func TestValidatePanelsJSONRejectsNegativeID(t *testing.T) {
	data, _ := json.Marshal([]domain.Panel{{ID: -1, Prompt: "x", Position: "main"}})
	if err := ValidatePanelsJSON(data); !errors.Is(err, ErrPersistenceCorrupt) {
		t.Fatalf("negative id accepted: %v", err)
	}
}
