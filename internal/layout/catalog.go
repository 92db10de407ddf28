/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout is the compiled-in catalog of page layout templates.
// The catalog is read-only; every accessor hands out copies.
package layout

import (
	"errors"
	"fmt"

	"graphicnovel/internal/domain"
)

var templates = []domain.LayoutTemplate{
	{
		ID:      "single",
		Name:    "Single Panel",
		Columns: 1,
		Rows:    1,
		Areas:   [][]string{{"main"}},
	},
	{
		ID:      "sideBySide",
		Name:    "Side by Side",
		Columns: 2,
		Rows:    1,
		Areas:   [][]string{{"left", "right"}},
	},
	{
		ID:      "threePanel",
		Name:    "Three Panel",
		Columns: 3,
		Rows:    1,
		Areas:   [][]string{{"left", "center", "right"}},
	},
	{
		ID:      "fourGrid",
		Name:    "Four Grid",
		Columns: 2,
		Rows:    2,
		Areas: [][]string{
			{"topLeft", "topRight"},
			{"bottomLeft", "bottomRight"},
		},
	},
}

// List returns all templates in catalog order.
func List() []domain.LayoutTemplate {
	out := make([]domain.LayoutTemplate, len(templates))
	for i, t := range templates {
		out[i] = t.Clone()
	}
	return out
}

// Get looks up a template by id.
func Get(id string) (domain.LayoutTemplate, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return domain.LayoutTemplate{}, false
}

// Default returns the first template in the catalog.
func Default() domain.LayoutTemplate { return templates[0].Clone() }

// Resolve returns the template for id, or the default when id is unknown.
func Resolve(id string) domain.LayoutTemplate {
	if t, ok := Get(id); ok {
		return t
	}
	return Default()
}

// Validate checks template well-formedness: positive dimensions, a Rows x Columns
// area grid and unique slot names.
func Validate(t domain.LayoutTemplate) error {
	if t.ID == "" {
		return errors.New("layout id is empty")
	}
	if t.Columns <= 0 || t.Rows <= 0 {
		return fmt.Errorf("layout %s: dimensions must be positive, got %dx%d", t.ID, t.Columns, t.Rows)
	}
	if len(t.Areas) != t.Rows {
		return fmt.Errorf("layout %s: %d area rows, want %d", t.ID, len(t.Areas), t.Rows)
	}
	seen := make(map[string]struct{}, t.Columns*t.Rows)
	for r, row := range t.Areas {
		if len(row) != t.Columns {
			return fmt.Errorf("layout %s: row %d has %d slots, want %d", t.ID, r, len(row), t.Columns)
		}
		for _, s := range row {
			if s == "" {
				return fmt.Errorf("layout %s: empty slot name in row %d", t.ID, r)
			}
			if _, dup := seen[s]; dup {
				return fmt.Errorf("layout %s: duplicate slot %q", t.ID, s)
			}
			seen[s] = struct{}{}
		}
	}
	return nil
}
