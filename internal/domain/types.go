/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// This file defines the data model shared by the catalogs, the panel store and the exporters.
// JSON field names are part of the persisted format and must stay stable.

// LayoutTemplate is a named grid of slots. Areas is row-major; every slot name is unique
// within the template and len(Slots()) == Columns*Rows.
type LayoutTemplate struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Columns int        `json:"columns"`
	Rows    int        `json:"rows"`
	Areas   [][]string `json:"areas"`
}

// Slots returns the flattened slot names in definition order (row by row, column by column).
func (t LayoutTemplate) Slots() []string {
	out := make([]string, 0, t.Columns*t.Rows)
	for _, row := range t.Areas {
		out = append(out, row...)
	}
	return out
}

// HasSlot reports whether name is one of the template's slots.
func (t LayoutTemplate) HasSlot(name string) bool {
	for _, row := range t.Areas {
		for _, s := range row {
			if s == name {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias catalog data.
func (t LayoutTemplate) Clone() LayoutTemplate {
	c := t
	c.Areas = make([][]string, len(t.Areas))
	for i, row := range t.Areas {
		c.Areas[i] = append([]string(nil), row...)
	}
	return c
}

// Style is a visual novel style. ImageQuery is the fixed tag appended to image lookups.
type Style struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageQuery  string `json:"imageQuery"`
}

// Panel is one generated image occupying exactly one slot.
type Panel struct {
	ID        int64     `json:"id"`
	Image     string    `json:"image"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
	Position  string    `json:"position"` // slot name
	Style     string    `json:"style"`    // style id, informational
}

// Project is the explicitly saved unit: selected style, selected layout and all panels.
type Project struct {
	Style        Style          `json:"style"`
	Layout       LayoutTemplate `json:"layout"`
	Panels       []Panel        `json:"panels"`
	LastModified time.Time      `json:"lastModified"`
}

// ExportFormat is carried through exports as a tag.
type ExportFormat string

const (
	FormatDigital ExportFormat = "digital"
	FormatPrint   ExportFormat = "print"
)

// Valid reports whether f is a known export format.
func (f ExportFormat) Valid() bool { return f == FormatDigital || f == FormatPrint }

// ExportMetadata describes the exported document.
type ExportMetadata struct {
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// ExportDocument is the one-way downloadable artifact.
type ExportDocument struct {
	Style    Style          `json:"style"`
	Layout   LayoutTemplate `json:"layout"`
	Panels   []Panel        `json:"panels"`
	Format   ExportFormat   `json:"format"`
	Metadata ExportMetadata `json:"metadata"`
}
