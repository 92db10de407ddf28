/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import "graphicnovel/internal/domain"

// Preset holds the page treatment that follows from an export format.
type Preset struct {
	IncludeGuides bool    // trim and bleed hairlines
	Bleed         float64 // pt added around the trim box
	Gutter        float64 // pt between grid cells
}

// PresetFor maps a format to its page treatment. Print proofs get bleed and
// guides; digital proofs are trimmed flush.
func PresetFor(f domain.ExportFormat) Preset {
	switch f {
	case domain.FormatPrint:
		return Preset{IncludeGuides: true, Bleed: 9, Gutter: 12}
	default:
		return Preset{IncludeGuides: false, Bleed: 0, Gutter: 8}
	}
}

// orderedPanels returns the panels of doc that sit in a slot of its layout,
// in slot order. Panels whose slot is not in the layout are left out.
func orderedPanels(doc domain.ExportDocument) []domain.Panel {
	bySlot := make(map[string]domain.Panel, len(doc.Panels))
	for _, p := range doc.Panels {
		bySlot[p.Position] = p
	}
	var out []domain.Panel
	for _, s := range doc.Layout.Slots() {
		if p, ok := bySlot[s]; ok {
			out = append(out, p)
		}
	}
	return out
}
