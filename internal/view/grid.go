/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package view renders the panel grid as text for the terminal.
package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"graphicnovel/internal/domain"
)

// EmptyLabel is shown in slots without a panel.
const EmptyLabel = "Empty Panel"

// Options controls cell sizing. Zero values use defaults.
type Options struct {
	CellWidth  int
	CellHeight int
}

var (
	slotStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	filledColor = lipgloss.Color("10")
	emptyColor  = lipgloss.Color("8")
)

// RenderGrid draws the layout as bordered cells, one per slot, in the
// template's rows and columns. Panels outside the layout are not drawn.
func RenderGrid(layout domain.LayoutTemplate, panels []domain.Panel, opt Options) string {
	w := opt.CellWidth
	if w <= 0 {
		w = 26
	}
	h := opt.CellHeight
	if h <= 0 {
		h = 4
	}
	bySlot := make(map[string]domain.Panel, len(panels))
	for _, p := range panels {
		bySlot[p.Position] = p
	}

	rows := make([]string, 0, len(layout.Areas))
	for _, row := range layout.Areas {
		cells := make([]string, 0, len(row))
		for _, slot := range row {
			cells = append(cells, renderCell(slot, bySlot, w, h))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	header := titleStyle.Render(fmt.Sprintf("%s (%dx%d)", layout.Name, layout.Columns, layout.Rows))
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, rows...)...)
}

func renderCell(slot string, bySlot map[string]domain.Panel, w, h int) string {
	var b strings.Builder
	b.WriteString(slotStyle.Render(slot))
	b.WriteString("\n")
	border := emptyColor
	if p, ok := bySlot[slot]; ok {
		border = filledColor
		b.WriteString(truncate(p.Prompt, (w-2)*(h-2)))
		b.WriteString("\n")
		b.WriteString(idStyle.Render(fmt.Sprintf("#%d", p.ID)))
	} else {
		b.WriteString(emptyStyle.Render(EmptyLabel))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(w).
		Height(h).
		Padding(0, 1).
		Render(b.String())
}

// truncate shortens s to at most n terminal cells, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return s
	}
	return runewidth.Truncate(s, n, "…")
}
