/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package controller turns user intents into panel store mutations. It owns
// the current layout and style selection and the single-flight guard around
// image generation.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/imagefetch"
	"graphicnovel/internal/kv"
	"graphicnovel/internal/layout"
	applog "graphicnovel/internal/log"
	"graphicnovel/internal/storage"
	"graphicnovel/internal/style"
	"graphicnovel/internal/suggest"
)

var (
	// ErrEmptyInput is returned for a blank prompt. Callers treat it as a no-op.
	ErrEmptyInput = errors.New("prompt is empty")
	// ErrBusy rejects a generation while another one is in flight.
	ErrBusy = errors.New("a panel is already being generated")
	// ErrLayoutFull means every slot of the current layout holds a panel.
	ErrLayoutFull = errors.New("all positions in the current layout are filled; choose a different layout or clear some panels")
	// ErrPanelNotFound is returned by Regenerate for an unknown id.
	ErrPanelNotFound = errors.New("panel not found")
)

// Tracker receives anonymous usage events.
type Tracker interface {
	Track(name string, props map[string]any)
}

// Downloader fetches image bytes for proof and archive exports.
type Downloader func(ctx context.Context, urls []string) (map[string][]byte, error)

// Options wires a Controller. Store and Fetcher are required.
type Options struct {
	Store      kv.Store
	Fetcher    imagefetch.Fetcher
	Tracker    Tracker
	Downloader Downloader
	Clock      func() time.Time
	// RememberSelection keeps the layout and style choice in the store so
	// separate processes continue the same session.
	RememberSelection bool
}

// Controller is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	layout   domain.LayoutTemplate
	style    domain.Style
	busy     bool
	remember bool

	store    kv.Store
	panels   *storage.PanelStore
	projects *storage.ProjectStore
	fetch    imagefetch.Fetcher
	track    Tracker
	download Downloader
	now      func() time.Time
	log      *slog.Logger
}

// New loads the panel collection from opts.Store and selects the first
// layout and style, or the remembered ones.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil || opts.Fetcher == nil {
		return nil, errors.New("controller: store and fetcher are required")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	panels, err := storage.NewPanelStore(opts.Store, storage.WithClock(now))
	if err != nil {
		return nil, err
	}
	c := &Controller{
		layout:   layout.Default(),
		style:    style.Default(),
		remember: opts.RememberSelection,
		store:    opts.Store,
		panels:   panels,
		projects: storage.NewProjectStore(opts.Store, now),
		fetch:    opts.Fetcher,
		track:    opts.Tracker,
		download: opts.Downloader,
		now:      now,
		log:      applog.WithComponent("controller"),
	}
	if c.remember {
		sess, err := storage.LoadSession(opts.Store)
		if err != nil {
			return nil, err
		}
		c.layout = layout.Resolve(sess.Layout)
		c.style = style.Resolve(sess.Style)
	}
	return c, nil
}

// DeriveQuery builds the image lookup query: the first three words of the
// prompt joined by commas, followed by the style's query tag.
func DeriveQuery(prompt string, st domain.Style) string {
	words := strings.Fields(prompt)
	if len(words) > 3 {
		words = words[:3]
	}
	q := strings.Join(words, ",")
	if tag := strings.TrimSpace(st.ImageQuery); tag != "" {
		if q != "" {
			q += ","
		}
		q += tag
	}
	return q
}

// Layout returns the selected layout.
func (c *Controller) Layout() domain.LayoutTemplate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layout.Clone()
}

// Style returns the selected style.
func (c *Controller) Style() domain.Style {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style
}

// Busy reports whether a generation is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// LoadError reports stored panel data that had to be discarded at startup.
func (c *Controller) LoadError() error { return c.panels.LoadError() }

// Generate fetches an image for prompt and places a panel in the first free
// slot of the selected layout.
func (c *Controller) Generate(ctx context.Context, prompt string) (domain.Panel, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Panel{}, ErrEmptyInput
	}
	lay, st, err := c.begin()
	if err != nil {
		return domain.Panel{}, err
	}
	defer c.end()
	return c.produce(ctx, prompt, lay, st)
}

// Regenerate removes the panel and generates a new one from newPrompt, or from
// the old prompt when newPrompt is blank. The new panel takes the first free
// slot, which is not necessarily the one just freed.
//
// Unlike a plain remove followed by Generate, an unknown id is rejected with
// ErrPanelNotFound and nothing is generated, since there is no old prompt to
// fall back on and a typo'd id should not fill a slot.
func (c *Controller) Regenerate(ctx context.Context, id int64, newPrompt string) (domain.Panel, error) {
	old, ok := c.panels.Get(id)
	if !ok {
		return domain.Panel{}, fmt.Errorf("regenerate %d: %w", id, ErrPanelNotFound)
	}
	prompt := newPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = old.Prompt
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.Panel{}, ErrEmptyInput
	}
	lay, st, err := c.begin()
	if err != nil {
		return domain.Panel{}, err
	}
	defer c.end()
	if err := c.panels.Remove(id); err != nil {
		return domain.Panel{}, err
	}
	return c.produce(ctx, prompt, lay, st)
}

// begin claims the single-flight guard and captures the selection the
// generation will use.
func (c *Controller) begin() (domain.LayoutTemplate, domain.Style, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return domain.LayoutTemplate{}, domain.Style{}, ErrBusy
	}
	c.busy = true
	return c.layout.Clone(), c.style, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) produce(ctx context.Context, prompt string, lay domain.LayoutTemplate, st domain.Style) (domain.Panel, error) {
	l := applog.WithOperation(c.log, "generate")
	if _, ok := c.panels.FindOpenSlot(lay); !ok {
		l.InfoContext(ctx, "layout full", "layout", lay.ID)
		return domain.Panel{}, ErrLayoutFull
	}
	query := DeriveQuery(prompt, st)
	ref, err := c.fetch.Fetch(ctx, query)
	if err != nil {
		if !errors.Is(err, imagefetch.ErrFetchFailure) {
			err = fmt.Errorf("%w: %v", imagefetch.ErrFetchFailure, err)
		}
		l.WarnContext(ctx, "image fetch failed", "query", query, "err", err)
		return domain.Panel{}, err
	}
	// The collection may have changed while the fetch was pending.
	slot, ok := c.panels.FindOpenSlot(lay)
	if !ok {
		return domain.Panel{}, ErrLayoutFull
	}
	p, err := c.panels.Place(lay, prompt, slot, st.ID, ref)
	if err != nil {
		return domain.Panel{}, err
	}
	l.InfoContext(ctx, "panel placed", "id", p.ID, "slot", slot, "layout", lay.ID, "style", st.ID)
	c.emit("panel_generated", map[string]any{"layout": lay.ID, "style": st.ID})
	return p, nil
}

// Delete removes a panel. Unknown ids are ignored.
func (c *Controller) Delete(id int64) error {
	if err := c.panels.Remove(id); err != nil {
		return err
	}
	c.emit("panel_deleted", nil)
	return nil
}

// Clear removes every panel.
func (c *Controller) Clear() error {
	n := c.panels.Len()
	if err := c.panels.Clear(); err != nil {
		return err
	}
	c.log.Info("panels cleared", "count", n)
	c.emit("panels_cleared", map[string]any{"count": n})
	return nil
}

// SwitchLayout selects the layout with id, or the first one when id is
// unknown. Existing panels are neither moved nor removed.
func (c *Controller) SwitchLayout(id string) (domain.LayoutTemplate, error) {
	next := layout.Resolve(id)
	c.mu.Lock()
	c.layout = next
	c.mu.Unlock()
	return next.Clone(), c.saveSelection()
}

// SwitchStyle selects the style with id, or the first one when id is unknown.
// It only affects panels generated afterwards.
func (c *Controller) SwitchStyle(id string) (domain.Style, error) {
	next := style.Resolve(id)
	c.mu.Lock()
	c.style = next
	c.mu.Unlock()
	return next, c.saveSelection()
}

func (c *Controller) saveSelection() error {
	if !c.remember {
		return nil
	}
	c.mu.Lock()
	sess := storage.Session{Layout: c.layout.ID, Style: c.style.ID}
	c.mu.Unlock()
	return storage.SaveSession(c.store, sess)
}

// Panels returns every stored panel, including ones outside the current layout.
func (c *Controller) Panels() []domain.Panel { return c.panels.Snapshot() }

// VisiblePanels returns the panels whose slot exists in the current layout.
func (c *Controller) VisiblePanels() []domain.Panel {
	visible, _ := c.partition()
	return visible
}

// OrphanedPanels returns the stored panels whose slot is not part of the
// current layout. They stay in storage and reappear when a layout with
// that slot is selected again.
func (c *Controller) OrphanedPanels() []domain.Panel {
	_, orphans := c.partition()
	return orphans
}

func (c *Controller) partition() (visible, orphans []domain.Panel) {
	lay := c.Layout()
	for _, p := range c.panels.Snapshot() {
		if lay.HasSlot(p.Position) {
			visible = append(visible, p)
		} else {
			orphans = append(orphans, p)
		}
	}
	return visible, orphans
}

// Project returns the current selection and panels as an unsaved project.
func (c *Controller) Project() domain.Project {
	c.mu.Lock()
	p := domain.Project{Style: c.style, Layout: c.layout.Clone()}
	c.mu.Unlock()
	p.Panels = c.panels.Snapshot()
	return p
}

// SaveProject writes the current project under the project key.
func (c *Controller) SaveProject() (domain.Project, error) {
	p, err := c.projects.Save(c.Project())
	if err != nil {
		return domain.Project{}, err
	}
	c.log.Info("project saved", "panels", len(p.Panels), "layout", p.Layout.ID)
	c.emit("project_saved", map[string]any{"panels": len(p.Panels)})
	return p, nil
}

// Autosave writes the current project to the autosave key.
func (c *Controller) Autosave() error { return c.projects.Autosave(c.Project()) }

// LoadProject restores the saved project: selection and the whole panel collection.
func (c *Controller) LoadProject() (domain.Project, error) {
	p, err := c.projects.Load()
	if err != nil {
		return domain.Project{}, err
	}
	return c.apply(p)
}

// RestoreAutosave restores the project written by Autosave.
func (c *Controller) RestoreAutosave() (domain.Project, error) {
	p, err := c.projects.LoadAutosave()
	if err != nil {
		return domain.Project{}, err
	}
	return c.apply(p)
}

// apply installs p. Layout and style are resolved through the catalogs by id.
func (c *Controller) apply(p domain.Project) (domain.Project, error) {
	if err := c.panels.Restore(p.Panels); err != nil {
		return domain.Project{}, err
	}
	c.mu.Lock()
	c.layout = layout.Resolve(p.Layout.ID)
	c.style = style.Resolve(p.Style.ID)
	c.mu.Unlock()
	if err := c.saveSelection(); err != nil {
		return domain.Project{}, err
	}
	c.log.Info("project loaded", "panels", len(p.Panels), "layout", p.Layout.ID)
	return p, nil
}

// Suggestions proposes follow-up prompts for prompt.
func (c *Controller) Suggestions(prompt string) []suggest.ThemeSuggestions {
	return suggest.Suggest(prompt)
}

func (c *Controller) emit(name string, props map[string]any) {
	if c.track != nil {
		c.track.Track(name, props)
	}
}
