/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/imagefetch"
	"graphicnovel/internal/kv"
	"graphicnovel/internal/storage"
)

// stepClock advances one millisecond per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

// countingFetcher returns a URL per query and counts calls.
type countingFetcher struct {
	mu      sync.Mutex
	calls   int
	queries []string
	err     error
}

func (f *countingFetcher) Fetch(_ context.Context, q string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q)
	if f.err != nil {
		return "", f.err
	}
	return "https://img.test/" + q, nil
}

// gateFetcher blocks until release is closed.
type gateFetcher struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gateFetcher {
	return &gateFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gateFetcher) Fetch(ctx context.Context, q string) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return "https://img.test/slow", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Track(name string, _ map[string]any) {
	r.mu.Lock()
	r.events = append(r.events, name)
	r.mu.Unlock()
}

func newController(t *testing.T, store kv.Store, f imagefetch.Fetcher) *Controller {
	t.Helper()
	c, err := New(Options{Store: store, Fetcher: f, Clock: stepClock()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSinglePanelLayoutFull(t *testing.T) {
	mem := kv.NewMemory()
	f := &countingFetcher{}
	c := newController(t, mem, f)
	if c.Layout().ID != "single" {
		t.Fatalf("default layout = %s", c.Layout().ID)
	}
	p, err := c.Generate(context.Background(), "a lone tree")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.Position != "main" {
		t.Fatalf("slot = %s", p.Position)
	}
	before, _, _ := mem.Get(storage.KeyPanels)
	if _, err := c.Generate(context.Background(), "another"); !errors.Is(err, ErrLayoutFull) {
		t.Fatalf("expected ErrLayoutFull, got %v", err)
	}
	after, _, _ := mem.Get(storage.KeyPanels)
	if before != after || len(c.Panels()) != 1 {
		t.Fatalf("layout full must not mutate")
	}
	if f.calls != 1 {
		t.Fatalf("no fetch expected for a full layout, got %d calls", f.calls)
	}
}

func TestSideBySideRegenerateReassignsLeft(t *testing.T) {
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	if _, err := c.SwitchLayout("sideBySide"); err != nil {
		t.Fatalf("SwitchLayout: %v", err)
	}
	a, _ := c.Generate(context.Background(), "first")
	b, _ := c.Generate(context.Background(), "second")
	if a.Position != "left" || b.Position != "right" {
		t.Fatalf("slots = %s, %s", a.Position, b.Position)
	}
	n, err := c.Regenerate(context.Background(), a.ID, "")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if n.Position != "left" || n.Prompt != "first" || n.ID == a.ID {
		t.Fatalf("regenerated = %+v", n)
	}
	if _, ok := c.panels.Get(a.ID); ok {
		t.Fatalf("old panel still present")
	}
	if got, _ := c.panels.PanelAt("right"); got.ID != b.ID {
		t.Fatalf("right slot disturbed")
	}
}

func TestRegenerateUsesFirstFreeSlot(t *testing.T) {
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	_, _ = c.SwitchLayout("threePanel")
	a, _ := c.Generate(context.Background(), "one")
	_, _ = c.Generate(context.Background(), "two")
	cc, _ := c.Generate(context.Background(), "three")
	_ = c.Delete(a.ID)
	n, err := c.Regenerate(context.Background(), cc.ID, "three again")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if n.Position != "left" {
		t.Fatalf("expected first free slot left, got %s", n.Position)
	}
	before := len(c.Panels())
	if _, err := c.Regenerate(context.Background(), 999, "x"); !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
	// An unknown id must not fill the slot that is still free.
	if got := len(c.Panels()); got != before {
		t.Fatalf("unknown id changed panel count %d -> %d", before, got)
	}
}

func TestReloadSeesPersistedPanels(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{})
	_, _ = c.SwitchLayout("sideBySide")
	a, _ := c.Generate(context.Background(), "dusk")
	b, _ := c.Generate(context.Background(), "dawn")

	re := newController(t, mem, &countingFetcher{})
	got := re.Panels()
	if len(got) != 2 || got[0].ID != a.ID || !got[0].CreatedAt.Equal(a.CreatedAt) || got[1].ID != b.ID {
		t.Fatalf("reloaded = %+v", got)
	}
}

func TestBusyGateRejectsConcurrentGenerate(t *testing.T) {
	g := newGate()
	c := newController(t, kv.NewMemory(), g)
	_, _ = c.SwitchLayout("fourGrid")

	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(context.Background(), "slow one")
		done <- err
	}()
	<-g.started
	if !c.Busy() {
		t.Fatalf("controller should be busy while fetching")
	}
	if _, err := c.Generate(context.Background(), "fast one"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := c.Regenerate(context.Background(), 1, "x"); err == nil {
		t.Fatalf("regenerate during a pending generate should fail")
	}
	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if c.Busy() || len(c.Panels()) != 1 {
		t.Fatalf("busy=%v panels=%d", c.Busy(), len(c.Panels()))
	}
}

func TestFetchFailureCreatesNoPanel(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{err: errors.New("timeout")})
	writes := mem.Writes()
	_, err := c.Generate(context.Background(), "doomed")
	if !errors.Is(err, imagefetch.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	if len(c.Panels()) != 0 || mem.Writes() != writes {
		t.Fatalf("failure must not mutate storage")
	}
	if c.Busy() {
		t.Fatalf("busy flag not released")
	}
}

func TestCancelledGenerateReleasesGuard(t *testing.T) {
	g := newGate()
	c := newController(t, kv.NewMemory(), g)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(ctx, "never")
		done <- err
	}()
	<-g.started
	cancel()
	if err := <-done; !errors.Is(err, imagefetch.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	if c.Busy() {
		t.Fatalf("busy flag not released")
	}
}

func TestClearWhilePendingPlacesIntoFreedSlot(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{})
	_, _ = c.SwitchLayout("fourGrid")
	_, _ = c.Generate(context.Background(), "first")

	g := newGate()
	c.fetch = g
	done := make(chan domain.Panel, 1)
	go func() {
		p, _ := c.Generate(context.Background(), "second")
		done <- p
	}()
	<-g.started
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	close(g.release)
	p := <-done
	if p.Position != "topLeft" || len(c.Panels()) != 1 {
		t.Fatalf("pending generate should land in the freed slot, got %+v", c.Panels())
	}
}

func TestEmptyPromptIsNoop(t *testing.T) {
	mem := kv.NewMemory()
	f := &countingFetcher{}
	c := newController(t, mem, f)
	if _, err := c.Generate(context.Background(), "  \t"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if f.calls != 0 || mem.Writes() != 0 {
		t.Fatalf("empty prompt caused side effects")
	}
}

func TestClearPersistsEmptyAndDeleteIsIdempotent(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{})
	p, _ := c.Generate(context.Background(), "x")
	if err := c.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(p.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	_, _ = c.Generate(context.Background(), "y")
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if raw, _, _ := mem.Get(storage.KeyPanels); raw != "[]" {
		t.Fatalf("persisted %q", raw)
	}
}

func TestLayoutSwitchHidesButKeepsOrphans(t *testing.T) {
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	_, _ = c.SwitchLayout("fourGrid")
	p, _ := c.Generate(context.Background(), "corner")
	_, _ = c.SwitchLayout("sideBySide")
	if len(c.VisiblePanels()) != 0 || len(c.OrphanedPanels()) != 1 {
		t.Fatalf("visible=%v orphans=%v", c.VisiblePanels(), c.OrphanedPanels())
	}
	// the orphan does not block the new layout's slots
	q, err := c.Generate(context.Background(), "side")
	if err != nil || q.Position != "left" {
		t.Fatalf("Generate in new layout = %+v, %v", q, err)
	}
	_, _ = c.SwitchLayout("fourGrid")
	if v := c.VisiblePanels(); len(v) != 1 || v[0].ID != p.ID {
		t.Fatalf("orphan should reappear: %+v", v)
	}
}

func TestSwitchUnknownFallsBackToFirst(t *testing.T) {
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	_, _ = c.SwitchLayout("fourGrid")
	if l, _ := c.SwitchLayout("hexagon"); l.ID != "single" {
		t.Fatalf("unknown layout resolved to %s", l.ID)
	}
	if s, _ := c.SwitchStyle("pointillism"); s.ID != "manga" {
		t.Fatalf("unknown style resolved to %s", s.ID)
	}
}

func TestStyleTagsNewPanelsAndQuery(t *testing.T) {
	f := &countingFetcher{}
	c := newController(t, kv.NewMemory(), f)
	_, _ = c.SwitchLayout("sideBySide")
	a, _ := c.Generate(context.Background(), "a  brave knight rides out")
	_, _ = c.SwitchStyle("horror")
	b, _ := c.Generate(context.Background(), "ghost")
	if a.Style != "manga" || b.Style != "horror" {
		t.Fatalf("styles = %s, %s", a.Style, b.Style)
	}
	if f.queries[0] != "a,brave,knight,manga,anime,japanese-art" || f.queries[1] != "ghost,horror,dark,atmospheric" {
		t.Fatalf("queries = %q", f.queries)
	}
	if got, _ := c.panels.Get(a.ID); got.Style != "manga" {
		t.Fatalf("style switch touched an existing panel")
	}
}

func TestSaveAndLoadProject(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{})
	if _, err := c.LoadProject(); !errors.Is(err, storage.ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	_, _ = c.SwitchLayout("sideBySide")
	_, _ = c.SwitchStyle("fantasy")
	a, _ := c.Generate(context.Background(), "dragon")
	saved, err := c.SaveProject()
	if err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if saved.LastModified.IsZero() {
		t.Fatalf("lastModified not stamped")
	}

	_ = c.Clear()
	_, _ = c.SwitchLayout("fourGrid")
	_, _ = c.SwitchStyle("horror")

	if _, err := c.LoadProject(); err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if c.Layout().ID != "sideBySide" || c.Style().ID != "fantasy" {
		t.Fatalf("selection not restored: %s / %s", c.Layout().ID, c.Style().ID)
	}
	if got := c.Panels(); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("panels not restored: %+v", got)
	}
	// continuous persistence follows the restored collection
	re := newController(t, mem, &countingFetcher{})
	if len(re.Panels()) != 1 {
		t.Fatalf("restored panels were not persisted")
	}
}

func TestAutosaveRoundTrip(t *testing.T) {
	mem := kv.NewMemory()
	c := newController(t, mem, &countingFetcher{})
	_, _ = c.Generate(context.Background(), "snapshot me")
	if err := c.Autosave(); err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	_ = c.Clear()
	if _, err := c.RestoreAutosave(); err != nil {
		t.Fatalf("RestoreAutosave: %v", err)
	}
	if len(c.Panels()) != 1 {
		t.Fatalf("autosave not restored")
	}
}

func TestRememberSelectionAcrossControllers(t *testing.T) {
	mem := kv.NewMemory()
	opts := Options{Store: mem, Fetcher: &countingFetcher{}, RememberSelection: true}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _ = c.SwitchLayout("threePanel")
	_, _ = c.SwitchStyle("webcomic")
	next, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if next.Layout().ID != "threePanel" || next.Style().ID != "webcomic" {
		t.Fatalf("selection = %s / %s", next.Layout().ID, next.Style().ID)
	}
}

func TestTrackerReceivesEvents(t *testing.T) {
	rec := &recorder{}
	c, _ := New(Options{Store: kv.NewMemory(), Fetcher: &countingFetcher{}, Tracker: rec})
	_, _ = c.Generate(context.Background(), "x")
	_ = c.Clear()
	if _, err := c.ExportProject("digital", t.TempDir()); err != nil {
		t.Fatalf("ExportProject: %v", err)
	}
	want := []string{"panel_generated", "panels_cleared", "project_exported"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("events = %v", rec.events)
		}
	}
}

func TestExports(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	_, _ = c.Generate(context.Background(), "cover art")

	path, err := c.ExportProject("print", dir)
	if err != nil {
		t.Fatalf("ExportProject: %v", err)
	}
	if filepath.Base(path) != "graphic-novel-print-format.json" {
		t.Fatalf("path = %s", path)
	}
	if _, err := c.ExportProject("poster", dir); err == nil {
		t.Fatalf("unknown format accepted")
	}
	if err := c.ExportArchive(context.Background(), filepath.Join(dir, "a.cbz")); !errors.Is(err, ErrNoDownloader) {
		t.Fatalf("expected ErrNoDownloader, got %v", err)
	}
	proof := filepath.Join(dir, "proof.pdf")
	if err := c.ExportProof(context.Background(), "digital", proof); err != nil {
		t.Fatalf("ExportProof: %v", err)
	}
	if st, err := os.Stat(proof); err != nil || st.Size() == 0 {
		t.Fatalf("proof missing: %v", err)
	}
}

func TestSuggestionsDelegates(t *testing.T) {
	c := newController(t, kv.NewMemory(), &countingFetcher{})
	if got := c.Suggestions("a playful cat"); len(got) != 1 || got[0].Theme != "Whimsical" {
		t.Fatalf("Suggestions = %+v", got)
	}
}
