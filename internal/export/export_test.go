/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/layout"
	"graphicnovel/internal/style"
)

func sampleDoc(t *testing.T, format domain.ExportFormat) domain.ExportDocument {
	t.Helper()
	st, _ := style.Get("manga")
	p := domain.Project{
		Style:  st,
		Layout: layout.Resolve("fourGrid"),
		Panels: []domain.Panel{
			{ID: 2, Image: "http://img/b", Prompt: "the duel begins", Position: "topRight", Style: "manga"},
			{ID: 1, Image: "http://img/a", Prompt: "a quiet dojo", Position: "topLeft", Style: "manga"},
			{ID: 3, Image: "http://img/c", Prompt: "orphan", Position: "main", Style: "manga"},
		},
	}
	doc, err := BuildDocument(p, format, time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	return doc
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestBuildDocumentMetadata(t *testing.T) {
	doc := sampleDoc(t, domain.FormatPrint)
	if doc.Metadata.Title != "My Graphic Novel" || doc.Metadata.Author != "Author Name" {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}
	if doc.Format != domain.FormatPrint || len(doc.Panels) != 3 {
		t.Fatalf("doc = %+v", doc)
	}
	if _, err := BuildDocument(domain.Project{}, "poster", time.Now()); err == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestWriteJSONUsesFormatFileName(t *testing.T) {
	dir := t.TempDir()
	doc := sampleDoc(t, domain.FormatDigital)
	out, err := WriteJSON(doc, dir)
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if filepath.Base(out) != "graphic-novel-digital-format.json" {
		t.Fatalf("file name = %s", out)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"style", "layout", "panels", "format", "metadata"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("export missing %q", k)
		}
	}
	if m["format"] != "digital" {
		t.Fatalf("format = %v", m["format"])
	}
	md := m["metadata"].(map[string]any)
	if md["createdAt"] != "2025-04-01T08:00:00Z" {
		t.Fatalf("createdAt = %v", md["createdAt"])
	}
}

// TestExportPanelsMatchPersistedSchema checks exported panels with the same
// shape rules the store applies.
func TestExportPanelsMatchPersistedSchema(t *testing.T) {
	doc := sampleDoc(t, domain.FormatDigital)
	data, _ := json.Marshal(doc.Panels)
	schema := `{"type":"array","items":{"type":"object","required":["id","image","prompt","createdAt","position","style"]}}`
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("exported panels invalid: %v", res.Errors())
	}
}

func TestWritePDFProofCreatesFile(t *testing.T) {
	for _, f := range []domain.ExportFormat{domain.FormatDigital, domain.FormatPrint} {
		out := filepath.Join(t.TempDir(), "proof", "grid.pdf")
		doc := sampleDoc(t, f)
		images := map[string][]byte{"http://img/a": pngBytes(t), "http://img/b": []byte("not an image")}
		if err := WritePDFProof(doc, out, PDFOptions{Images: images}); err != nil {
			t.Fatalf("WritePDFProof(%s): %v", f, err)
		}
		b, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read pdf: %v", err)
		}
		if !bytes.HasPrefix(b, []byte("%PDF-")) {
			t.Fatalf("not a pdf: %q", b[:8])
		}
	}
}

func TestPresetFor(t *testing.T) {
	if p := PresetFor(domain.FormatPrint); !p.IncludeGuides || p.Bleed <= 0 {
		t.Fatalf("print preset = %+v", p)
	}
	if p := PresetFor(domain.FormatDigital); p.IncludeGuides || p.Bleed != 0 {
		t.Fatalf("digital preset = %+v", p)
	}
}

func TestWriteCBZPackagesImagesInSlotOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "novel")
	doc := sampleDoc(t, domain.FormatDigital)
	a, b := pngBytes(t), pngBytes(t)
	images := map[string][]byte{"http://img/a": a, "http://img/b": b, "http://img/c": a}
	if err := WriteCBZ(doc, images, out); err != nil {
		t.Fatalf("WriteCBZ: %v", err)
	}
	zr, err := zip.OpenReader(out + ".cbz")
	if err != nil {
		t.Fatalf("open cbz: %v", err)
	}
	defer zr.Close()
	var names []string
	var manifest string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "ComicInfo.xml" {
			rc, _ := f.Open()
			mb, _ := io.ReadAll(rc)
			_ = rc.Close()
			manifest = string(mb)
		}
	}
	// the orphaned "main" panel is not part of the fourGrid layout
	if strings.Join(names, ",") != "1.png,2.png,ComicInfo.xml" {
		t.Fatalf("entries = %v", names)
	}
	if !strings.Contains(manifest, "<PageCount>2</PageCount>") || !strings.Contains(manifest, "RightToLeft") {
		t.Fatalf("manifest = %s", manifest)
	}
	if i, j := strings.Index(manifest, "a quiet dojo"), strings.Index(manifest, "the duel begins"); i < 0 || j < i {
		t.Fatalf("summary not in slot order: %s", manifest)
	}
}

func TestWriteCBZWithoutImages(t *testing.T) {
	err := WriteCBZ(sampleDoc(t, domain.FormatPrint), nil, filepath.Join(t.TempDir(), "x.cbz"))
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}
