/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"graphicnovel/internal/domain"
)

// Proof page size in points (A4 portrait).
const (
	proofTrimW  = 595.0
	proofTrimH  = 842.0
	proofMargin = 36.0
	headerH     = 40.0
	captionH    = 34.0
)

// PDFOptions controls the proof sheet.
type PDFOptions struct {
	// Images maps a panel image reference to downloaded bytes. Panels without
	// an entry are drawn as a labelled frame.
	Images map[string][]byte
}

// WritePDFProof renders one page with the layout grid of doc: every slot is a
// frame with its slot name, the panel prompt underneath and, when available,
// the panel image. Print documents get bleed and trim guides.
func WritePDFProof(doc domain.ExportDocument, outPath string, opt PDFOptions) error {
	if doc.Layout.Columns <= 0 || doc.Layout.Rows <= 0 {
		return fmt.Errorf("layout %q has no grid", doc.Layout.ID)
	}
	preset := PresetFor(doc.Format)
	bleed := preset.Bleed
	mediaW := proofTrimW + 2*bleed
	mediaH := proofTrimH + 2*bleed

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: mediaW, Ht: mediaH},
	})
	pdf.SetTitle(doc.Metadata.Title, true)
	pdf.SetAuthor(doc.Metadata.Author, true)
	pdf.SetCreator("graphicnovel", false)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if preset.IncludeGuides {
		pdf.SetDrawColor(255, 0, 0)
		pdf.SetLineWidth(0.2)
		pdf.Rect(0, 0, mediaW, mediaH, "D")
		pdf.Rect(bleed, bleed, proofTrimW, proofTrimH, "D")
	}

	left := bleed + proofMargin
	top := bleed + proofMargin
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(left, top+16, tr(doc.Metadata.Title))
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(left, top+30, tr(fmt.Sprintf("%s / %s / %s", doc.Layout.Name, doc.Style.Name, doc.Format)))

	gridTop := top + headerH
	gridW := proofTrimW - 2*proofMargin
	gridH := proofTrimH - 2*proofMargin - headerH
	cols, rows := float64(doc.Layout.Columns), float64(doc.Layout.Rows)
	cellW := (gridW - (cols-1)*preset.Gutter) / cols
	cellH := (gridH - (rows-1)*preset.Gutter) / rows

	bySlot := make(map[string]domain.Panel, len(doc.Panels))
	for _, p := range orderedPanels(doc) {
		bySlot[p.Position] = p
	}

	n := 0
	for r, row := range doc.Layout.Areas {
		for c, slot := range row {
			x := left + float64(c)*(cellW+preset.Gutter)
			y := gridTop + float64(r)*(cellH+preset.Gutter)
			pdf.SetDrawColor(0, 0, 0)
			pdf.SetLineWidth(1)
			pdf.Rect(x, y, cellW, cellH, "D")

			pdf.SetFont("Helvetica", "B", 8)
			pdf.Text(x+4, y+11, tr(slot))

			p, ok := bySlot[slot]
			if !ok {
				pdf.SetFont("Helvetica", "I", 10)
				pdf.SetTextColor(140, 140, 140)
				pdf.Text(x+cellW/2-30, y+cellH/2, "Empty Panel")
				pdf.SetTextColor(0, 0, 0)
				continue
			}
			imgBox := [4]float64{x + 4, y + 16, cellW - 8, cellH - 20 - captionH}
			if b := opt.Images[p.Image]; len(b) > 0 {
				n++
				drawImage(pdf, "panel"+strconv.Itoa(n), b, imgBox)
			}
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetXY(x+4, y+cellH-captionH)
			pdf.MultiCell(cellW-8, 10, tr(p.Prompt), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// drawImage places b inside box keeping its aspect ratio. Data that is not a
// decodable JPEG or PNG is skipped so it cannot poison the document.
func drawImage(pdf *gofpdf.Fpdf, name string, b []byte, box [4]float64) {
	kind := imageType(b)
	if kind == "" {
		return
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return
	}
	x, y, w, h := box[0], box[1], box[2], box[3]
	if w <= 0 || h <= 0 {
		return
	}
	scale := w / float64(cfg.Width)
	if s := h / float64(cfg.Height); s < scale {
		scale = s
	}
	iw, ih := float64(cfg.Width)*scale, float64(cfg.Height)*scale
	opts := gofpdf.ImageOptions{ImageType: kind}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(b))
	pdf.ImageOptions(name, x+(w-iw)/2, y+(h-ih)/2, iw, ih, false, opts, 0, "")
}

// imageType returns the gofpdf image type for b, or "" when unsupported.
func imageType(b []byte) string {
	switch http.DetectContentType(b) {
	case "image/jpeg":
		return "JPG"
	case "image/png":
		return "PNG"
	default:
		return ""
	}
}

// imageExt is the archive file extension for b.
func imageExt(b []byte) string {
	switch imageType(b) {
	case "JPG":
		return ".jpg"
	case "PNG":
		return ".png"
	default:
		return ".bin"
	}
}
