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
	"fmt"

	"graphicnovel/internal/domain"
	"graphicnovel/internal/export"
)

// ErrNoDownloader is returned by exports that need image bytes when the
// controller was built without a Downloader.
var ErrNoDownloader = errors.New("image downloads are not configured")

// ExportProject writes graphic-novel-<format>-format.json into outDir and returns its path.
func (c *Controller) ExportProject(format string, outDir string) (string, error) {
	doc, err := export.BuildDocument(c.Project(), domain.ExportFormat(format), c.now())
	if err != nil {
		return "", err
	}
	path, err := export.WriteJSON(doc, outDir)
	if err != nil {
		return "", err
	}
	c.log.Info("project exported", "format", format, "path", path)
	c.emit("project_exported", map[string]any{"format": format, "kind": "json"})
	return path, nil
}

// ExportProof writes a one page PDF of the current grid. Panel images are
// embedded when a Downloader is configured.
func (c *Controller) ExportProof(ctx context.Context, format string, outPath string) error {
	doc, err := export.BuildDocument(c.Project(), domain.ExportFormat(format), c.now())
	if err != nil {
		return err
	}
	var images map[string][]byte
	if c.download != nil {
		images, err = c.download(ctx, imageRefs(doc.Panels))
		if err != nil {
			return fmt.Errorf("download panel images: %w", err)
		}
	}
	if err := export.WritePDFProof(doc, outPath, export.PDFOptions{Images: images}); err != nil {
		return err
	}
	c.emit("project_exported", map[string]any{"format": format, "kind": "pdf"})
	return nil
}

// ExportArchive downloads the panel images and packages them as a CBZ archive.
func (c *Controller) ExportArchive(ctx context.Context, outPath string) error {
	if c.download == nil {
		return ErrNoDownloader
	}
	doc, err := export.BuildDocument(c.Project(), domain.FormatDigital, c.now())
	if err != nil {
		return err
	}
	images, err := c.download(ctx, imageRefs(doc.Panels))
	if err != nil {
		return fmt.Errorf("download panel images: %w", err)
	}
	if err := export.WriteCBZ(doc, images, outPath); err != nil {
		return err
	}
	c.emit("project_exported", map[string]any{"format": string(domain.FormatDigital), "kind": "cbz"})
	return nil
}

func imageRefs(panels []domain.Panel) []string {
	out := make([]string, 0, len(panels))
	for _, p := range panels {
		out = append(out, p.Image)
	}
	return out
}
