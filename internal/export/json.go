/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes the one-way artifacts of a project: the JSON
// document, a PDF proof sheet of the panel grid and a CBZ archive of the
// panel images.
package export

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"graphicnovel/internal/domain"
)

// Fixed metadata carried by every exported document.
const (
	DefaultTitle  = "My Graphic Novel"
	DefaultAuthor = "Author Name"
)

// FileName returns graphic-novel-<format>-format.json.
func FileName(format domain.ExportFormat) string {
	return fmt.Sprintf("graphic-novel-%s-format.json", format)
}

// BuildDocument wraps the project for export. The format is a tag only and
// does not change the content.
func BuildDocument(p domain.Project, format domain.ExportFormat, now time.Time) (domain.ExportDocument, error) {
	if !format.Valid() {
		return domain.ExportDocument{}, fmt.Errorf("unknown export format %q", format)
	}
	panels := append([]domain.Panel{}, p.Panels...)
	now = now.UTC()
	return domain.ExportDocument{
		Style:  p.Style,
		Layout: p.Layout.Clone(),
		Panels: panels,
		Format: format,
		Metadata: domain.ExportMetadata{
			Title:        DefaultTitle,
			Author:       DefaultAuthor,
			CreatedAt:    now,
			LastModified: now,
		},
	}, nil
}

// WriteJSON writes doc as indented JSON into dir under FileName and returns the path.
// The file is replaced atomically.
func WriteJSON(doc domain.ExportDocument, dir string) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	out := filepath.Join(dir, FileName(doc.Format))
	if err := writeAtomic(out, data); err != nil {
		return "", err
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return fmt.Errorf("write temp export: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}
