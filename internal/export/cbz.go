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
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"graphicnovel/internal/domain"
)

// ErrNoImages is returned by WriteCBZ when none of the panels has image data.
var ErrNoImages = errors.New("no panel images to package")

// comicInfo is the ComicInfo.xml manifest read by comic book readers.
type comicInfo struct {
	XMLName          xml.Name `xml:"ComicInfo"`
	Series           string   `xml:"Series"`
	Title            string   `xml:"Title"`
	Writer           string   `xml:"Writer,omitempty"`
	Genre            string   `xml:"Genre,omitempty"`
	Summary          string   `xml:"Summary,omitempty"`
	PageCount        int      `xml:"PageCount"`
	ReadingDirection string   `xml:"ReadingDirection"`
}

// WriteCBZ packages the panel images of doc in slot order into a CBZ (zip)
// archive with a ComicInfo.xml manifest. images is keyed by panel image
// reference; panels without data are skipped.
func WriteCBZ(doc domain.ExportDocument, images map[string][]byte, outPath string) error {
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath += ".cbz"
	}
	type page struct {
		name string
		data []byte
	}
	var pages []page
	var prompts []string
	for _, p := range orderedPanels(doc) {
		b := images[p.Image]
		if len(b) == 0 {
			continue
		}
		pages = append(pages, page{data: b})
		prompts = append(prompts, p.Prompt)
	}
	if len(pages) == 0 {
		return ErrNoImages
	}
	width := len(fmt.Sprint(len(pages)))
	for i := range pages {
		pages[i].name = fmt.Sprintf("%0*d%s", width, i+1, imageExt(pages[i].data))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create cbz: %w", err)
	}
	defer func() { _ = f.Close() }()
	zw := zip.NewWriter(f)

	for _, pg := range pages {
		if err := addZipFile(zw, pg.name, pg.data); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}
	info := comicInfo{
		Series:           doc.Metadata.Title,
		Title:            doc.Layout.Name,
		Writer:           doc.Metadata.Author,
		Genre:            doc.Style.Name,
		Summary:          strings.Join(prompts, "\n"),
		PageCount:        len(pages),
		ReadingDirection: readingDirection(doc.Style.ID),
	}
	manifest, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	manifest = append([]byte(xml.Header), manifest...)
	if err := addZipFile(zw, "ComicInfo.xml", manifest); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return f.Close()
}

// readingDirection follows the style: manga reads right to left.
func readingDirection(styleID string) string {
	if styleID == "manga" {
		return "RightToLeft"
	}
	return "LeftToRight"
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
