/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic at the CLI edge into a crash report on disk,
// an autosave of the open project and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "graphicnovel/internal/log"
	"graphicnovel/internal/version"
)

// exitFn is replaced in tests.
var exitFn = os.Exit

// Autosaver persists whatever the user was working on.
type Autosaver interface {
	Autosave() error
}

// Uploader receives the serialized report, e.g. a telemetry client.
type Uploader interface {
	UploadCrash(report []byte)
}

// Handler collects what Recover needs. Zero fields are skipped; an empty
// Dir means os.TempDir().
type Handler struct {
	Dir      string
	Saver    Autosaver
	Uploader Uploader
	Stderr   io.Writer
}

// Recover must be deferred directly: defer h.Recover(). Fields are read when
// the panic happens, so Saver may be set after the defer.
func (h *Handler) Recover() {
	r := recover()
	if r == nil {
		return
	}
	h.handle(r, debug.Stack())
	exitFn(2)
}

func (h *Handler) handle(panicVal any, stack []byte) string {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", panicVal), slog.String("stack", string(stack)))

	report := buildReport(panicVal, stack)
	path, err := writeReport(h.Dir, report)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if h.Saver != nil {
		if err := h.Saver.Autosave(); err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		} else {
			l.Info("project autosaved")
		}
	}
	if h.Uploader != nil {
		h.Uploader.UploadCrash(report)
	}

	w := h.Stderr
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintf(w, "A fatal error occurred. A crash report was saved to: %s\n", path)
	_, _ = fmt.Fprintf(w, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	return path
}

func buildReport(panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Graphic Novel Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(dir string, report []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return path, err
	}
	return path, nil
}
