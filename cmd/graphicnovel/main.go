/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"graphicnovel/internal/config"
	"graphicnovel/internal/controller"
	"graphicnovel/internal/crash"
	"graphicnovel/internal/imagefetch"
	"graphicnovel/internal/kv"
	"graphicnovel/internal/layout"
	applog "graphicnovel/internal/log"
	"graphicnovel/internal/storage"
	"graphicnovel/internal/style"
	"graphicnovel/internal/suggest"
	"graphicnovel/internal/telemetry"
	"graphicnovel/internal/version"
	"graphicnovel/internal/view"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Graphic Novel panel composer")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  graphicnovel version                       Show version")
	fmt.Fprintln(w, "  graphicnovel layouts | styles              List the catalogs")
	fmt.Fprintln(w, "  graphicnovel show                          Draw the current grid")
	fmt.Fprintln(w, "  graphicnovel generate <prompt...>          Fill the next free slot")
	fmt.Fprintln(w, "  graphicnovel regenerate <id> [prompt...]   Replace a panel (old prompt if none given)")
	fmt.Fprintln(w, "  graphicnovel delete <id>                   Remove a panel")
	fmt.Fprintln(w, "  graphicnovel clear                         Remove all panels")
	fmt.Fprintln(w, "  graphicnovel layout <id> | style <id>      Change the selection")
	fmt.Fprintln(w, "  graphicnovel save | load [autosave]        Save or restore the project")
	fmt.Fprintln(w, "  graphicnovel export digital|print [dir]    Write graphic-novel-<format>-format.json")
	fmt.Fprintln(w, "  graphicnovel proof <file.pdf> [format]     Write a PDF proof sheet")
	fmt.Fprintln(w, "  graphicnovel archive <file.cbz>            Package panel images (online mode)")
	fmt.Fprintln(w, "  graphicnovel suggest <prompt...>           Story suggestions")
	fmt.Fprintln(w, "  graphicnovel config [set-key <key>|forget-key]")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app bundles what the commands need.
type app struct {
	ctl    *controller.Controller
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "layouts":
		for _, t := range layout.List() {
			fmt.Fprintf(stdout, "%-11s %-13s %dx%d  %s\n", t.ID, t.Name, t.Columns, t.Rows, strings.Join(t.Slots(), ", "))
		}
		return 0
	case "styles":
		for _, s := range style.List() {
			fmt.Fprintf(stdout, "%-13s %-30s %s\n", s.ID, s.Name, s.Description)
		}
		return 0
	case "suggest":
		return suggestCmd(stdout, strings.Join(args[1:], " "))
	}

	cfg, accessKey, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   stderr,
	})
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	if args[0] == "config" {
		return configCmd(stdout, stderr, cfg, args[1:])
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	store, err := kv.Open(cfg.Storage.Backend, dataDir)
	if err != nil {
		l.Error("open storage failed", slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer store.Close()

	tele := telemetry.New(telemetry.ConfigFrom(cfg.General.TelemetryOptIn))
	defer tele.Close()
	handler := &crash.Handler{Dir: dataDir, Uploader: tele, Stderr: stderr}
	defer handler.Recover()

	opts := controller.Options{
		Store:             store,
		Fetcher:           imagefetch.URLFetcher{BaseURL: cfg.Images.BaseURL},
		Tracker:           tele,
		RememberSelection: true,
	}
	if cfg.Images.Online {
		opts.Fetcher = imagefetch.NewHTTPFetcher(imagefetch.HTTPOptions{
			BaseURL:      cfg.Images.BaseURL,
			AccessKey:    accessKey,
			Timeout:      cfg.Images.Timeout(),
			RateInterval: cfg.Images.RateInterval(),
			CacheTTL:     cfg.Images.CacheTTL(),
		})
		client := &http.Client{Timeout: cfg.Images.Timeout()}
		opts.Downloader = func(ctx context.Context, urls []string) (map[string][]byte, error) {
			return imagefetch.Download(ctx, client, urls, 4)
		}
	}
	ctl, err := controller.New(opts)
	if err != nil {
		l.Error("init failed", slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if lerr := ctl.LoadError(); lerr != nil {
		fmt.Fprintln(stderr, "Warning: stored panels were unreadable and have been reset:", lerr)
	}
	handler.Saver = ctl

	a := &app{ctl: ctl, out: stdout, errOut: stderr, log: l}
	ctx := applog.ContextWithSession(context.Background(), "cli-"+strconv.Itoa(os.Getpid()))
	code := a.dispatch(ctx, args)
	fctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	tele.Flush(fctx)
	return code
}

func (a *app) dispatch(ctx context.Context, args []string) int {
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "show":
		a.show()
	case "generate":
		err = a.generate(ctx, strings.Join(rest, " "))
	case "regenerate":
		if len(rest) < 1 {
			return a.usageErr("regenerate requires <id>")
		}
		err = a.regenerate(ctx, rest[0], strings.Join(rest[1:], " "))
	case "delete":
		if len(rest) < 1 {
			return a.usageErr("delete requires <id>")
		}
		var id int64
		if id, err = parseID(rest[0]); err == nil {
			err = a.ctl.Delete(id)
		}
		if err == nil {
			fmt.Fprintf(a.out, "Deleted panel %d\n", id)
		}
	case "clear":
		if err = a.ctl.Clear(); err == nil {
			fmt.Fprintln(a.out, "All panels cleared.")
		}
	case "layout":
		if len(rest) < 1 {
			return a.usageErr("layout requires <id>")
		}
		if t, lerr := a.ctl.SwitchLayout(rest[0]); lerr != nil {
			err = lerr
		} else {
			fmt.Fprintf(a.out, "Layout: %s\n", t.Name)
			a.show()
		}
	case "style":
		if len(rest) < 1 {
			return a.usageErr("style requires <id>")
		}
		if s, serr := a.ctl.SwitchStyle(rest[0]); serr != nil {
			err = serr
		} else {
			fmt.Fprintf(a.out, "Style: %s\n", s.Name)
		}
	case "save":
		if p, serr := a.ctl.SaveProject(); serr != nil {
			err = serr
		} else {
			fmt.Fprintf(a.out, "Project saved (%d panels, %s).\n", len(p.Panels), p.LastModified.Format("2006-01-02 15:04:05"))
		}
	case "load":
		err = a.load(rest)
	case "export":
		if len(rest) < 1 {
			return a.usageErr("export requires digital|print")
		}
		dir := "."
		if len(rest) > 1 {
			dir = rest[1]
		}
		var path string
		if path, err = a.ctl.ExportProject(rest[0], dir); err == nil {
			fmt.Fprintln(a.out, "Exported", path)
		}
	case "proof":
		if len(rest) < 1 {
			return a.usageErr("proof requires <file.pdf>")
		}
		format := "digital"
		if len(rest) > 1 {
			format = rest[1]
		}
		if err = a.ctl.ExportProof(ctx, format, rest[0]); err == nil {
			fmt.Fprintln(a.out, "Wrote", rest[0])
		}
	case "archive":
		if len(rest) < 1 {
			return a.usageErr("archive requires <file.cbz>")
		}
		if err = a.ctl.ExportArchive(ctx, rest[0]); err == nil {
			fmt.Fprintln(a.out, "Wrote", rest[0])
		}
	default:
		return a.usageErr("unknown command: " + cmd)
	}
	if err != nil {
		a.log.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		fmt.Fprintln(a.errOut, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) usageErr(msg string) int {
	fmt.Fprintln(a.errOut, msg)
	usage(a.errOut)
	return 2
}

func (a *app) show() {
	fmt.Fprintf(a.out, "Style: %s\n", a.ctl.Style().Name)
	fmt.Fprintln(a.out, view.RenderGrid(a.ctl.Layout(), a.ctl.VisiblePanels(), view.Options{}))
	if n := len(a.ctl.OrphanedPanels()); n > 0 {
		fmt.Fprintf(a.out, "%d panel(s) belong to slots outside this layout and are hidden.\n", n)
	}
}

func (a *app) generate(ctx context.Context, prompt string) error {
	p, err := a.ctl.Generate(ctx, prompt)
	switch {
	case errors.Is(err, controller.ErrEmptyInput):
		return nil
	case errors.Is(err, controller.ErrLayoutFull):
		fmt.Fprintln(a.out, err)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(a.out, "Panel %d placed in %s\n", p.ID, p.Position)
	a.show()
	return nil
}

func (a *app) regenerate(ctx context.Context, rawID, prompt string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	p, err := a.ctl.Regenerate(ctx, id, prompt)
	if errors.Is(err, controller.ErrLayoutFull) {
		fmt.Fprintln(a.out, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Panel %d regenerated as %d in %s\n", id, p.ID, p.Position)
	a.show()
	return nil
}

func (a *app) load(rest []string) error {
	var err error
	if len(rest) > 0 && rest[0] == "autosave" {
		_, err = a.ctl.RestoreAutosave()
	} else {
		_, err = a.ctl.LoadProject()
	}
	if errors.Is(err, storage.ErrNoProject) {
		fmt.Fprintln(a.out, "No saved project.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Project loaded.")
	a.show()
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid panel id %q", s)
	}
	return id, nil
}

func suggestCmd(w io.Writer, prompt string) int {
	groups := suggest.Suggest(prompt)
	if len(groups) == 0 {
		fmt.Fprintln(w, "No matching themes. Try words like tension, love, wild, cryptic, sad or playful.")
		return 0
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s:\n", g.Theme)
		for _, s := range g.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return 0
}

func configCmd(stdout, stderr io.Writer, cfg config.AppConfig, args []string) int {
	if len(args) == 0 {
		path, _ := config.ConfigPath()
		dir, _ := cfg.DataDir()
		fmt.Fprintf(stdout, "config:   %s\n", path)
		fmt.Fprintf(stdout, "storage:  %s (%s)\n", cfg.Storage.Backend, dir)
		fmt.Fprintf(stdout, "images:   %s online=%v\n", cfg.Images.BaseURL, cfg.Images.Online)
		fmt.Fprintf(stdout, "telemetry opt-in: %v\n", cfg.General.TelemetryOptIn)
		return 0
	}
	var err error
	switch args[0] {
	case "set-key":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "set-key requires <key>")
			return 2
		}
		err = config.Save(cfg, args[1])
	case "forget-key":
		err = config.ForgetAccessKey()
	default:
		fmt.Fprintln(stderr, "unknown config command:", args[0])
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}
