/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, opt-in usage events such as "panel
// generated" or "project exported", and optional crash reports.
// Nothing leaves the machine unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "graphicnovel/internal/log"
	"graphicnovel/internal/version"
)

// Env var names read by ConfigFrom.
const (
	EnvEventsURL = "GNV_TELEMETRY_URL"
	EnvCrashURL  = "GNV_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "GNV_TELEMETRY_TIMEOUT_MS"
)

// Config controls where events go. OptIn comes from the user config; the
// endpoints come from the environment.
type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
	QueueSize int
}

// ConfigFrom combines the user's opt-in with endpoint settings from the environment.
func ConfigFrom(optIn bool) Config {
	cfg := Config{
		OptIn:     optIn,
		EventsURL: strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:  strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:   1500 * time.Millisecond,
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMs))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// Event is the JSON body posted for each tracked action. Props must not carry
// prompts, image URLs or anything else the user typed.
type Event struct {
	Name    string         `json:"name"`
	TS      time.Time      `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events and posts them from one background goroutine.
// A nil *Client is valid and drops everything.
type Client struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	q       chan Event
	pending sync.WaitGroup
	dropped atomic.Int64
	done    chan struct{}
	stop    sync.Once
}

// New starts a client. When events are disabled no goroutine is started.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		http: &http.Client{Timeout: cfg.Timeout},
		q:    make(chan Event, cfg.QueueSize),
		done: make(chan struct{}),
	}
	if c.Enabled() {
		go c.loop()
	}
	return c
}

// Enabled reports whether events are sent at all.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Track enqueues an event without blocking. Events are dropped when the queue is full.
func (c *Client) Track(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC(),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- ev:
	default:
		c.pending.Done()
		c.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Flush waits until every queued event was attempted or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	idle := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
	}
}

// Close stops the sender. Events still queued are discarded.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.stop.Do(func() { close(c.done) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", mustJSON(ev))
			c.pending.Done()
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("telemetry post failed", slog.String("url", url), slog.Any("err", err))
		return
	}
	_ = resp.Body.Close()
}

// UploadCrash posts a crash report synchronously, bounded by the client
// timeout, since the process usually exits right after.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}
