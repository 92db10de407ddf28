/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imagefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	applog "graphicnovel/internal/log"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// HTTPOptions configures an HTTPFetcher. Zero values fall back to defaults.
type HTTPOptions struct {
	BaseURL      string
	AccessKey    string // sent as "Authorization: Client-ID <key>" when set
	Timeout      time.Duration
	RateInterval time.Duration
	Burst        int
	CacheTTL     time.Duration
	Client       *http.Client
}

// HTTPFetcher follows the lookup URL and returns where the service redirected to.
type HTTPFetcher struct {
	base      string
	accessKey string
	client    *http.Client
	limiter   *rate.Limiter
	cache     *cache.Cache
}

// NewHTTPFetcher builds an HTTPFetcher from opts.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateInterval <= 0 {
		opts.RateInterval = 500 * time.Millisecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPFetcher{
		base:      opts.BaseURL,
		accessKey: opts.AccessKey,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(opts.RateInterval), opts.Burst),
		cache:     cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// Fetch resolves query to the final image URL. Results are cached per query.
func (h *HTTPFetcher) Fetch(ctx context.Context, query string) (string, error) {
	if v, ok := h.cache.Get(query); ok {
		return v.(string), nil
	}
	l := applog.WithOperation(applog.WithComponent("imagefetch"), "fetch")
	if err := h.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BuildURL(h.base, query), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	if h.accessKey != "" {
		req.Header.Set("Authorization", "Client-ID "+h.accessKey)
	}
	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		l.WarnContext(ctx, "image lookup failed", "query", query, "err", err)
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.WarnContext(ctx, "image lookup rejected", "query", query, "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrFetchFailure, resp.StatusCode)
	}
	final := resp.Request.URL.String()
	h.cache.Set(query, final, cache.DefaultExpiration)
	l.DebugContext(ctx, "image resolved", "query", query, "url", final, "dur", time.Since(start))
	return final, nil
}
