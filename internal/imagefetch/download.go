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
	"sync"

	applog "graphicnovel/internal/log"

	"golang.org/x/sync/errgroup"
)

// maxImageBytes bounds a single downloaded image.
const maxImageBytes = 8 << 20

// Download fetches the bytes behind each URL with at most parallel requests in
// flight. URLs that fail are logged and left out of the result; only a
// cancelled ctx is reported as an error.
func Download(ctx context.Context, client *http.Client, urls []string, parallel int) (map[string][]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if parallel <= 0 {
		parallel = 4
	}
	l := applog.WithOperation(applog.WithComponent("imagefetch"), "download")
	var (
		mu  sync.Mutex
		out = make(map[string][]byte, len(urls))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for _, u := range urls {
		mu.Lock()
		_, dup := out[u]
		out[u] = nil
		mu.Unlock()
		if dup || u == "" {
			continue
		}
		u := u // per-iteration copy; go directive is below 1.22 loopvar semantics
		eg.Go(func() error {
			b, err := get(egCtx, client, u)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				l.Warn("image download failed", "url", u, "err", err)
				return nil
			}
			mu.Lock()
			out[u] = b
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	return out, nil
}

func get(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}
