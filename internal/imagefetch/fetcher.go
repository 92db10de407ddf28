/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imagefetch resolves a short text query to a placeholder image URL.
// URLFetcher only builds the lookup URL; HTTPFetcher follows it to the final
// image location with rate limiting and a per-query cache.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrFetchFailure wraps every lookup failure, including a cancelled context.
var ErrFetchFailure = errors.New("image fetch failed")

// DefaultBaseURL is the placeholder image service.
const DefaultBaseURL = "https://source.unsplash.com"

// Fetcher returns an image reference for query.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, query string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, query string) (string, error) { return f(ctx, query) }

// BuildURL returns <base>/featured/800x600?<escaped query>,illustration,art.
func BuildURL(base, query string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/featured/800x600?" + escapeComponent(query) + ",illustration,art"
}

// escapeComponent escapes like a URI component: spaces become %20, not '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// URLFetcher builds the lookup URL without any network access.
type URLFetcher struct {
	BaseURL string
}

func (u URLFetcher) Fetch(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return BuildURL(u.BaseURL, query), nil
}
