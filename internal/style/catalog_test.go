/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package style

import "testing"

func TestStylesUniqueAndTagged(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range List() {
		if seen[s.ID] {
			t.Fatalf("duplicate style id %s", s.ID)
		}
		seen[s.ID] = true
		if s.ImageQuery == "" || s.Name == "" {
			t.Fatalf("style %s missing name or query tag", s.ID)
		}
	}
	if len(seen) != 11 {
		t.Fatalf("expected 11 styles, got %d", len(seen))
	}
}

func TestResolve(t *testing.T) {
	if Resolve("horror").ImageQuery != "horror,dark,atmospheric" {
		t.Fatalf("horror query tag mismatch")
	}
	if Resolve("").ID != "manga" || Default().ID != "manga" {
		t.Fatalf("fallback should be manga")
	}
}
