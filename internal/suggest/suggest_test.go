/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package suggest

import "testing"

func TestSuggestMatchesThemes(t *testing.T) {
	got := Suggest("A TENDER goodbye in the gloomy rain")
	if len(got) != 2 || got[0].Theme != "Romantic" || got[1].Theme != "Melancholic" {
		t.Fatalf("themes = %+v", got)
	}
	want := []string{
		`Continue the romantic mood with "love shadows and lighting"`,
		"Add a passion moment to heighten the romantic atmosphere",
		"Introduce a tender element to enhance the romantic feeling",
	}
	for i, w := range want {
		if got[0].Suggestions[i] != w {
			t.Fatalf("suggestion %d = %q, want %q", i, got[0].Suggestions[i], w)
		}
	}
}

func TestSuggestSubstringAndNoMatch(t *testing.T) {
	// "sadness" contains "sad"
	if got := Suggest("sadness"); len(got) != 1 || got[0].Theme != "Melancholic" {
		t.Fatalf("substring match failed: %+v", got)
	}
	if got := Suggest("a quiet street"); got != nil {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

func TestThemesReturnsCopies(t *testing.T) {
	ts := Themes()
	if len(ts) != 6 {
		t.Fatalf("len = %d", len(ts))
	}
	ts[0].Keywords[0] = "changed"
	if Themes()[0].Keywords[0] != "tension" {
		t.Fatalf("catalog mutated through Themes()")
	}
}
