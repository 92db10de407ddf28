/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package suggest proposes follow-up panel prompts by matching mood keywords.
package suggest

import (
	"fmt"
	"strings"
)

// Theme is a mood with the keywords that trigger it. Keywords has four entries.
type Theme struct {
	Name     string
	Keywords []string
}

// ThemeSuggestions groups the suggestions produced for one matching theme.
type ThemeSuggestions struct {
	Theme       string
	Suggestions []string
}

var themes = []Theme{
	{Name: "Dramatic", Keywords: []string{"tension", "conflict", "emotional", "intense"}},
	{Name: "Romantic", Keywords: []string{"love", "passion", "tender", "intimate"}},
	{Name: "Chaotic", Keywords: []string{"wild", "unpredictable", "frenzied", "turbulent"}},
	{Name: "Mysterious", Keywords: []string{"enigmatic", "suspenseful", "cryptic", "shadowy"}},
	{Name: "Melancholic", Keywords: []string{"sad", "wistful", "somber", "gloomy"}},
	{Name: "Whimsical", Keywords: []string{"playful", "quirky", "magical", "lighthearted"}},
}

// Themes returns the known themes in display order.
func Themes() []Theme {
	out := make([]Theme, len(themes))
	for i, t := range themes {
		out[i] = Theme{Name: t.Name, Keywords: append([]string(nil), t.Keywords...)}
	}
	return out
}

// Suggest returns three suggestions for every theme whose keywords occur in
// prompt, case-insensitively, as plain substrings. No match yields nil.
func Suggest(prompt string) []ThemeSuggestions {
	lp := strings.ToLower(prompt)
	var out []ThemeSuggestions
	for _, t := range themes {
		if !matches(lp, t.Keywords) {
			continue
		}
		name := strings.ToLower(t.Name)
		out = append(out, ThemeSuggestions{
			Theme: t.Name,
			Suggestions: []string{
				fmt.Sprintf("Continue the %s mood with %q", name, t.Keywords[0]+" shadows and lighting"),
				fmt.Sprintf("Add a %s moment to heighten the %s atmosphere", t.Keywords[1], name),
				fmt.Sprintf("Introduce a %s element to enhance the %s feeling", t.Keywords[2], name),
			},
		})
	}
	return out
}

func matches(lowerPrompt string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lowerPrompt, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
