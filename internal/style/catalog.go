/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package style

import "graphicnovel/internal/domain"

var styles = []domain.Style{
	{ID: "manga", Name: "Manga", Description: "Japanese comic style with dynamic action and expressive characters", ImageQuery: "manga,anime,japanese-art"},
	{ID: "american", Name: "American Comics", Description: "Bold, superhero-inspired style with dynamic action and strong colors", ImageQuery: "superhero,comic-book,american-comics"},
	{ID: "european", Name: "European Comics", Description: "Clear line art with detailed backgrounds and sophisticated storytelling", ImageQuery: "european-comics,ligne-claire"},
	{ID: "webcomic", Name: "Webcomics", Description: "Modern digital style optimized for screen viewing", ImageQuery: "webcomic,digital-art"},
	{ID: "biographical", Name: "Autobiographical/Non-Fiction", Description: "Personal narratives with realistic and intimate storytelling", ImageQuery: "documentary,journalism,realistic"},
	{ID: "literary", Name: "Literary Graphic Novels", Description: "Sophisticated visual narratives with complex themes", ImageQuery: "literary,artistic,sophisticated"},
	{ID: "experimental", Name: "Art House/Experimental", Description: "Avant-garde visuals pushing artistic boundaries", ImageQuery: "experimental,abstract,avant-garde"},
	{ID: "fantasy", Name: "Fantasy/Sci-Fi", Description: "Imaginative worlds with fantastical or futuristic elements", ImageQuery: "fantasy,sci-fi,conceptual"},
	{ID: "horror", Name: "Horror", Description: "Dark and atmospheric with emphasis on tension and fear", ImageQuery: "horror,dark,atmospheric"},
	{ID: "slice", Name: "Slice of Life", Description: "Everyday stories with focus on character relationships", ImageQuery: "slice-of-life,daily-life,casual"},
	{ID: "underground", Name: "Underground/Alternative", Description: "Counter-cultural style with raw, edgy aesthetics", ImageQuery: "underground,alternative,indie"},
}

// List returns the styles in catalog order.
func List() []domain.Style { return append([]domain.Style(nil), styles...) }

// Get looks up a style by id.
func Get(id string) (domain.Style, bool) {
	for _, s := range styles {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Style{}, false
}

// Default is the first style (manga).
func Default() domain.Style { return styles[0] }

// Resolve returns the style for id or the default.
func Resolve(id string) domain.Style {
	if s, ok := Get(id); ok {
		return s
	}
	return Default()
}
