/*
   Copyright 2025 Poiesic Systems

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package harvest

import (
	"html"
	"regexp"
	"strings"

	"github.com/poiesic/curio/core"
)

// Field length policy. The thresholds are deliberately loose heuristics: a
// candidate outside these bounds is far more likely to be page chrome than
// catalog content.
const (
	maxDescriptionLen = 3000
	minDescriptionLen = 30
	maxShortFieldLen  = 200
)

// Rule locates one field in a fetched document. Pattern's first capture
// group is the candidate value; Validate rejects candidates that look like
// non-content noise. Assign writes an accepted value into the partial record.
type Rule struct {
	Field    string
	Pattern  *regexp.Regexp
	Validate func(string) bool
	Assign   func(*core.ExtractedFields, *string)
}

// labelPattern matches a labeled value in markup, e.g.
// <span class="label">Artist:</span> <span>Hokusai</span>.
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)>\s*` + label + `\s*:?\s*</[^>]+>\s*(?:<[^>]+>\s*)*([^<]+?)\s*<`)
}

// defaultRules is the extraction table. Adding a tracked field means adding
// one entry here, nothing else.
var defaultRules = []Rule{
	{
		Field:    "primary_image",
		Pattern:  regexp.MustCompile(`(?i)<meta\s+property="og:image"\s+content="([^"]+)"`),
		Validate: validImageURL,
		Assign:   func(f *core.ExtractedFields, v *string) { f.PrimaryImage = v },
	},
	{
		Field:    "description",
		Pattern:  regexp.MustCompile(`(?i)<meta\s+(?:property="og:description"|name="description")\s+content="([^"]+)"`),
		Validate: validDescription,
		Assign:   func(f *core.ExtractedFields, v *string) { f.Description = v },
	},
	{
		Field:    "artist",
		Pattern:  labelPattern("Artist"),
		Validate: validShortField,
		Assign:   func(f *core.ExtractedFields, v *string) { f.Artist = v },
	},
	{
		Field:    "date",
		Pattern:  labelPattern("Date"),
		Validate: validShortField,
		Assign:   func(f *core.ExtractedFields, v *string) { f.Date = v },
	},
	{
		Field:    "medium",
		Pattern:  labelPattern("Medium"),
		Validate: validShortField,
		Assign:   func(f *core.ExtractedFields, v *string) { f.Medium = v },
	},
	{
		Field:    "culture",
		Pattern:  labelPattern("Culture"),
		Validate: validShortField,
		Assign:   func(f *core.ExtractedFields, v *string) { f.Culture = v },
	},
	{
		Field:    "credit_line",
		Pattern:  labelPattern("Credit\\s+Line"),
		Validate: validShortField,
		Assign:   func(f *core.ExtractedFields, v *string) { f.CreditLine = v },
	},
}

// ExtractFields runs the rule table over a fetched document and returns a
// partial record. A field the rules could not find, or whose candidate was
// rejected by its validator, stays nil so "not found" is distinguishable
// from "found but blank".
func ExtractFields(document string) core.ExtractedFields {
	var fields core.ExtractedFields
	for _, rule := range defaultRules {
		match := rule.Pattern.FindStringSubmatch(document)
		if match == nil {
			continue
		}
		candidate := cleanCandidate(match[1])
		if candidate == "" || !rule.Validate(candidate) {
			continue
		}
		rule.Assign(&fields, &candidate)
	}
	return fields
}

// cleanCandidate decodes HTML entities and collapses internal whitespace.
var whitespaceRun = regexp.MustCompile(`\s+`)

func cleanCandidate(s string) string {
	s = html.UnescapeString(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// looksLikeNoise reports whether a candidate contains markup, stylesheet or
// script fragments that leaked through the pattern.
func looksLikeNoise(s string) bool {
	if strings.ContainsAny(s, "{}") {
		return true
	}
	for _, marker := range []string{"px}", "margin:", "font-", "<script", "function("} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// looksLikeURL reports whether a text candidate is actually a link or path.
func looksLikeURL(s string) bool {
	for _, marker := range []string{"http://", "https://", "://", "www."} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func validDescription(s string) bool {
	if len(s) < minDescriptionLen || len(s) > maxDescriptionLen {
		return false
	}
	return !looksLikeNoise(s) && !looksLikeURL(s)
}

func validShortField(s string) bool {
	if len(s) == 0 || len(s) > maxShortFieldLen {
		return false
	}
	return !looksLikeNoise(s) && !looksLikeURL(s)
}

func validImageURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	return !strings.ContainsAny(s, " {}")
}
