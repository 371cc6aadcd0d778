package judges

import (
	"strings"
	"text/template"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultContentLimit bounds how many runes of fetched page content are
// rendered into a prompt.
const DefaultContentLimit = 12000

// GetTemplateFuncMap returns the function map available to judge prompt
// templates. Every function is pure and safe for concurrent templates.
//
//	tmpl, err := template.New("prompt").Funcs(GetTemplateFuncMap()).Parse(text)
func GetTemplateFuncMap() template.FuncMap {
	titleCaser := cases.Title(language.English)

	return template.FuncMap{
		// truncate limits s to n runes, adding "..." when it cuts.
		// Template usage: {{truncate .Content 8000}}
		"truncate": truncateRunes,

		// trim removes leading and trailing whitespace.
		"trim": strings.TrimSpace,

		// lower returns s with all Unicode letters mapped to lowercase.
		"lower": strings.ToLower,

		// upper returns s with all Unicode letters mapped to uppercase.
		"upper": strings.ToUpper,

		// title capitalizes each word using English casing rules.
		// Template usage: {{title .Section}}
		"title": func(s string) string {
			return titleCaser.String(s)
		},

		// squash collapses every run of whitespace into a single space.
		"squash": func(s string) string {
			return strings.Join(strings.Fields(s), " ")
		},

		// default returns fallback when s is blank.
		// Template usage: {{default "(no description)" .Description}}
		"default": func(fallback, s string) string {
			if strings.TrimSpace(s) == "" {
				return fallback
			}
			return s
		},

		// join concatenates elements with separator between them.
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},
	}
}

// truncateRunes cuts s to at most n runes. It never splits a UTF-8
// sequence and returns "" for n <= 0.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
