// Package scraper provides the scraping service adapters behind
// ports.Scraper: a client for a hosted scraping actor, an in-process HTTP
// scraper, and decorators that bound, rate limit, trace and measure calls.
package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector matches page chrome that never carries report evidence.
const noiseSelector = "nav, footer, header, aside, script, style, noscript, iframe, form, svg, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup, [role='navigation']"

// contentSelectors are tried in order; the first match is the main content.
var contentSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".content",
	"#content",
	".main-content",
	"#main-content",
}

// ExtractText returns the readable text of an HTML document. Noise elements
// are removed, the first main-content container is preferred and the body is
// the fallback. Lines are trimmed and blank lines dropped.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	var main *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	return cleanWhitespace(blockText(main)), nil
}

// blockText renders a selection with a line break after every block-level
// element so paragraphs do not run together.
func blockText(sel *goquery.Selection) string {
	sel.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, br, section, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return sel.Text()
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
