package testutils

import (
	"fmt"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

// SectionWithLinks builds a section titled title that cites links.
func SectionWithLinks(title string, links ...string) domain.Section {
	return domain.Section{
		Title:       title,
		Description: fmt.Sprintf("Findings about %s", title),
		Links:       links,
	}
}

// Participant builds a participant result from sections.
func Participant(id domain.ParticipantID, sections ...domain.Section) domain.ParticipantResult {
	return domain.ParticipantResult{ParticipantID: id, Report: domain.Report(sections)}
}

// PagesFor returns a scraper page set with generated text for urls.
func PagesFor(urls ...string) map[string]string {
	pages := make(map[string]string, len(urls))
	for _, u := range urls {
		pages[u] = "Page content of " + u
	}
	return pages
}
