package document

import (
	"fmt"
	"strconv"
	"strings"

	"docquorum/internal/models"
	"docquorum/internal/util"
)

// TOCEntry is one table-of-contents line: a title and its printed page.
type TOCEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// ParseTOC reads one entry per line, whatever the line length. The last
// word must be the page number; lines without one, or without a title,
// are skipped.
func ParseTOC(text string) []TOCEntry {
	var out []TOCEntry
	for line := range strings.Lines(text) {
		words := strings.Fields(line)
		if len(words) < 2 {
			continue
		}
		page, err := strconv.Atoi(words[len(words)-1])
		if err != nil {
			continue
		}
		title := strings.Trim(strings.Join(words[:len(words)-1], " "), " .")
		if title == "" {
			continue
		}
		out = append(out, TOCEntry{Title: title, Page: page})
	}
	return out
}

// Segment cuts pages into one section per entry. offset shifts printed
// page numbers onto PDF pages. Each section runs up to the page before the
// next entry's start; the last runs to the end. Out-of-range numbers are
// clamped so every section covers at least one page.
func Segment(pages []string, entries []TOCEntry, offset int) ([]models.Section, error) {
	if len(entries) == 0 {
		return nil, util.ErrEmptyTOC
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("segment: %w", util.ErrNoExtractableText)
	}
	last := len(pages) - 1
	out := make([]models.Section, 0, len(entries))
	for i, e := range entries {
		start := e.Page - 1 + offset
		end := last
		if i+1 < len(entries) {
			end = entries[i+1].Page - 2 + offset
		}
		start = max(0, min(start, last))
		end = max(start, min(end, last))
		out = append(out, models.Section{
			Index:     i,
			Title:     e.Title,
			Text:      strings.TrimSpace(strings.Join(pages[start:end+1], "\n")),
			StartPage: start + 1,
			EndPage:   end + 1,
		})
	}
	return out, nil
}

// FindByTitle returns the first section whose title matches, ignoring case.
func FindByTitle(sections []models.Section, title string) (models.Section, bool) {
	for _, s := range sections {
		if strings.EqualFold(strings.TrimSpace(s.Title), strings.TrimSpace(title)) {
			return s, true
		}
	}
	return models.Section{}, false
}
