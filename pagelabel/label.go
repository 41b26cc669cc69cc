// Package pagelabel recovers the page numbers an author typeset on each page of
// a document and maps them back to physical positions in the file.
//
// A printed label is read from the last non-blank line of a page. Labels that
// are not a number or a hyphenated run of numbers ("4-5") are replaced by the
// 1-based physical index, so every page always carries a label.
package pagelabel

import (
	"strconv"
	"strings"
)

// Page describes one physical page and the label attached to it.
type Page struct {
	// Physical is the 1-based position of the page in the file.
	Physical int `json:"physical"`
	// Label is the printed label when one was found, else the physical index.
	Label string `json:"label"`
	// Printed reports whether Label came from the page text.
	Printed bool `json:"printed"`
	// First and Last are the numeric bounds of Label. A single number has
	// First == Last; "4-5" gives 4 and 5.
	First int `json:"first"`
	Last  int `json:"last"`
}

// TrailingLine returns the last non-blank line of text with surrounding
// whitespace removed. It returns "" for text with no visible content.
func TrailingLine(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ParseLabel reports whether candidate is a valid printed label and returns
// its numeric bounds. Every '-' separated part must be a non-empty run of
// ASCII digits.
func ParseLabel(candidate string) (first, last int, ok bool) {
	if candidate == "" {
		return 0, 0, false
	}
	parts := strings.Split(candidate, "-")
	for i, part := range parts {
		if !isDigits(part) {
			return 0, 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, false
		}
		if i == 0 {
			first = n
		}
		last = n
	}
	return first, last, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Reconcile labels every page of a document. The result has one entry per
// input text, in order.
func Reconcile(pageTexts []string) []Page {
	pages := make([]Page, len(pageTexts))
	for i, text := range pageTexts {
		pages[i] = NewPage(i+1, TrailingLine(text))
	}
	return pages
}

// NewPage labels the page at physical with candidate, falling back to the
// physical index when candidate is not a valid label.
func NewPage(physical int, candidate string) Page {
	if first, last, ok := ParseLabel(candidate); ok {
		return Page{Physical: physical, Label: candidate, Printed: true, First: first, Last: last}
	}
	return Page{Physical: physical, Label: strconv.Itoa(physical), First: physical, Last: physical}
}

// LabelsFor returns the label of every page, in order.
func LabelsFor(pageTexts []string) []string {
	pages := Reconcile(pageTexts)
	labels := make([]string, len(pages))
	for i, p := range pages {
		labels[i] = p.Label
	}
	return labels
}

// DetectOffset estimates the number of front-matter pages: the distance
// between the first printed page and the number printed on it. It returns 0
// when nothing was printed or the printed number runs ahead of the file.
func DetectOffset(pages []Page) int {
	for _, p := range pages {
		if !p.Printed {
			continue
		}
		if offset := p.Physical - p.First; offset > 0 {
			return offset
		}
		return 0
	}
	return 0
}
