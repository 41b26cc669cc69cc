package rag

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/teilomillet/docbot/pagelabel"
)

// PDFParser implements the Parser interface for PDF files using the
// ledongthuc/pdf library. Every physical page becomes one Document tagged
// with the label printed on it.
type PDFParser struct{}

// NewPDFParser creates a new PDFParser instance.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse implements the Parser interface for PDF files.
func (p *PDFParser) Parse(filePath string) ([]Document, error) {
	GlobalLogger.Debug("Starting to parse PDF", "path", filePath)
	texts, err := ReadPageTexts(filePath)
	if err != nil {
		GlobalLogger.Error("Failed to extract text from PDF", "path", filePath, "error", err)
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	pages := pagelabel.Reconcile(texts)
	docs := make([]Document, len(pages))
	for i, page := range pages {
		meta := fileMetadata("pdf", filePath)
		meta[MetaPageIndex] = strconv.Itoa(page.Physical)
		meta[MetaPageLabel] = page.Label
		meta[MetaPagePrinted] = strconv.FormatBool(page.Printed)
		meta[MetaPageCount] = strconv.Itoa(len(pages))
		docs[i] = Document{Content: texts[i], Metadata: meta}
	}
	GlobalLogger.Debug("Successfully parsed PDF", "path", filePath, "pages", len(pages))
	return docs, nil
}

// ReadPageTexts returns the text of every physical page, top to bottom, so
// that the last line of each entry is the foot of the page. Pages without a
// content stream yield "".
func ReadPageTexts(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	reader, err := pdf.NewReader(file, fileInfo.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	numPages := reader.NumPage()
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		texts[i-1] = text
	}
	return texts, nil
}

// ReadPageLabels reads a PDF and reconciles the label of each page.
func ReadPageLabels(filePath string) ([]pagelabel.Page, error) {
	texts, err := ReadPageTexts(filePath)
	if err != nil {
		return nil, err
	}
	return pagelabel.Reconcile(texts), nil
}

// pageText rebuilds the visual lines of a page from the positioned glyphs of
// its content stream, top line first. Glyphs whose baselines lie within
// lineTolerance points share a line.
func pageText(page pdf.Page) (string, error) {
	glyphs, err := pageGlyphs(page)
	if err != nil || len(glyphs) == 0 {
		return page.GetPlainText(nil)
	}
	return joinLines(groupLines(glyphs)), nil
}

const lineTolerance = 2.0

func pageGlyphs(page pdf.Page) (glyphs []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			glyphs, err = nil, fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	for _, t := range page.Content().Text {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	return glyphs, nil
}

func groupLines(glyphs []pdf.Text) [][]pdf.Text {
	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var lines [][]pdf.Text
	for _, g := range sorted {
		if n := len(lines); n > 0 && math.Abs(lines[n-1][0].Y-g.Y) <= lineTolerance {
			lines[n-1] = append(lines[n-1], g)
			continue
		}
		lines = append(lines, []pdf.Text{g})
	}
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
	}
	return lines
}

func joinLines(lines [][]pdf.Text) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var b strings.Builder
		for i, g := range line {
			// Some writers position words instead of emitting spaces.
			if prev := line[max(i-1, 0)]; i > 0 && prev.W > 0 {
				if gap := g.X - (prev.X + prev.W); gap > g.FontSize*0.2 {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
		if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}
