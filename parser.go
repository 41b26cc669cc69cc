package docbot

import (
	"github.com/teilomillet/docbot/pagelabel"
	"github.com/teilomillet/docbot/rag"
)

// Document represents a parsed document. PDFs yield one Document per
// physical page, tagged with the page label printed on it.
type Document = rag.Document

// Parser defines the interface for parsing documents
type Parser = rag.Parser

// ParserManager routes files to the parser registered for their type.
type ParserManager = rag.ParserManager

// Metadata keys set on parsed documents.
const (
	MetaFileName    = rag.MetaFileName
	MetaFilePath    = rag.MetaFilePath
	MetaFileType    = rag.MetaFileType
	MetaDocID       = rag.MetaDocID
	MetaPageLabel   = rag.MetaPageLabel
	MetaPageIndex   = rag.MetaPageIndex
	MetaPagePrinted = rag.MetaPagePrinted
	MetaPageCount   = rag.MetaPageCount
)

// NewParser creates a ParserManager that reads PDF, text, markdown, HTML and
// JSON files.
func NewParser() *ParserManager {
	return rag.NewParserManager()
}

// SetFileTypeDetector sets a custom file type detector
func SetFileTypeDetector(p *ParserManager, detector func(string) string) {
	p.SetFileTypeDetector(detector)
}

// WithParser adds a parser for a specific file type
func WithParser(p *ParserManager, fileType string, parser Parser) {
	p.AddParser(fileType, parser)
}

// TextParser returns a new text parser
func TextParser() Parser {
	return rag.NewTextParser()
}

// PDFParser returns a new PDF parser
func PDFParser() Parser {
	return rag.NewPDFParser()
}

// PageLabels reads the PDF at path and returns the label of every physical
// page.
func PageLabels(path string) ([]pagelabel.Page, error) {
	return rag.ReadPageLabels(path)
}
