package rag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Metadata keys attached to parsed documents and carried into the vector store.
const (
	MetaFileName    = "file_name"
	MetaFilePath    = "file_path"
	MetaFileType    = "file_type"
	MetaDocID       = "doc_id"
	MetaPageLabel   = "page_label"
	MetaPageIndex   = "page_index"
	MetaPagePrinted = "page_printed"
	MetaPageCount   = "page_count"
)

// ErrNoParser is returned when a file type has no registered parser and no
// fallback is configured.
var ErrNoParser = errors.New("no parser available")

// Document represents a parsed document with its content and associated metadata.
// Paged formats produce one Document per physical page.
type Document struct {
	Content  string            // The extracted text content of the document
	Metadata map[string]string // Additional metadata about the document
}

// Parser defines the interface for document parsing implementations.
// Any type that implements this interface can be registered with the ParserManager
// to handle specific file types.
type Parser interface {
	// Parse reads the file at filePath and returns its documents.
	Parse(filePath string) ([]Document, error)
}

// ParserManager coordinates document parsing by managing different Parser implementations
// and routing files to the appropriate parser based on their type.
type ParserManager struct {
	fileTypeDetector func(string) string
	parsers          map[string]Parser
	fallback         Parser
}

// NewParserManager creates a ParserManager with parsers for PDF, plain text,
// markdown, HTML and JSON. Files of any other type are read as plain text.
func NewParserManager() *ParserManager {
	pm := &ParserManager{
		fileTypeDetector: DetectFileType,
		parsers:          make(map[string]Parser),
	}

	pm.parsers["pdf"] = NewPDFParser()
	pm.parsers["text"] = NewTextParser()
	pm.parsers["markdown"] = NewMarkdownParser()
	pm.parsers["html"] = NewHTMLParser()
	pm.parsers["json"] = NewJSONParser()
	pm.fallback = pm.parsers["text"]

	return pm
}

// Parse routes filePath to the parser registered for its type.
func (pm *ParserManager) Parse(filePath string) ([]Document, error) {
	GlobalLogger.Debug("Starting to parse file", "path", filePath)
	fileType := pm.fileTypeDetector(filePath)
	parser, ok := pm.parsers[fileType]
	if !ok {
		if pm.fallback == nil {
			GlobalLogger.Error("No parser available for file type", "type", fileType)
			return nil, fmt.Errorf("%w for file type: %s", ErrNoParser, fileType)
		}
		GlobalLogger.Debug("Falling back to default parser", "path", filePath, "type", fileType)
		parser = pm.fallback
	}
	docs, err := parser.Parse(filePath)
	if err != nil {
		GlobalLogger.Error("Failed to parse document", "path", filePath, "error", err)
		return nil, err
	}
	GlobalLogger.Debug("Successfully parsed document", "path", filePath, "type", fileType, "documents", len(docs))
	return docs, nil
}

// SetFileTypeDetector allows customization of how file types are detected.
func (pm *ParserManager) SetFileTypeDetector(detector func(string) string) {
	pm.fileTypeDetector = detector
}

// AddParser registers a new parser for a specific file type.
func (pm *ParserManager) AddParser(fileType string, parser Parser) {
	pm.parsers[fileType] = parser
}

// SetFallback sets the parser used for unrecognised types. A nil parser makes
// unknown types an error.
func (pm *ParserManager) SetFallback(parser Parser) {
	pm.fallback = parser
}

var extensionTypes = map[string]string{
	".pdf":      "pdf",
	".txt":      "text",
	".text":     "text",
	".log":      "text",
	".csv":      "text",
	".md":       "markdown",
	".markdown": "markdown",
	".html":     "html",
	".htm":      "html",
	".json":     "json",
}

// DetectFileType maps a path to a parser type. The extension decides when it
// is known; otherwise the content is sniffed. Unrecognised files report
// "unknown".
func DetectFileType(filePath string) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return t
	}
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "unknown"
	}
	switch {
	case mtype.Is("application/pdf"):
		return "pdf"
	case mtype.Is("text/html"):
		return "html"
	case mtype.Is("application/json"):
		return "json"
	case mtype.Is("text/plain"):
		return "text"
	default:
		return "unknown"
	}
}

// TextParser implements the Parser interface for plain text files.
type TextParser struct{}

// NewTextParser creates a new TextParser instance.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse reads the whole file as a single document.
func (p *TextParser) Parse(filePath string) ([]Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return []Document{{
		Content:  string(content),
		Metadata: fileMetadata("text", filePath),
	}}, nil
}

func fileMetadata(fileType, filePath string) map[string]string {
	return map[string]string{
		MetaFileType: fileType,
		MetaFilePath: filePath,
	}
}
