package rag

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser extracts the readable text of a markdown file. The first
// heading, when present, is kept as the document title.
type MarkdownParser struct {
	md goldmark.Markdown
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{md: goldmark.New()}
}

func (p *MarkdownParser) Parse(filePath string) ([]Document, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	root := p.md.Parser().Parse(text.NewReader(source))
	var b strings.Builder
	var title string
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if entering && title == "" {
				title = string(headingText(node, source))
			}
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
			return ast.WalkContinue, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			b.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown: %w", err)
	}

	meta := fileMetadata("markdown", filePath)
	if title != "" {
		meta["title"] = title
	}
	return []Document{{Content: strings.TrimSpace(b.String()), Metadata: meta}}, nil
}

func headingText(h *ast.Heading, source []byte) []byte {
	var buf bytes.Buffer
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.Bytes()
}

// HTMLParser extracts the visible body text of an HTML page.
type HTMLParser struct{}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Parse(filePath string) ([]Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, pre, blockquote").AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}

	meta := fileMetadata("html", filePath)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	return []Document{{Content: strings.Join(lines, "\n"), Metadata: meta}}, nil
}

// JSONParser flattens a JSON file into "path: value" lines so that keys stay
// searchable next to their values.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Parse(filePath string) ([]Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json in %s", filePath)
	}

	var lines []string
	flattenJSON("", gjson.ParseBytes(data), &lines)
	return []Document{{
		Content:  strings.Join(lines, "\n"),
		Metadata: fileMetadata("json", filePath),
	}}, nil
}

func flattenJSON(prefix string, value gjson.Result, lines *[]string) {
	if !value.IsObject() && !value.IsArray() {
		if prefix == "" {
			*lines = append(*lines, value.String())
			return
		}
		*lines = append(*lines, prefix+": "+value.String())
		return
	}
	index := 0
	value.ForEach(func(key, child gjson.Result) bool {
		var path string
		switch {
		case value.IsArray():
			path = fmt.Sprintf("%s[%d]", prefix, index)
		case prefix == "":
			path = key.String()
		default:
			path = prefix + "." + key.String()
		}
		index++
		flattenJSON(path, child, lines)
		return true
	})
}
