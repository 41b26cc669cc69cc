package docbot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/teilomillet/docbot/pagelabel"
	"github.com/teilomillet/docbot/rag"
)

// Source is a retrieved chunk reduced to what a citation needs.
type Source struct {
	File     string `json:"file"`
	Page     string `json:"page"`
	Text     string `json:"text"`
	Physical int    `json:"physical,omitempty"` // 0 when unknown
}

// CurateSources turns retrieved chunks into sources, in retrieval order,
// keeping one source per (file, page, text). Missing file names and page
// labels become "-".
func CurateSources(chunks []RetrievedChunk) []Source {
	seen := make(map[[3]string]bool, len(chunks))
	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		src := Source{File: c.FileName, Page: c.PageLabel, Text: c.Text, Physical: c.PageIndex}
		if src.File == "" {
			src.File = "-"
		}
		if src.Page == "" {
			src.Page = "-"
		}
		key := [3]string{src.File, src.Page, src.Text}
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, src)
	}
	return sources
}

// Citation is one entry of the sources section of an answer.
type Citation struct {
	Index    int
	File     string
	Page     string   // printed label
	Physical int      // 0 when the page could not be located
	PagePath string   // one-page PDF cut from the file, when available
	Images   []string // images embedded in that page
}

// String renders the citation as a numbered markdown line.
func (c Citation) String() string {
	if c.PagePath == "" {
		return fmt.Sprintf("%d. %s (page %s)", c.Index, c.File, c.Page)
	}
	line := fmt.Sprintf("%d. %s ([page %s](%s))", c.Index, c.File, c.Page, filepath.ToSlash(c.PagePath))
	for _, img := range c.Images {
		line += fmt.Sprintf(" ![](%s)", filepath.ToSlash(img))
	}
	return line
}

// Citer resolves sources to physical pages and cuts those pages out of the
// ingested files.
type Citer struct {
	registry   *Registry
	renderer   *rag.PageRenderer
	offset     int
	autoOffset bool
	images     bool
}

// CiterOption configures a Citer.
type CiterOption func(*Citer)

// WithFrontMatterOffset sets the number of unnumbered pages before the page
// printed as "1". It is used for labels a file's page table does not know.
func WithFrontMatterOffset(offset int) CiterOption {
	return func(c *Citer) {
		c.offset = offset
	}
}

// WithAutoOffset derives the front-matter offset from each file's page table
// instead of using a fixed one.
func WithAutoOffset(enabled bool) CiterOption {
	return func(c *Citer) {
		c.autoOffset = enabled
	}
}

// WithPageImages enables extraction of the images embedded in cited pages.
func WithPageImages(enabled bool) CiterOption {
	return func(c *Citer) {
		c.images = enabled
	}
}

// NewCiter creates a Citer. With a nil renderer citations are listed without
// page links.
func NewCiter(registry *Registry, renderer *rag.PageRenderer, opts ...CiterOption) *Citer {
	c := &Citer{registry: registry, renderer: renderer, images: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cite builds one citation per distinct (file, page), numbered from 1 in the
// order the sources are given. Pages that cannot be located or cut are
// logged and cited without a link.
func (c *Citer) Cite(ctx context.Context, sources []Source) []Citation {
	var citations []Citation
	used := make(map[[2]string]bool)
	for _, src := range sources {
		key := [2]string{src.File, src.Page}
		if used[key] {
			continue
		}
		used[key] = true

		cit := Citation{Index: len(citations) + 1, File: src.File, Page: src.Page}
		if err := c.attach(ctx, src, &cit); err != nil {
			if ctx.Err() != nil {
				Warn("Citation cancelled", "file", src.File, "page", src.Page, "error", err)
			} else {
				Warn("Could not attach page to citation", "file", src.File, "page", src.Page, "error", err)
			}
		}
		citations = append(citations, cit)
	}
	return citations
}

// Format renders the citations of sources, one per line.
func (c *Citer) Format(ctx context.Context, sources []Source) string {
	citations := c.Cite(ctx, sources)
	lines := make([]string, len(citations))
	for i, cit := range citations {
		lines[i] = cit.String()
	}
	return strings.Join(lines, "\n")
}

func (c *Citer) attach(ctx context.Context, src Source, cit *Citation) error {
	if c.registry == nil || src.File == "-" {
		return nil
	}
	docs, err := c.registry.DocsForFile(src.File)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("file %s: %w", src.File, ErrNotFound)
	}
	doc := docs[0]
	if doc.FileType != "pdf" {
		return nil
	}

	physical, err := c.resolve(src, doc.Path)
	if err != nil {
		return err
	}
	cit.Physical = physical
	if c.renderer == nil {
		return nil
	}

	name := uuid.NewString()
	cit.PagePath, err = c.renderer.ExtractPage(ctx, doc.Path, physical, name)
	if err != nil {
		return err
	}
	if c.images {
		cit.Images, err = c.renderer.ExtractImages(ctx, doc.Path, physical, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// resolve finds the physical page of src: the page the chunk was read from
// when known, otherwise the label looked up in the file's page table.
func (c *Citer) resolve(src Source, path string) (int, error) {
	if src.Physical > 0 {
		return src.Physical, nil
	}
	pages, err := c.registry.Pages(src.File)
	if errors.Is(err, ErrNotFound) {
		Debug("No stored page table, reading labels from file", "file", src.File)
		pages, err = rag.ReadPageLabels(path)
	}
	if err != nil {
		return 0, err
	}

	opt := pagelabel.WithOffset(c.offset)
	if c.autoOffset {
		opt = pagelabel.WithDetectedOffset()
	}
	physical, ok := pagelabel.NewMapper(pages, opt).Resolve(src.Page)
	if !ok {
		return 0, fmt.Errorf("page %q of %s: %w", src.Page, src.File, rag.ErrPageOutOfRange)
	}
	return physical, nil
}
