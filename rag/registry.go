package rag

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/teilomillet/docbot/pagelabel"
)

// ErrNotFound is returned when a registry record does not exist.
var ErrNotFound = errors.New("not found")

// IngestedDoc is one ingested document: a physical page of a PDF, or a whole
// file for the other formats.
type IngestedDoc struct {
	DocID     string
	FileName  string
	Path      string
	FileType  string
	PageIndex int // physical page, 0 when the file has no pages
	PageLabel string
	CreatedAt time.Time
}

// FilePages is the reconciled page table of a PDF, kept so that citations can
// be traced back to physical pages without reparsing.
type FilePages struct {
	FileName string
	Pages    []pagelabel.Page
}

// ChunkRecord is the text side of a stored chunk. The keyword index is
// rebuilt from these records when a store is reopened.
type ChunkRecord struct {
	ID       string
	DocID    string
	FileName string
	Text     string
	Metadata map[string]string
}

// Registry records what has been ingested. It is backed by badgerhold on a
// badger database, either on disk or in memory.
type Registry struct {
	store *badgerhold.Store
	path  string
}

// OpenRegistry opens the registry at path, creating it if needed. An empty
// path opens a registry that only lives in memory.
func OpenRegistry(path string) (*Registry, error) {
	options := badgerhold.DefaultOptions
	if path == "" {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
		options.Dir = path
		options.ValueDir = path
	}
	options.Logger = nil

	GlobalLogger.Debug("Opening registry", "path", path)
	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return &Registry{store: store, path: path}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// PutDoc inserts or replaces a document record.
func (r *Registry) PutDoc(doc IngestedDoc) error {
	if doc.DocID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if err := r.store.Upsert(doc.DocID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Doc returns one document record.
func (r *Registry) Doc(docID string) (IngestedDoc, error) {
	var doc IngestedDoc
	if err := r.store.Get(docID, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return doc, fmt.Errorf("document %s: %w", docID, ErrNotFound)
		}
		return doc, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Docs returns every document, ordered by file name then page.
func (r *Registry) Docs() ([]IngestedDoc, error) {
	var docs []IngestedDoc
	if err := r.store.Find(&docs, nil); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sortDocs(docs)
	return docs, nil
}

// DocsForFile returns the documents ingested from one file, in page order.
func (r *Registry) DocsForFile(fileName string) ([]IngestedDoc, error) {
	var docs []IngestedDoc
	if err := r.store.Find(&docs, badgerhold.Where("FileName").Eq(fileName)); err != nil {
		return nil, fmt.Errorf("failed to find documents of %s: %w", fileName, err)
	}
	sortDocs(docs)
	return docs, nil
}

// DeleteDoc removes a document and its chunk records. Deleting an unknown
// document is not an error.
func (r *Registry) DeleteDoc(docID string) error {
	if err := r.store.Delete(docID, IngestedDoc{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return r.DeleteChunks(docID)
}

// Files returns the distinct file names with at least one document, sorted.
func (r *Registry) Files() ([]string, error) {
	docs, err := r.Docs()
	if err != nil {
		return nil, err
	}
	var files []string
	seen := make(map[string]bool)
	for _, d := range docs {
		if !seen[d.FileName] {
			seen[d.FileName] = true
			files = append(files, d.FileName)
		}
	}
	return files, nil
}

// PutPages stores the page table of a file, replacing any previous one.
func (r *Registry) PutPages(fileName string, pages []pagelabel.Page) error {
	if err := r.store.Upsert(fileName, FilePages{FileName: fileName, Pages: pages}); err != nil {
		return fmt.Errorf("failed to save pages of %s: %w", fileName, err)
	}
	return nil
}

// Pages returns the page table of a file.
func (r *Registry) Pages(fileName string) ([]pagelabel.Page, error) {
	var fp FilePages
	if err := r.store.Get(fileName, &fp); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("pages of %s: %w", fileName, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pages of %s: %w", fileName, err)
	}
	return fp.Pages, nil
}

// DeletePages removes the page table of a file.
func (r *Registry) DeletePages(fileName string) error {
	if err := r.store.Delete(fileName, FilePages{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete pages of %s: %w", fileName, err)
	}
	return nil
}

// PutChunks stores chunk records.
func (r *Registry) PutChunks(chunks []ChunkRecord) error {
	for _, c := range chunks {
		if err := r.store.Upsert(c.ID, c); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Chunks returns every chunk record.
func (r *Registry) Chunks() ([]ChunkRecord, error) {
	var chunks []ChunkRecord
	if err := r.store.Find(&chunks, nil); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// DeleteChunks removes the chunk records of the given documents.
func (r *Registry) DeleteChunks(docIDs ...string) error {
	if len(docIDs) == 0 {
		return nil
	}
	ids := make([]interface{}, len(docIDs))
	for i, id := range docIDs {
		ids[i] = id
	}
	if err := r.store.DeleteMatching(ChunkRecord{}, badgerhold.Where("DocID").In(ids...)); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func sortDocs(docs []IngestedDoc) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].FileName != docs[j].FileName {
			return docs[i].FileName < docs[j].FileName
		}
		return docs[i].PageIndex < docs[j].PageIndex
	})
}
