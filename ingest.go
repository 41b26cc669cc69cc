package docbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/teilomillet/docbot/pagelabel"
	"github.com/teilomillet/docbot/rag"
)

// IngestedDoc is one ingested document: a physical page of a PDF or a whole
// file of any other type.
type IngestedDoc = rag.IngestedDoc

// Registry records ingested documents, their chunks and the page tables of
// ingested PDFs.
type Registry = rag.Registry

// ErrNotFound is returned when a document or file is not registered.
var ErrNotFound = rag.ErrNotFound

// OpenRegistry opens the registry stored at path. An empty path keeps the
// registry in memory.
func OpenRegistry(path string) (*Registry, error) {
	return rag.OpenRegistry(path)
}

// Metadata exclusion lists. Embeddings never see the document ID; the LLM
// sees neither the file name, the document ID nor the page label, which are
// reported through the sources instead.
var (
	EmbedExcludedKeys = []string{MetaDocID}
	LLMExcludedKeys   = []string{MetaFileName, MetaDocID, MetaPageLabel}
)

// metadataKeys lists the metadata shown alongside chunk text, in order.
// Paths, indexes and counts are bookkeeping and are never shown.
var metadataKeys = []string{MetaFileName, MetaPageLabel, MetaFileType, "title"}

// MetadataText renders the visible metadata of a chunk as "key: value"
// lines, leaving out the excluded keys.
func MetadataText(meta map[string]string, excluded []string) string {
	var b strings.Builder
	for _, key := range metadataKeys {
		if containsKey(excluded, key) {
			continue
		}
		if v := meta[key]; v != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	return b.String()
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// withMetadata prefixes text with the metadata left after excluding keys.
func withMetadata(text string, meta map[string]string, excluded []string) string {
	header := MetadataText(meta, excluded)
	if header == "" {
		return text
	}
	return header + "\n" + text
}

// IngestService turns files into searchable chunks and keeps the vector
// store, the keyword index and the registry in step.
type IngestService struct {
	db          VectorDB
	embed       *EmbeddingService
	registry    *Registry
	chunker     *TextChunker
	parser      *ParserManager
	loader      Loader
	sparse      *rag.BM25Index
	collection  string
	metric      string
	indexType   string
	concurrency int

	mu sync.Mutex
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithIngestCollection sets the vector collection chunks are written to.
func WithIngestCollection(name string) IngestOption {
	return func(s *IngestService) {
		s.collection = name
	}
}

// WithIngestMetric sets the metric of the vector index created for a new
// collection.
func WithIngestMetric(metric string) IngestOption {
	return func(s *IngestService) {
		s.metric = metric
	}
}

// WithIngestIndexType sets the type of the vector index: "HNSW", "FLAT" or
// "AUTOINDEX".
func WithIngestIndexType(indexType string) IngestOption {
	return func(s *IngestService) {
		s.indexType = indexType
	}
}

// WithSparseIndex keeps index in step with the vector store so that hybrid
// retrieval sees the same chunks.
func WithSparseIndex(index *rag.BM25Index) IngestOption {
	return func(s *IngestService) {
		s.sparse = index
	}
}

// WithConcurrency caps the number of files BulkIngest processes at once.
func WithConcurrency(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIngestParser replaces the parser manager.
func WithIngestParser(p *ParserManager) IngestOption {
	return func(s *IngestService) {
		s.parser = p
	}
}

// WithIngestLoader replaces the loader that copies files into the upload
// directory.
func WithIngestLoader(l Loader) IngestOption {
	return func(s *IngestService) {
		s.loader = l
	}
}

// NewIngestService creates an ingest service writing to db and registry.
// Embedding requests go through embed, which should format chunks with
// FormatChunkForEmbedding so metadata is embedded with the text.
func NewIngestService(db VectorDB, embed *EmbeddingService, registry *Registry, chunker *TextChunker, opts ...IngestOption) *IngestService {
	s := &IngestService{
		db:          db,
		embed:       embed,
		registry:    registry,
		chunker:     chunker,
		parser:      NewParser(),
		loader:      NewLoader(),
		collection:  "docbot",
		metric:      "COSINE",
		indexType:   "HNSW",
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormatChunkForEmbedding is the chunk formatter used for embedding: the
// visible metadata followed by the text.
func FormatChunkForEmbedding(c Chunk) string {
	return withMetadata(c.Text, c.Metadata, EmbedExcludedKeys)
}

// Collection returns the name of the vector collection.
func (s *IngestService) Collection() string {
	return s.collection
}

// EnsureCollection creates and indexes the collection when it does not exist
// yet, then loads it.
func (s *IngestService) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.db.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		Debug("Creating collection", "collection", s.collection, "dimension", dimension)
		schema := Schema{
			Name:        s.collection,
			Description: "docbot document chunks",
			Dimension:   dimension,
		}
		if err := s.db.CreateCollection(ctx, s.collection, schema); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		index := Index{
			Type:   s.indexType,
			Metric: s.metric,
			Parameters: map[string]interface{}{
				"M":              16,
				"efConstruction": 256,
			},
		}
		if err := s.db.CreateIndex(ctx, s.collection, "vector", index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := s.db.LoadCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// TransformFileIntoDocuments parses the file at path into documents named
// fileName, each with its own document ID.
func (s *IngestService) TransformFileIntoDocuments(fileName, path string) ([]Document, error) {
	docs, err := s.parser.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]string)
		}
		docs[i].Metadata[MetaFileName] = fileName
		docs[i].Metadata[MetaDocID] = uuid.NewString()
	}
	return docs, nil
}

// Ingest loads the file at path under fileName, replacing any earlier
// ingestion of the same name, and returns the documents it produced.
func (s *IngestService) Ingest(ctx context.Context, fileName, path string) ([]IngestedDoc, error) {
	Info("Ingesting file", "file", fileName, "path", path)

	var local string
	var err error
	if isURL(path) {
		local, err = s.loader.LoadURL(ctx, path)
	} else {
		local, err = s.loader.LoadFile(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", fileName, err)
	}

	docs, err := s.TransformFileIntoDocuments(fileName, local)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.chunker.ChunkDocument(doc)...)
	}
	embedded, err := s.embed.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", fileName, err)
	}

	records := make([]Record, len(embedded))
	chunkRecords := make([]rag.ChunkRecord, len(embedded))
	for i, e := range embedded {
		id := uuid.NewString()
		docID := e.Metadata[MetaDocID]
		records[i] = Record{ID: id, DocID: docID, Vector: e.Embedding, Text: e.Text, Metadata: e.Metadata}
		chunkRecords[i] = rag.ChunkRecord{ID: id, DocID: docID, FileName: fileName, Text: e.Text, Metadata: e.Metadata}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteFile(ctx, fileName); err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := s.EnsureCollection(ctx, len(records[0].Vector)); err != nil {
			return nil, err
		}
		if err := s.db.Insert(ctx, s.collection, records); err != nil {
			return nil, fmt.Errorf("failed to insert chunks of %s: %w", fileName, err)
		}
		if err := s.db.Flush(ctx, s.collection); err != nil {
			return nil, fmt.Errorf("failed to flush collection: %w", err)
		}
	}
	if err := s.registry.PutChunks(chunkRecords); err != nil {
		return nil, err
	}
	if s.sparse != nil {
		for _, r := range records {
			if err := s.sparse.Add(ctx, r); err != nil {
				return nil, fmt.Errorf("failed to index chunk %s: %w", r.ID, err)
			}
		}
	}

	ingested := make([]IngestedDoc, 0, len(docs))
	var pages []pagelabel.Page
	for _, doc := range docs {
		rec := IngestedDoc{
			DocID:     doc.Metadata[MetaDocID],
			FileName:  fileName,
			Path:      local,
			FileType:  doc.Metadata[MetaFileType],
			PageLabel: doc.Metadata[MetaPageLabel],
		}
		if physical, err := strconv.Atoi(doc.Metadata[MetaPageIndex]); err == nil {
			rec.PageIndex = physical
			candidate := ""
			if doc.Metadata[MetaPagePrinted] == "true" {
				candidate = rec.PageLabel
			}
			pages = append(pages, pagelabel.NewPage(physical, candidate))
		}
		if err := s.registry.PutDoc(rec); err != nil {
			return nil, err
		}
		stored, err := s.registry.Doc(rec.DocID)
		if err != nil {
			return nil, err
		}
		ingested = append(ingested, stored)
	}
	if len(pages) > 0 {
		if err := s.registry.PutPages(fileName, pages); err != nil {
			return nil, err
		}
	}

	Info("Ingested file", "file", fileName, "documents", len(ingested), "chunks", len(records))
	return ingested, nil
}

// IngestFile is the source for one file in a BulkIngest call.
type IngestFile struct {
	Name string
	Path string
}

// BulkIngest ingests files concurrently. The first failure cancels the
// remaining work and is returned; documents ingested before it are kept.
func (s *IngestService) BulkIngest(ctx context.Context, files []IngestFile) ([]IngestedDoc, error) {
	results := make([][]IngestedDoc, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			docs, err := s.Ingest(gctx, f.Name, f.Path)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []IngestedDoc
	for _, docs := range results {
		all = append(all, docs...)
	}
	return all, nil
}

// IngestSource ingests a file, every file below a directory, or a URL.
func (s *IngestService) IngestSource(ctx context.Context, source string) ([]IngestedDoc, error) {
	if isURL(source) {
		return s.Ingest(ctx, urlFileName(source), source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", source, err)
	}
	if !info.IsDir() {
		return s.Ingest(ctx, filepath.Base(source), source)
	}

	var files []IngestFile
	err = filepath.WalkDir(source, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != source {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, IngestFile{Name: filepath.Base(p), Path: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", source, err)
	}
	return s.BulkIngest(ctx, files)
}

func urlFileName(rawURL string) string {
	name := rawURL
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return name[strings.LastIndex(name, "/")+1:]
}

// ListIngested returns every ingested document.
func (s *IngestService) ListIngested() ([]IngestedDoc, error) {
	return s.registry.Docs()
}

// ListFiles returns the names of the ingested files.
func (s *IngestService) ListFiles() ([]string, error) {
	return s.registry.Files()
}

// DocIDsForFile returns the document IDs of one file, the context filter for
// questions about that file.
func (s *IngestService) DocIDsForFile(fileName string) ([]string, error) {
	docs, err := s.registry.DocsForFile(fileName)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("file %s: %w", fileName, ErrNotFound)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	return ids, nil
}

// Delete removes one document from the store, the keyword index and the
// registry.
func (s *IngestService) Delete(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.registry.Doc(docID); err != nil {
		return err
	}
	return s.deleteDocs(ctx, []string{docID})
}

// DeleteFile removes every document of a file. Deleting a file that was never
// ingested is not an error.
func (s *IngestService) DeleteFile(ctx context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFile(ctx, fileName)
}

func (s *IngestService) deleteFile(ctx context.Context, fileName string) error {
	docs, err := s.registry.DocsForFile(fileName)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		Debug("Deleting previous documents", "file", fileName, "count", len(docs))
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.DocID
		}
		if err := s.deleteDocs(ctx, ids); err != nil {
			return err
		}
	}
	return s.registry.DeletePages(fileName)
}

func (s *IngestService) deleteDocs(ctx context.Context, docIDs []string) error {
	filter := Filter{DocIDs: docIDs}
	exists, err := s.db.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := s.db.Delete(ctx, s.collection, filter); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
	}
	if s.sparse != nil {
		if err := s.sparse.RemoveDocs(ctx, filter); err != nil {
			return err
		}
	}
	for _, id := range docIDs {
		if err := s.registry.DeleteDoc(id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every ingested file.
func (s *IngestService) DeleteAll(ctx context.Context) error {
	files, err := s.ListFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := s.DeleteFile(ctx, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// RebuildSparseIndex fills the keyword index from the chunk records in the
// registry. It is used when a persistent store is reopened.
func (s *IngestService) RebuildSparseIndex(ctx context.Context) error {
	if s.sparse == nil {
		return nil
	}
	chunks, err := s.registry.Chunks()
	if err != nil {
		return err
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	for _, c := range chunks {
		if err := s.sparse.Add(ctx, Record{ID: c.ID, DocID: c.DocID, Text: c.Text, Metadata: c.Metadata}); err != nil {
			return err
		}
	}
	Debug("Rebuilt keyword index", "chunks", len(chunks))
	return nil
}
