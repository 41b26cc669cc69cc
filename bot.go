// Package docbot lets you chat with your documents and get answers that cite
// the page numbers printed in them.
//
// Files are parsed page by page; every PDF page is tagged with the label
// typeset at its foot ("12", "4-5") or, when it has none, with its position
// in the file. Chunks are embedded into a vector store, retrieved for each
// question, and the answer lists its sources as "file (page label)" linked to
// the physical page cut out of the file.
//
// The quickest way in is New with a configuration from config.LoadConfig:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bot, err := docbot.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bot.Close()
//
//	if _, err := bot.Ingest.IngestSource(ctx, "manual.pdf"); err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := bot.Chat.Chat(ctx, docbot.Request{Message: "How do I reset it?"})
package docbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/teilomillet/docbot/config"
	"github.com/teilomillet/docbot/rag"
)

// Bot wires every docbot service from one configuration.
type Bot struct {
	Config     *config.Config
	Registry   *Registry
	DB         VectorDB
	Embeddings *EmbeddingService
	Sparse     *rag.BM25Index
	Renderer   *rag.PageRenderer
	Ingest     *IngestService
	Retriever  *Retriever
	Citer      *Citer
	Chat       *ChatService
}

type botOptions struct {
	generator Generator
	embedder  Embedder
}

// BotOption customises New.
type BotOption func(*botOptions)

// WithGenerator uses g instead of the model described by the configuration.
func WithGenerator(g Generator) BotOption {
	return func(o *botOptions) {
		o.generator = g
	}
}

// WithEmbedder uses e instead of the embedder described by the configuration.
func WithEmbedder(e Embedder) BotOption {
	return func(o *botOptions) {
		o.embedder = e
	}
}

// New opens the registry and the vector store and builds the ingest,
// retrieval, citation and chat services. When the configured language model
// cannot be created the bot still works for ingestion and search, and Query
// and Chat modes report the error.
func New(ctx context.Context, cfg *config.Config, opts ...BotOption) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if level, err := ParseLogLevel(cfg.LogLevel); err == nil {
		SetLogLevel(level)
	}
	var o botOptions
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bot{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	var err error
	b.Registry, err = OpenRegistry(cfg.Storage.RegistryPath)
	if err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		embedder, err = NewEmbedder(
			SetEmbedderProvider(cfg.Embedding.Provider),
			SetEmbedderModel(cfg.Embedding.Model),
			SetEmbedderAPIKey(cfg.Embedding.APIKey),
			SetOption("dimension", cfg.Embedding.Dimension),
			SetOption("api_url", cfg.Embedding.BaseURL),
			SetOption("host", cfg.Embedding.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}
	b.Embeddings = NewEmbeddingService(embedder,
		WithEmbedBatchSize(cfg.Embedding.BatchSize),
		WithRateLimit(cfg.Embedding.RateLimit, cfg.Embedding.Burst),
		WithChunkFormatter(FormatChunkForEmbedding),
	)

	dimension, err := embedder.GetDimension()
	if err != nil {
		Debug("Embedding dimension not known yet", "error", err)
		dimension = cfg.Embedding.Dimension
	}
	db, err := NewVectorDB(
		SetVectorDBType(cfg.VectorDB.Type),
		SetVectorDBAddress(cfg.VectorDB.Address),
		SetVectorDBDimension(dimension),
		SetVectorDBTimeout(cfg.VectorDB.Timeout.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	b.DB = db
	if err := b.DB.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}

	chunkOpts := []ChunkerOption{ChunkSize(cfg.Chunking.Size), ChunkOverlap(cfg.Chunking.Overlap)}
	if cfg.Chunking.Encoding != "" {
		counter, err := NewTikTokenCounter(cfg.Chunking.Encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to create token counter: %w", err)
		}
		chunkOpts = append(chunkOpts, WithTokenCounter(counter))
	}
	chunker, err := NewChunker(chunkOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	b.Sparse = rag.NewBM25Index()
	b.Ingest = NewIngestService(b.DB, b.Embeddings, b.Registry, chunker,
		WithIngestCollection(cfg.VectorDB.Collection),
		WithIngestMetric(cfg.VectorDB.Metric),
		WithIngestIndexType(cfg.VectorDB.IndexType),
		WithSparseIndex(b.Sparse),
		WithConcurrency(cfg.MaxConcurrency),
		WithIngestLoader(NewLoader(WithUploadDir(cfg.Storage.UploadDir))),
	)
	if err := b.Ingest.RebuildSparseIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	if exists, err := b.DB.HasCollection(ctx, cfg.VectorDB.Collection); err == nil && exists {
		if err := b.DB.LoadCollection(ctx, cfg.VectorDB.Collection); err != nil {
			return nil, fmt.Errorf("failed to load collection: %w", err)
		}
	}

	b.Retriever, err = NewRetriever(b.DB, b.Embeddings, b.Sparse,
		WithRetrieveCollection(cfg.VectorDB.Collection),
		WithTopK(cfg.Retrieval.TopK),
		WithMinScore(cfg.Retrieval.MinScore),
		WithHybrid(cfg.Retrieval.Hybrid),
		WithMetricType(cfg.VectorDB.Metric),
		WithWeights(cfg.Retrieval.DenseWeight, cfg.Retrieval.SparseWeight),
		WithRRFConstant(cfg.Retrieval.RRFConstant),
	)
	if err != nil {
		return nil, err
	}

	b.Renderer = rag.NewPageRenderer(cfg.Pages.OutputDir)
	b.Citer = NewCiter(b.Registry, b.Renderer,
		WithFrontMatterOffset(cfg.Pages.FrontMatterOffset),
		WithAutoOffset(cfg.Pages.AutoOffset),
		WithPageImages(cfg.Pages.Images),
	)

	generator := o.generator
	if generator == nil {
		g, err := NewGollmGeneratorFromConfig(cfg.LLM)
		if err != nil {
			Warn("Language model unavailable, only search mode will work", "provider", cfg.LLM.Provider, "error", err)
		} else {
			generator = g
		}
	}
	b.Chat = NewChatService(b.Retriever, b.Ingest, b.Citer, generator,
		WithSystemPrompts(cfg.Prompts.Query, cfg.Prompts.Chat),
		WithSearchLimit(cfg.Retrieval.SearchLimit),
	)

	ok = true
	Debug("docbot ready", "store", cfg.VectorDB.Type, "collection", cfg.VectorDB.Collection, "chunks", b.Sparse.Len())
	return b, nil
}

// Close releases the vector store and the registry.
func (b *Bot) Close() error {
	var errs []error
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector store: %w", err))
		}
	}
	if b.Registry != nil {
		if err := b.Registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close registry: %w", err))
		}
	}
	return errors.Join(errs...)
}
