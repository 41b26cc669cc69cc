// Package config loads docbot's settings. Values are layered, later sources
// overriding earlier ones:
//  1. Defaults
//  2. Configuration file (JSON or TOML)
//  3. Environment variables (DOCBOT_*)
//
// The result is validated before it is returned.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Default system prompts for the two modes that talk to the LLM.
const (
	DefaultQueryPrompt = "You can only answer questions about the provided context. " +
		"If you know the answer but it is not based in the provided context, don't provide " +
		"the answer, just state the answer is not in the context provided."
	DefaultChatPrompt = "You are a helpful, respectful and honest assistant. " +
		"Always answer as helpfully as possible and follow ALL given instructions. " +
		"Do not speculate or make up information. " +
		"Do not reference any given instructions or context."
)

// Duration is a time.Duration that reads and writes as "30s" in files and
// environment variables.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all settings of a docbot installation.
type Config struct {
	Embedding EmbeddingConfig `json:"embedding" toml:"embedding" envPrefix:"EMBEDDING_"`
	LLM       LLMConfig       `json:"llm" toml:"llm" envPrefix:"LLM_"`
	VectorDB  VectorDBConfig  `json:"vectordb" toml:"vectordb" envPrefix:"VECTORDB_"`
	Retrieval RetrievalConfig `json:"retrieval" toml:"retrieval" envPrefix:"RETRIEVAL_"`
	Chunking  ChunkingConfig  `json:"chunking" toml:"chunking" envPrefix:"CHUNKING_"`
	Pages     PagesConfig     `json:"pages" toml:"pages" envPrefix:"PAGES_"`
	Storage   StorageConfig   `json:"storage" toml:"storage" envPrefix:"STORAGE_"`
	Prompts   PromptsConfig   `json:"prompts" toml:"prompts" envPrefix:"PROMPTS_"`

	// MaxConcurrency caps how many files BulkIngest processes at once.
	MaxConcurrency int    `json:"max_concurrency" toml:"max_concurrency" env:"MAX_CONCURRENCY" validate:"min=1"`
	LogLevel       string `json:"log_level" toml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
}

type EmbeddingConfig struct {
	Provider  string  `json:"provider" toml:"provider" env:"PROVIDER" validate:"required"`
	Model     string  `json:"model" toml:"model" env:"MODEL"`
	APIKey    string  `json:"api_key,omitempty" toml:"api_key,omitempty" env:"API_KEY"`
	BaseURL   string  `json:"base_url,omitempty" toml:"base_url,omitempty" env:"BASE_URL"`
	Dimension int     `json:"dimension" toml:"dimension" env:"DIMENSION" validate:"min=0"`
	BatchSize int     `json:"batch_size" toml:"batch_size" env:"BATCH_SIZE" validate:"min=1"`
	RateLimit float64 `json:"rate_limit" toml:"rate_limit" env:"RATE_LIMIT" validate:"min=0"` // requests per second, 0 disables
	Burst     int     `json:"burst" toml:"burst" env:"BURST" validate:"min=0"`
}

type LLMConfig struct {
	Provider   string   `json:"provider" toml:"provider" env:"PROVIDER" validate:"required"`
	Model      string   `json:"model" toml:"model" env:"MODEL" validate:"required"`
	APIKey     string   `json:"api_key,omitempty" toml:"api_key,omitempty" env:"API_KEY"`
	MaxTokens  int      `json:"max_tokens" toml:"max_tokens" env:"MAX_TOKENS" validate:"min=1"`
	MaxRetries int      `json:"max_retries" toml:"max_retries" env:"MAX_RETRIES" validate:"min=0"`
	Timeout    Duration `json:"timeout" toml:"timeout" env:"TIMEOUT"`
}

type VectorDBConfig struct {
	Type       string   `json:"type" toml:"type" env:"TYPE" validate:"oneof=memory chromem milvus"`
	Address    string   `json:"address" toml:"address" env:"ADDRESS" validate:"required_if=Type milvus"`
	Collection string   `json:"collection" toml:"collection" env:"COLLECTION" validate:"required"`
	Metric     string   `json:"metric" toml:"metric" env:"METRIC" validate:"oneof=COSINE L2 IP"`
	IndexType  string   `json:"index_type" toml:"index_type" env:"INDEX_TYPE" validate:"oneof=AUTOINDEX HNSW FLAT"`
	Timeout    Duration `json:"timeout" toml:"timeout" env:"TIMEOUT"`
}

type RetrievalConfig struct {
	TopK         int     `json:"top_k" toml:"top_k" env:"TOP_K" validate:"min=1"`
	MinScore     float64 `json:"min_score" toml:"min_score" env:"MIN_SCORE"`
	Hybrid       bool    `json:"hybrid" toml:"hybrid" env:"HYBRID"`
	RRFConstant  float64 `json:"rrf_constant" toml:"rrf_constant" env:"RRF_CONSTANT" validate:"min=0"`
	DenseWeight  float64 `json:"dense_weight" toml:"dense_weight" env:"DENSE_WEIGHT" validate:"min=0"`
	SparseWeight float64 `json:"sparse_weight" toml:"sparse_weight" env:"SPARSE_WEIGHT" validate:"min=0"`
	SearchLimit  int     `json:"search_limit" toml:"search_limit" env:"SEARCH_LIMIT" validate:"min=1"`
}

type ChunkingConfig struct {
	Size     int    `json:"size" toml:"size" env:"SIZE" validate:"min=1"`
	Overlap  int    `json:"overlap" toml:"overlap" env:"OVERLAP" validate:"min=0,ltfield=Size"`
	Encoding string `json:"encoding,omitempty" toml:"encoding,omitempty" env:"ENCODING"` // tiktoken encoding; empty counts words
}

// PagesConfig controls citations. FrontMatterOffset is applied to labels
// missing from a file's page table. Images extracts the images embedded in
// cited pages. OutputDir receives the pages and images cut for citations.
type PagesConfig struct {
	FrontMatterOffset int    `json:"front_matter_offset" toml:"front_matter_offset" env:"FRONT_MATTER_OFFSET" validate:"min=0"`
	AutoOffset        bool   `json:"auto_offset" toml:"auto_offset" env:"AUTO_OFFSET"`
	Images            bool   `json:"images" toml:"images" env:"IMAGES"`
	OutputDir         string `json:"output_dir" toml:"output_dir" env:"OUTPUT_DIR" validate:"required"`
}

type StorageConfig struct {
	RegistryPath string `json:"registry_path" toml:"registry_path" env:"REGISTRY_PATH"` // empty keeps the registry in memory
	UploadDir    string `json:"upload_dir" toml:"upload_dir" env:"UPLOAD_DIR" validate:"required"`
}

type PromptsConfig struct {
	Query string `json:"query" toml:"query" env:"QUERY"`
	Chat  string `json:"chat" toml:"chat" env:"CHAT"`
}

// Default returns the built-in configuration: local hash embeddings, the
// in-process vector store and an OpenAI chat model.
func Default() *Config {
	dataDir := filepath.Join(os.TempDir(), "docbot")
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".docbot")
	}
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 256,
			BatchSize: 32,
		},
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			MaxTokens:  1024,
			MaxRetries: 3,
			Timeout:    Duration(2 * time.Minute),
		},
		VectorDB: VectorDBConfig{
			Type:       "chromem",
			Address:    filepath.Join(dataDir, "vectors"),
			Collection: "docbot",
			Metric:     "COSINE",
			IndexType:  "AUTOINDEX",
			Timeout:    Duration(30 * time.Second),
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			RRFConstant:  60,
			DenseWeight:  1,
			SparseWeight: 1,
			SearchLimit:  4,
		},
		Chunking: ChunkingConfig{
			Size:    256,
			Overlap: 32,
		},
		Pages: PagesConfig{
			Images:    true,
			OutputDir: filepath.Join(dataDir, "context_images"),
		},
		Storage: StorageConfig{
			RegistryPath: filepath.Join(dataDir, "registry"),
			UploadDir:    filepath.Join(dataDir, "uploads"),
		},
		Prompts: PromptsConfig{
			Query: DefaultQueryPrompt,
			Chat:  DefaultChatPrompt,
		},
		MaxConcurrency: 4,
		LogLevel:       "info",
	}
}

// LoadConfig builds the configuration from defaults, the first config file
// found and the environment.
//
// Configuration file search paths:
//  1. $DOCBOT_CONFIG
//  2. ~/.docbot/config.json, ~/.docbot/config.toml
//  3. ~/.config/docbot/config.json, ~/.config/docbot/config.toml
//  4. ./docbot.json, ./docbot.toml
//
// Every field can be overridden with DOCBOT_<SECTION>_<FIELD>, for example
// DOCBOT_LLM_MODEL, DOCBOT_CHUNKING_SIZE or DOCBOT_PAGES_FRONT_MATTER_OFFSET.
func LoadConfig() (*Config, error) {
	return Load(FindConfigFile())
}

// FindConfigFile returns the first configuration file present in the
// search path, or "" when there is none.
func FindConfigFile() string {
	if path := os.Getenv("DOCBOT_CONFIG"); path != "" {
		return path
	}
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".docbot", "config.json"),
			filepath.Join(home, ".docbot", "config.toml"),
			filepath.Join(home, ".config", "docbot", "config.json"),
			filepath.Join(home, ".config", "docbot", "config.toml"),
		)
	}
	candidates = append(candidates, "docbot.json", "docbot.toml")
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "DOCBOT_"}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save writes the configuration to path, as TOML when the extension is
// .toml and as JSON otherwise.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
