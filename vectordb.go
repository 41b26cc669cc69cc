package docbot

import (
	"time"

	"github.com/teilomillet/docbot/rag"
)

// VectorDB represents a vector database
type VectorDB = rag.VectorDB

// Filter restricts retrieval to the chunks of the listed documents. A nil
// *Filter means no restriction.
type Filter = rag.Filter

// Record is one stored chunk.
type Record = rag.Record

// Schema describes a collection.
type Schema = rag.Schema

// Index describes a vector index.
type Index = rag.Index

// SearchOptions tunes a search.
type SearchOptions = rag.SearchOptions

// SearchResult represents a single search result
type SearchResult = rag.SearchResult

// VectorDBConfig holds the configuration for creating a VectorDB
type VectorDBConfig struct {
	Type      string
	Address   string
	Dimension int
	Timeout   time.Duration
	Options   map[string]interface{}
}

// VectorDBOption is a function type for configuring VectorDBConfig
type VectorDBOption func(*VectorDBConfig)

// SetVectorDBType sets the type of vector database: "memory", "chromem" or
// "milvus".
func SetVectorDBType(dbType string) VectorDBOption {
	return func(c *VectorDBConfig) {
		c.Type = dbType
	}
}

// SetVectorDBAddress sets the address for the vector database
func SetVectorDBAddress(address string) VectorDBOption {
	return func(c *VectorDBConfig) {
		c.Address = address
	}
}

// SetVectorDBDimension sets the dimension for the vector database
func SetVectorDBDimension(dimension int) VectorDBOption {
	return func(c *VectorDBConfig) {
		c.Dimension = dimension
	}
}

// SetVectorDBTimeout bounds connection attempts.
func SetVectorDBTimeout(timeout time.Duration) VectorDBOption {
	return func(c *VectorDBConfig) {
		c.Timeout = timeout
	}
}

// SetVectorDBOption sets a custom option for the vector database
func SetVectorDBOption(key string, value interface{}) VectorDBOption {
	return func(c *VectorDBConfig) {
		if c.Options == nil {
			c.Options = make(map[string]interface{})
		}
		c.Options[key] = value
	}
}

// NewVectorDB creates a new VectorDB instance based on the provided configuration
func NewVectorDB(opts ...VectorDBOption) (VectorDB, error) {
	config := &VectorDBConfig{
		Type:      "memory",
		Dimension: 256,
		Timeout:   30 * time.Second,
		Options:   make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(config)
	}

	return rag.NewVectorDB(&rag.Config{
		Type:       config.Type,
		Address:    config.Address,
		Dimension:  config.Dimension,
		Timeout:    config.Timeout,
		Parameters: config.Options,
	})
}
