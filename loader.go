package docbot

import (
	"context"
	"net/http"
	"time"

	"github.com/teilomillet/docbot/rag"
)

// Loader brings documents into the upload directory from various sources.
// The paths it returns stay valid for the lifetime of the ingested
// documents, which is what lets citations cut pages later.
type Loader interface {
	// LoadURL downloads the document at url and returns its local path.
	LoadURL(ctx context.Context, url string) (string, error)

	// LoadFile copies a local file into the upload directory.
	LoadFile(ctx context.Context, path string) (string, error)

	// LoadDir loads every regular, non-hidden file below dir.
	// Returns paths to all loaded files.
	LoadDir(ctx context.Context, dir string) ([]string, error)
}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption = rag.LoaderOption

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) LoaderOption {
	return rag.WithHTTPClient(client)
}

// WithLoaderTimeout bounds each download.
func WithLoaderTimeout(timeout time.Duration) LoaderOption {
	return rag.WithTimeout(timeout)
}

// WithUploadDir sets where loaded files are copied.
func WithUploadDir(dir string) LoaderOption {
	return rag.WithUploadDir(dir)
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger Logger) LoaderOption {
	return rag.WithLogger(logger)
}

// NewLoader creates a new Loader with the specified options.
//
// Example:
//
//	loader := NewLoader(
//	    WithUploadDir("./uploads"),
//	    WithLoaderTimeout(time.Minute),
//	)
func NewLoader(opts ...LoaderOption) Loader {
	return rag.NewLoader(opts...)
}

// isURL reports whether source should be downloaded rather than read from
// disk.
func isURL(source string) bool {
	return len(source) > 8 && (source[:7] == "http://" || source[:8] == "https://")
}
