package rag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Loader brings source files into the upload directory. Ingested documents
// point at these copies, so citations can cut pages even after the original
// file has moved.
type Loader struct {
	client    *http.Client
	timeout   time.Duration
	uploadDir string
	logger    Logger
}

// NewLoader creates a new Loader with the given options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:    http.DefaultClient,
		timeout:   30 * time.Second,
		uploadDir: filepath.Join(os.TempDir(), "docbot-uploads"),
		logger:    GlobalLogger,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption is a functional option for configuring a Loader
type LoaderOption func(*Loader)

// WithHTTPClient sets a custom HTTP client for the Loader
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = client
	}
}

// WithTimeout bounds each download.
func WithTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

// WithUploadDir sets where loaded files are copied.
func WithUploadDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.uploadDir = dir
	}
}

// WithLogger sets a custom logger for the Loader
func WithLogger(logger Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// UploadDir returns the directory files are copied into.
func (l *Loader) UploadDir() string {
	return l.uploadDir
}

// LoadURL downloads rawURL into the upload directory and returns the local
// path. The file is named after the last element of the URL path.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (string, error) {
	l.logger.Debug("Starting LoadURL", "url", rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q does not name a file", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Error("Failed to execute request", "url", rawURL, "error", err)
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %s", rawURL, resp.Status)
	}

	destPath, err := l.store(name, resp.Body)
	if err != nil {
		return "", err
	}
	l.logger.Debug("Successfully loaded URL", "url", rawURL, "path", destPath)
	return destPath, nil
}

// LoadFile copies a local file into the upload directory and returns the
// copy's path. A file already inside the upload directory is returned as is.
func (l *Loader) LoadFile(ctx context.Context, filePath string) (string, error) {
	l.logger.Debug("Starting LoadFile", "path", filePath)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}
	if dir, err := filepath.Abs(l.uploadDir); err == nil && filepath.Dir(abs) == dir {
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
		}
		return abs, nil
	}

	src, err := os.Open(filePath)
	if err != nil {
		l.logger.Error("Failed to open source file", "path", filePath, "error", err)
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer src.Close()

	destPath, err := l.store(filepath.Base(filePath), src)
	if err != nil {
		return "", err
	}
	l.logger.Debug("Successfully loaded file", "source", filePath, "destination", destPath)
	return destPath, nil
}

// LoadDir loads every regular file under dir, skipping hidden files and
// directories. Files that fail to load are logged and skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]string, error) {
	l.logger.Debug("Starting LoadDir", "dir", dir)

	var loadedFiles []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		loadedPath, err := l.LoadFile(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("Failed to load file", "path", p, "error", err)
			return nil
		}
		loadedFiles = append(loadedFiles, loadedPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	l.logger.Debug("Successfully loaded directory", "dir", dir, "fileCount", len(loadedFiles))
	return loadedFiles, nil
}

func (l *Loader) store(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(l.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	destPath := filepath.Join(l.uploadDir, name)
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return destPath, nil
}
