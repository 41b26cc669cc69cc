package rag

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

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPageOutOfRange is returned for a physical page the file does not have.
var ErrPageOutOfRange = errors.New("page out of range")

var disableConfigDir sync.Once

// PageRenderer cuts physical pages out of PDFs so that a citation can point
// at the page it quotes.
type PageRenderer struct {
	OutDir string
	conf   *model.Configuration
}

// NewPageRenderer returns a renderer writing into outDir.
func NewPageRenderer(outDir string) *PageRenderer {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PageRenderer{
		OutDir: outDir,
		conf:   model.NewDefaultConfiguration(),
	}
}

// PageCount returns the number of physical pages in the PDF at path.
func (r *PageRenderer) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	return n, nil
}

func (r *PageRenderer) checkPage(path string, physical int) error {
	count, err := r.PageCount(path)
	if err != nil {
		return err
	}
	if physical < 1 || physical > count {
		return fmt.Errorf("page %d of %s (%d pages): %w", physical, filepath.Base(path), count, ErrPageOutOfRange)
	}
	return nil
}

// ExtractPage writes physical page of path as the one-page PDF
// <OutDir>/<name>.pdf and returns its path.
func (r *PageRenderer) ExtractPage(ctx context.Context, path string, physical int, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.checkPage(path, physical); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(r.OutDir, ".extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractPagesFile(path, tmpDir, []string{strconv.Itoa(physical)}, r.conf); err != nil {
		return "", fmt.Errorf("failed to extract page %d of %s: %w", physical, path, err)
	}
	written, err := listFiles(tmpDir, ".pdf")
	if err != nil {
		return "", err
	}
	if len(written) != 1 {
		return "", fmt.Errorf("expected one extracted page, found %d", len(written))
	}

	out := filepath.Join(r.OutDir, name+".pdf")
	if err := os.Rename(written[0], out); err != nil {
		return "", fmt.Errorf("failed to move extracted page: %w", err)
	}
	GlobalLogger.Debug("Extracted page", "file", path, "page", physical, "out", out)
	return out, nil
}

// ExtractImages writes the images embedded in physical page of path into
// <OutDir>/<name>/ and returns their paths. A page without images yields an
// empty list.
func (r *PageRenderer) ExtractImages(ctx context.Context, path string, physical int, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.checkPage(path, physical); err != nil {
		return nil, err
	}
	dir := filepath.Join(r.OutDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := api.ExtractImagesFile(path, dir, []string{strconv.Itoa(physical)}, r.conf); err != nil {
		return nil, fmt.Errorf("failed to extract images of page %d of %s: %w", physical, path, err)
	}
	images, err := listFiles(dir, "")
	if err != nil {
		return nil, err
	}
	GlobalLogger.Debug("Extracted images", "file", path, "page", physical, "count", len(images))
	return images, nil
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || (ext != "" && !strings.EqualFold(filepath.Ext(e.Name()), ext)) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
