package raster

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// MuPDF rasterizes pages in-process with go-fitz, for deployments without
// the poppler binaries. Artifacts use the same {prefix}-{index}.{format}
// naming as the poppler engine, with the index zero-padded to the width of
// the last page number. The UseCairo engine choice does not apply here.
type MuPDF struct{}

func (MuPDF) RenderPages(ctx context.Context, pdfPath, outDir string, opts types.RenderOptions) ([]string, error) {
	opts = withRenderDefaults(opts)
	if opts.Format != "png" && opts.Format != "jpeg" {
		return nil, fmt.Errorf("mupdf: unsupported image format %q", opts.Format)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("mupdf open: %w", err)
	}
	defer doc.Close()

	first := opts.FirstPage
	if first <= 0 {
		first = 1
	}
	last := opts.LastPage
	if last <= 0 || last > doc.NumPage() {
		last = doc.NumPage()
	}
	if first > last {
		return nil, fmt.Errorf("mupdf: first page %d after last page %d", first, last)
	}

	width := padWidth(last)
	paths := make([]string, 0, last-first+1)
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(page-1, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("mupdf render page %d: %w", page, err)
		}
		name := fmt.Sprintf("%s-%0*d.%s", opts.FilenamePrefix, width, page, opts.Format)
		path := filepath.Join(outDir, name)
		if err := writeImage(path, opts.Format, img); err != nil {
			return nil, fmt.Errorf("mupdf write page %d: %w", page, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeImage(path, format string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "png":
		err = png.Encode(f, img)
	case "jpeg":
		err = jpeg.Encode(f, img, nil)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
