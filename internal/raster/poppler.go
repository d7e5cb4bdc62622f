package raster

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// Poppler rasterizes pages with the pdftoppm or pdftocairo binary.
type Poppler struct {
	// PdftoppmPath overrides the binary name, default "pdftoppm".
	PdftoppmPath string
	// PdftocairoPath overrides the binary name, default "pdftocairo".
	PdftocairoPath string
}

func (p *Poppler) binary(useCairo bool) string {
	if useCairo {
		if p.PdftocairoPath != "" {
			return p.PdftocairoPath
		}
		return "pdftocairo"
	}
	if p.PdftoppmPath != "" {
		return p.PdftoppmPath
	}
	return "pdftoppm"
}

// RenderPages renders the document into outDir, one image per page, and
// returns the artifact paths ordered by page index.
func (p *Poppler) RenderPages(ctx context.Context, pdfPath, outDir string, opts types.RenderOptions) ([]string, error) {
	opts = withRenderDefaults(opts)
	args := popplerArgs(pdfPath, outDir, opts)
	cmd := exec.CommandContext(ctx, p.binary(opts.UseCairo), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", p.binary(opts.UseCairo), err, strings.TrimSpace(stderr.String()))
	}
	return DiscoverArtifacts(outDir, opts.FilenamePrefix, opts.Format)
}

func popplerArgs(pdfPath, outDir string, opts types.RenderOptions) []string {
	args := []string{"-" + opts.Format, "-r", strconv.Itoa(opts.DPI)}
	if opts.FirstPage > 0 {
		args = append(args, "-f", strconv.Itoa(opts.FirstPage))
	}
	if opts.LastPage > 0 {
		args = append(args, "-l", strconv.Itoa(opts.LastPage))
	}
	return append(args, pdfPath, filepath.Join(outDir, opts.FilenamePrefix))
}

func withRenderDefaults(opts types.RenderOptions) types.RenderOptions {
	if opts.DPI <= 0 {
		opts.DPI = 200
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = "pag"
	}
	return opts
}
