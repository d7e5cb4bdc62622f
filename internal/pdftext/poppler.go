// Package pdftext extracts per-page text straight from a PDF's content
// stream, without rasterization or recognition.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// Poppler extracts text with the pdftotext binary.
type Poppler struct {
	// PdftotextPath overrides the binary name, default "pdftotext".
	PdftotextPath string
	// PdfinfoPath overrides the binary name, default "pdfinfo".
	PdfinfoPath string
}

func (p *Poppler) pdftotext() string {
	if p.PdftotextPath != "" {
		return p.PdftotextPath
	}
	return "pdftotext"
}

func (p *Poppler) pdfinfo() string {
	if p.PdfinfoPath != "" {
		return p.PdfinfoPath
	}
	return "pdfinfo"
}

// ExtractPages runs pdftotext once over the whole document and returns one
// string per page, in page order. A page with no text layer yields "".
func (p *Poppler) ExtractPages(ctx context.Context, pdfPath string, opts types.TextOptions) ([]string, error) {
	args := buildArgs(pdfPath, opts)
	cmd := exec.CommandContext(ctx, p.pdftotext(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return SplitPages(string(out)), nil
}

func buildArgs(pdfPath string, opts types.TextOptions) []string {
	args := []string{"-enc", "UTF-8"}
	if opts.Raw {
		args = append(args, "-raw")
	}
	if opts.Physical {
		args = append(args, "-layout")
	}
	return append(args, pdfPath, "-")
}

// SplitPages splits pdftotext output on the form feed it emits after every
// page, dropping the empty element the trailing form feed produces.
func SplitPages(out string) []string {
	pages := strings.Split(out, "\f")
	if n := len(pages); n > 1 && pages[n-1] == "" {
		pages = pages[:n-1]
	}
	return pages
}

var pagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// PageCount reports the page count from the document's metadata via
// pdfinfo. It reads neither the text layer nor the page images, so it
// arbitrates when the two extraction paths disagree.
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, p.pdfinfo(), pdfPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	return parsePageCount(string(out))
}

func parsePageCount(out string) (int, error) {
	m := pagesRe.FindStringSubmatch(out)
	if len(m) != 2 {
		return 0, fmt.Errorf("pdfinfo: pages not found")
	}
	return strconv.Atoi(m[1])
}
