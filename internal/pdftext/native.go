package pdftext

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// Native extracts text in-process with github.com/ledongthuc/pdf, for
// deployments without the poppler binaries. The Raw and Physical layout
// flags only apply to the poppler engine and are ignored here.
type Native struct{}

func (Native) ExtractPages(ctx context.Context, pdfPath string, _ types.TextOptions) (pages []string, err error) {
	// The parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parse: %v", r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]string, 0, total)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
