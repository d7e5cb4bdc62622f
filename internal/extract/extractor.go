// Package extract holds the per-page extraction decision engine: direct
// text, OCR, or a hybrid of the two chosen page by page against a character
// threshold, merged into one ordered document.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// TextSource pulls per-page text straight from the PDF content stream.
// Page order is preserved; "" is a valid element (no text on that page).
type TextSource interface {
	ExtractPages(ctx context.Context, pdfPath string, opts types.TextOptions) ([]string, error)
}

// Rasterizer renders the document into outDir, one image file per page,
// returning the artifact paths ordered by page index.
type Rasterizer interface {
	RenderPages(ctx context.Context, pdfPath, outDir string, opts types.RenderOptions) ([]string, error)
}

// OCREngine recognizes the text of one page image.
type OCREngine interface {
	RecognizeFile(ctx context.Context, imagePath string, opts types.OCROptions) (string, error)
}

// PageCounter is an optional TextSource refinement: a page count read from
// the document's metadata, independent of both extraction paths. When the
// hybrid invariant check fails it tells which side miscounted.
type PageCounter interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
}

// Mode selects which leaves an Extractor drives and how pages are produced.
type Mode int

const (
	// ModeText uses the content-stream text layer only.
	ModeText Mode = iota
	// ModeOCR rasterizes and recognizes every page unconditionally.
	ModeOCR
	// ModeHybrid chooses per page between the text layer and OCR.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeOCR:
		return "ocr"
	case ModeHybrid:
		return "hybrid"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps the wire names to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "hybrid":
		return ModeHybrid, nil
	case "text":
		return ModeText, nil
	case "ocr":
		return ModeOCR, nil
	}
	return 0, fmt.Errorf("%w: unknown extraction mode %q", ErrInvalidInput, s)
}

const (
	methodTextLayer = "text-layer"
	methodOCR       = "ocr"
)

// Params configure an Extractor. Leaves not required by the mode may be nil.
type Params struct {
	Mode   Mode
	Text   TextSource
	Raster Rasterizer
	OCR    OCREngine

	// CacheRoot is the parent of per-invocation image cache directories.
	// Defaults to the OS temp directory; must already exist.
	CacheRoot string
	// PreserveCache keeps the image cache directory after extraction.
	PreserveCache bool
	// PageSeparator defaults to DefaultPageSeparator.
	PageSeparator string
	// Encoding is the IANA name of the output text encoding, default utf-8.
	Encoding string

	Logger *slog.Logger
}

// Extractor runs one document at a time, page-sequentially. All state that
// was ambient in older designs (cache folder, logger, preserve flag) is
// instance configuration.
type Extractor struct {
	mode   Mode
	text   TextSource
	raster Rasterizer
	ocr    OCREngine

	cacheRoot     string
	preserveCache bool
	separator     string
	encoding      string
	logger        *slog.Logger
}

// New validates that the leaves required by the mode are present and that
// the cache root exists.
func New(p Params) (*Extractor, error) {
	switch p.Mode {
	case ModeText:
		if p.Text == nil {
			return nil, fmt.Errorf("%w: text mode requires a text source", ErrInvalidInput)
		}
	case ModeOCR:
		if p.Raster == nil || p.OCR == nil {
			return nil, fmt.Errorf("%w: ocr mode requires a rasterizer and an ocr engine", ErrInvalidInput)
		}
	case ModeHybrid:
		if p.Text == nil || p.Raster == nil || p.OCR == nil {
			return nil, fmt.Errorf("%w: hybrid mode requires all three leaves", ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidInput, int(p.Mode))
	}

	e := &Extractor{
		mode:          p.Mode,
		text:          p.Text,
		raster:        p.Raster,
		ocr:           p.OCR,
		cacheRoot:     p.CacheRoot,
		preserveCache: p.PreserveCache,
		separator:     p.PageSeparator,
		encoding:      p.Encoding,
		logger:        p.Logger,
	}
	if e.cacheRoot == "" {
		e.cacheRoot = os.TempDir()
	}
	if e.separator == "" {
		e.separator = DefaultPageSeparator
	}
	if e.encoding == "" {
		e.encoding = "utf-8"
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if p.Mode != ModeText {
		if st, err := os.Stat(e.cacheRoot); err != nil || !st.IsDir() {
			return nil, fmt.Errorf("%w: cache root %q is not an existing directory", ErrInvalidInput, e.cacheRoot)
		}
	}
	return e, nil
}

// Mode reports the extractor's variant.
func (e *Extractor) Mode() Mode { return e.mode }

// ExtractText extracts pdfPath's text and writes the merged document to
// outPath. It fails when the input does not exist, equals the output path,
// or the output directory is missing; the output file is only created after
// the full merge succeeded.
func (e *Extractor) ExtractText(ctx context.Context, pdfPath, outPath string, opts types.ExtractOptions) (*types.Result, error) {
	opts = opts.WithDefaults()
	if err := checkPaths(pdfPath, outPath); err != nil {
		return nil, err
	}

	var (
		finals   []string
		pages    []types.PageResult
		cacheDir string
		err      error
	)
	switch e.mode {
	case ModeText:
		finals, pages, err = e.runText(ctx, pdfPath, opts)
	case ModeOCR:
		finals, pages, cacheDir, err = e.runOCR(ctx, pdfPath, opts)
	case ModeHybrid:
		finals, pages, cacheDir, err = e.runHybrid(ctx, pdfPath, opts)
	}
	if err != nil {
		return nil, err
	}

	merged := Merge(finals, e.separator)
	if err := e.store(merged, outPath); err != nil {
		return nil, err
	}
	return e.buildResult(pdfPath, merged, pages, cacheDir)
}

// runText produces every page from the text layer.
func (e *Extractor) runText(ctx context.Context, pdfPath string, opts types.ExtractOptions) ([]string, []types.PageResult, error) {
	texts, err := e.text.ExtractPages(ctx, pdfPath, opts.Text())
	if err != nil {
		return nil, nil, &ToolError{Stage: "direct text extraction", Err: err}
	}
	pages := make([]types.PageResult, len(texts))
	for i, t := range texts {
		pages[i] = types.PageResult{Page: i + 1, Method: methodTextLayer, Chars: utf8.RuneCountInString(t)}
	}
	return texts, pages, nil
}

// runOCR rasterizes every page and recognizes every artifact, in the order
// of the page index embedded in the artifact names.
func (e *Extractor) runOCR(ctx context.Context, pdfPath string, opts types.ExtractOptions) ([]string, []types.PageResult, string, error) {
	cacheDir, err := e.createCacheDir(pdfPath)
	if err != nil {
		return nil, nil, "", err
	}
	defer e.removeCacheDir(cacheDir)

	images, err := e.raster.RenderPages(ctx, pdfPath, cacheDir, opts.Render())
	if err != nil {
		return nil, nil, "", &ToolError{Stage: "rasterization", Err: err}
	}

	finals := make([]string, len(images))
	pages := make([]types.PageResult, len(images))
	for i, img := range images {
		text, err := e.ocr.RecognizeFile(ctx, img, opts.OCR())
		if err != nil {
			return nil, nil, "", &ToolError{Stage: "ocr", Err: err}
		}
		finals[i] = text
		pages[i] = types.PageResult{Page: i + 1, Method: methodOCR, Chars: utf8.RuneCountInString(text)}
	}
	return finals, pages, e.preservedDir(cacheDir), nil
}

// runHybrid extracts the text layer and the page images for the whole
// document, checks that both paths agree on the page count, then chooses
// per page: direct text when it is non-empty and at least minChars runes,
// OCR of the paired image otherwise. One page's fallback never affects its
// siblings.
func (e *Extractor) runHybrid(ctx context.Context, pdfPath string, opts types.ExtractOptions) ([]string, []types.PageResult, string, error) {
	texts, err := e.text.ExtractPages(ctx, pdfPath, opts.Text())
	if err != nil {
		return nil, nil, "", &ToolError{Stage: "direct text extraction", Err: err}
	}

	cacheDir, err := e.createCacheDir(pdfPath)
	if err != nil {
		return nil, nil, "", err
	}
	defer e.removeCacheDir(cacheDir)

	images, err := e.raster.RenderPages(ctx, pdfPath, cacheDir, opts.Render())
	if err != nil {
		return nil, nil, "", &ToolError{Stage: "rasterization", Err: err}
	}

	if len(texts) != len(images) {
		if pc, ok := e.text.(PageCounter); ok {
			if n, cerr := pc.PageCount(ctx, pdfPath); cerr == nil {
				return nil, nil, "", fmt.Errorf("%w: %d extracted pages, %d rendered images (document reports %d pages)",
					ErrPageCountMismatch, len(texts), len(images), n)
			}
		}
		return nil, nil, "", fmt.Errorf("%w: %d extracted pages, %d rendered images",
			ErrPageCountMismatch, len(texts), len(images))
	}

	minChars := opts.MinChars()
	finals := make([]string, len(texts))
	pages := make([]types.PageResult, len(texts))
	for i, direct := range texts {
		if direct != "" && utf8.RuneCountInString(direct) >= minChars {
			finals[i] = direct
			pages[i] = types.PageResult{Page: i + 1, Method: methodTextLayer, Chars: utf8.RuneCountInString(direct)}
			continue
		}
		recognized, err := e.ocr.RecognizeFile(ctx, images[i], opts.OCR())
		if err != nil {
			return nil, nil, "", &ToolError{Stage: "ocr", Err: err}
		}
		finals[i] = recognized
		pages[i] = types.PageResult{Page: i + 1, Method: methodOCR, Chars: utf8.RuneCountInString(recognized)}
	}
	return finals, pages, e.preservedDir(cacheDir), nil
}

func (e *Extractor) preservedDir(cacheDir string) string {
	if e.preserveCache {
		return cacheDir
	}
	return ""
}

func (e *Extractor) buildResult(pdfPath, merged string, pages []types.PageResult, cacheDir string) (*types.Result, error) {
	res := &types.Result{
		Text:       merged,
		NumChars:   utf8.RuneCountInString(merged),
		SourceFile: filepath.Base(pdfPath),
		TotalPages: len(pages),
		Pages:      pages,
		CacheDir:   cacheDir,
	}
	if st, err := os.Stat(pdfPath); err == nil {
		res.SourceSizeBytes = st.Size()
	}
	for _, p := range pages {
		switch p.Method {
		case methodTextLayer:
			res.TextLayerPages++
		case methodOCR:
			res.OCRPages++
		}
	}
	e.logger.Info("extraction complete",
		"mode", e.mode.String(),
		"file", res.SourceFile,
		"pages", res.TotalPages,
		"ocr_pages", res.OCRPages,
		"chars", res.NumChars)
	return res, nil
}

// checkPaths enforces the shared validation contract: the input must be an
// existing regular file, distinct from the output path, and the output's
// directory must exist.
func checkPaths(pdfPath, outPath string) error {
	st, err := os.Stat(pdfPath)
	if err != nil {
		// The wrapped stat error matches fs.ErrNotExist for missing files,
		// which the service layer maps to a not-found response.
		return fmt.Errorf("%w: input file: %w", ErrInvalidInput, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: input %q is a directory", ErrInvalidInput, pdfPath)
	}
	if pdfPath == outPath {
		return fmt.Errorf("%w: input and output paths are identical", ErrInvalidInput)
	}
	outDir := filepath.Dir(outPath)
	if st, err := os.Stat(outDir); err != nil || !st.IsDir() {
		return fmt.Errorf("%w: output directory %q does not exist", ErrInvalidInput, outDir)
	}
	return nil
}
