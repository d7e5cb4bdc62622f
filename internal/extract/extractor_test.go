package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrealenzi11/poppleract/internal/types"
)

type fakeTextSource struct {
	pages []string
	err   error
	calls int
}

func (f *fakeTextSource) ExtractPages(_ context.Context, _ string, _ types.TextOptions) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.pages...), nil
}

// fakeRasterizer writes numPages real image files into outDir so cache
// lifecycle assertions can count them.
type fakeRasterizer struct {
	numPages int
	err      error
	calls    int
}

func (f *fakeRasterizer) RenderPages(_ context.Context, _, outDir string, opts types.RenderOptions) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, f.numPages)
	for i := 1; i <= f.numPages; i++ {
		name := fmt.Sprintf("%s-%d.%s", opts.FilenamePrefix, i, opts.Format)
		p := filepath.Join(outDir, name)
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			return nil, err
		}
		paths[i-1] = p
	}
	return paths, nil
}

// fakeOCREngine returns "ocr(<artifact base name>)" and records call order.
type fakeOCREngine struct {
	err   error
	calls []string
}

func (f *fakeOCREngine) RecognizeFile(_ context.Context, imagePath string, _ types.OCROptions) (string, error) {
	f.calls = append(f.calls, filepath.Base(imagePath))
	if f.err != nil {
		return "", f.err
	}
	return "ocr(" + filepath.Base(imagePath) + ")", nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInputPDF(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "doc1.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestExtractor(t *testing.T, p Params) *Extractor {
	t.Helper()
	if p.Logger == nil {
		p.Logger = quietLogger()
	}
	e, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func intPtr(n int) *int { return &n }

func TestHybridEqualsTextWhenEveryPageIsLongEnough(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)
	pages := []string{strings.Repeat("a", 30), strings.Repeat("b", 20), strings.Repeat("c", 999)}

	ocr := &fakeOCREngine{}
	hybrid := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: pages},
		Raster:    &fakeRasterizer{numPages: 3},
		OCR:       ocr,
		CacheRoot: t.TempDir(),
	})
	textOnly := newTestExtractor(t, Params{
		Mode: ModeText,
		Text: &fakeTextSource{pages: pages},
	})

	hybridOut := filepath.Join(dir, "hybrid.txt")
	textOut := filepath.Join(dir, "text.txt")
	opts := types.ExtractOptions{MinCharsNumber: intPtr(20)}

	if _, err := hybrid.ExtractText(context.Background(), in, hybridOut, opts); err != nil {
		t.Fatalf("hybrid ExtractText() error = %v", err)
	}
	if _, err := textOnly.ExtractText(context.Background(), in, textOut, opts); err != nil {
		t.Fatalf("text ExtractText() error = %v", err)
	}

	if len(ocr.calls) != 0 {
		t.Errorf("OCR was invoked %d times, want 0", len(ocr.calls))
	}
	assertSameFileContent(t, hybridOut, textOut)
}

func TestHybridEqualsOCRWhenEveryPageIsEmpty(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)
	pages := []string{"", "", ""}

	hybrid := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: pages},
		Raster:    &fakeRasterizer{numPages: 3},
		OCR:       &fakeOCREngine{},
		CacheRoot: t.TempDir(),
	})
	ocrOnly := newTestExtractor(t, Params{
		Mode:      ModeOCR,
		Raster:    &fakeRasterizer{numPages: 3},
		OCR:       &fakeOCREngine{},
		CacheRoot: t.TempDir(),
	})

	hybridOut := filepath.Join(dir, "hybrid.txt")
	ocrOut := filepath.Join(dir, "ocr.txt")
	if _, err := hybrid.ExtractText(context.Background(), in, hybridOut, types.ExtractOptions{}); err != nil {
		t.Fatalf("hybrid ExtractText() error = %v", err)
	}
	if _, err := ocrOnly.ExtractText(context.Background(), in, ocrOut, types.ExtractOptions{}); err != nil {
		t.Fatalf("ocr ExtractText() error = %v", err)
	}
	assertSameFileContent(t, hybridOut, ocrOut)
}

func TestHybridThreePageScenario(t *testing.T) {
	// Page 1 has 500 chars, page 2 has 5, page 3 none; minChars 20 keeps
	// page 1 verbatim and sends pages 2 and 3 to OCR.
	dir := t.TempDir()
	in := writeInputPDF(t, dir)
	longPage := strings.Repeat("x", 500)
	raster := &fakeRasterizer{numPages: 3}
	ocr := &fakeOCREngine{}

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: []string{longPage, "abcde", ""}},
		Raster:    raster,
		OCR:       ocr,
		CacheRoot: t.TempDir(),
	})

	out := filepath.Join(dir, "out.txt")
	res, err := e.ExtractText(context.Background(), in, out, types.ExtractOptions{MinCharsNumber: intPtr(20)})
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}

	want := longPage + "\n\n<END_PAGE>\n\nocr(pag-2.png)\n\n<END_PAGE>\n\nocr(pag-3.png)"
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("merged output = %q, want %q", got, want)
	}
	if len(ocr.calls) != 2 || ocr.calls[0] != "pag-2.png" || ocr.calls[1] != "pag-3.png" {
		t.Errorf("OCR calls = %v, want [pag-2.png pag-3.png]", ocr.calls)
	}
	if raster.calls != 1 {
		t.Errorf("rasterizer calls = %d, want 1", raster.calls)
	}
	if res.TotalPages != 3 || res.TextLayerPages != 1 || res.OCRPages != 2 {
		t.Errorf("result counts = %d/%d/%d, want 3/1/2", res.TotalPages, res.TextLayerPages, res.OCRPages)
	}
	wantMethods := []string{"text-layer", "ocr", "ocr"}
	for i, p := range res.Pages {
		if p.Method != wantMethods[i] {
			t.Errorf("page %d method = %q, want %q", p.Page, p.Method, wantMethods[i])
		}
	}
}

func TestHybridMinCharsZeroNeverInvokesOCR(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)
	ocr := &fakeOCREngine{}

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: []string{"a", "bb", "c"}},
		Raster:    &fakeRasterizer{numPages: 3},
		OCR:       ocr,
		CacheRoot: t.TempDir(),
	})

	opts := types.ExtractOptions{MinCharsNumber: intPtr(0)}
	if _, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), opts); err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if len(ocr.calls) != 0 {
		t.Errorf("OCR was invoked %d times with minChars=0, want 0", len(ocr.calls))
	}
}

func TestHybridEmptyPageFallsBackEvenWithMinCharsZero(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)
	ocr := &fakeOCREngine{}

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: []string{"text", ""}},
		Raster:    &fakeRasterizer{numPages: 2},
		OCR:       ocr,
		CacheRoot: t.TempDir(),
	})

	opts := types.ExtractOptions{MinCharsNumber: intPtr(0)}
	if _, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), opts); err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if len(ocr.calls) != 1 || ocr.calls[0] != "pag-2.png" {
		t.Errorf("OCR calls = %v, want [pag-2.png]", ocr.calls)
	}
}

func TestHybridPageCountMismatch(t *testing.T) {
	// Extractor reports 3 pages, rasterizer 4 (blank trailing render):
	// fatal, no output file, cache cleaned up anyway.
	dir := t.TempDir()
	cacheRoot := t.TempDir()
	in := writeInputPDF(t, dir)
	ocr := &fakeOCREngine{}

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: []string{"a", "b", "c"}},
		Raster:    &fakeRasterizer{numPages: 4},
		OCR:       ocr,
		CacheRoot: cacheRoot,
	})

	out := filepath.Join(dir, "out.txt")
	_, err := e.ExtractText(context.Background(), in, out, types.ExtractOptions{})
	if !errors.Is(err, ErrPageCountMismatch) {
		t.Fatalf("ExtractText() error = %v, want ErrPageCountMismatch", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, fs.ErrNotExist) {
		t.Error("output file was written despite the page count mismatch")
	}
	if len(ocr.calls) != 0 {
		t.Errorf("OCR was invoked %d times after mismatch, want 0", len(ocr.calls))
	}
	assertDirEmpty(t, cacheRoot)
}

// countingTextSource also exposes the document's metadata page count, like
// the poppler text source does via pdfinfo.
type countingTextSource struct {
	fakeTextSource
	docPages int
}

func (c *countingTextSource) PageCount(_ context.Context, _ string) (int, error) {
	return c.docPages, nil
}

func TestHybridMismatchReportsDocumentPageCount(t *testing.T) {
	dir := t.TempDir()
	cacheRoot := t.TempDir()
	in := writeInputPDF(t, dir)

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &countingTextSource{fakeTextSource: fakeTextSource{pages: []string{"a", "b", "c"}}, docPages: 3},
		Raster:    &fakeRasterizer{numPages: 4},
		OCR:       &fakeOCREngine{},
		CacheRoot: cacheRoot,
	})

	_, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), types.ExtractOptions{})
	if !errors.Is(err, ErrPageCountMismatch) {
		t.Fatalf("ExtractText() error = %v, want ErrPageCountMismatch", err)
	}
	if !strings.Contains(err.Error(), "document reports 3 pages") {
		t.Errorf("error %q does not name the document's own page count", err)
	}
}

func TestCacheLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		preserve bool
	}{
		{"deleted when not preserved", false},
		{"kept with one image per page when preserved", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cacheRoot := t.TempDir()
			in := writeInputPDF(t, dir)

			e := newTestExtractor(t, Params{
				Mode:          ModeHybrid,
				Text:          &fakeTextSource{pages: []string{"", "", ""}},
				Raster:        &fakeRasterizer{numPages: 3},
				OCR:           &fakeOCREngine{},
				CacheRoot:     cacheRoot,
				PreserveCache: tt.preserve,
			})

			res, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), types.ExtractOptions{})
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}

			if !tt.preserve {
				if res.CacheDir != "" {
					t.Errorf("Result.CacheDir = %q, want empty", res.CacheDir)
				}
				assertDirEmpty(t, cacheRoot)
				return
			}
			if res.CacheDir == "" {
				t.Fatal("Result.CacheDir is empty with preserve_cache=true")
			}
			entries, err := os.ReadDir(res.CacheDir)
			if err != nil {
				t.Fatalf("preserved cache dir unreadable: %v", err)
			}
			if len(entries) != 3 {
				t.Errorf("preserved cache holds %d files, want 3", len(entries))
			}
		})
	}
}

func TestConcurrentSameNameInputsGetDistinctCacheDirs(t *testing.T) {
	cacheRoot := t.TempDir()
	e := newTestExtractor(t, Params{
		Mode:          ModeOCR,
		Raster:        &fakeRasterizer{numPages: 1},
		OCR:           &fakeOCREngine{},
		CacheRoot:     cacheRoot,
		PreserveCache: true,
	})

	in := writeInputPDF(t, t.TempDir())
	d1, err := e.createCacheDir(in)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := e.createCacheDir(in)
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Errorf("two invocations share cache dir %q", d1)
	}
	for _, d := range []string{d1, d2} {
		if !strings.HasPrefix(filepath.Base(d), "doc1-") {
			t.Errorf("cache dir %q does not embed the input stem", d)
		}
	}
}

func TestExternalToolFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	cacheRoot := t.TempDir()
	in := writeInputPDF(t, dir)
	boom := errors.New("pdftoppm exploded")

	e := newTestExtractor(t, Params{
		Mode:      ModeHybrid,
		Text:      &fakeTextSource{pages: []string{"a"}},
		Raster:    &fakeRasterizer{err: boom},
		OCR:       &fakeOCREngine{},
		CacheRoot: cacheRoot,
	})

	_, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), types.ExtractOptions{})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("ExtractText() error = %v, want *ToolError", err)
	}
	if toolErr.Stage != "rasterization" {
		t.Errorf("ToolError.Stage = %q, want %q", toolErr.Stage, "rasterization")
	}
	if !errors.Is(err, boom) {
		t.Error("ToolError does not wrap the collaborator error")
	}
	assertDirEmpty(t, cacheRoot)
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)

	tests := []struct {
		name        string
		in, out     string
		wantErr     error
		wantMissing bool
	}{
		{
			name:        "missing input",
			in:          filepath.Join(dir, "nope.pdf"),
			out:         filepath.Join(dir, "out.txt"),
			wantErr:     ErrInvalidInput,
			wantMissing: true,
		},
		{
			name:    "input equals output",
			in:      in,
			out:     in,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing output directory",
			in:      in,
			out:     filepath.Join(dir, "no-such-dir", "out.txt"),
			wantErr: ErrInvalidInput,
		},
		{
			name: "bare output filename resolves against cwd",
			in:   in,
			out:  "out.txt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPaths(tt.in, tt.out)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("checkPaths() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("checkPaths() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMissing && !errors.Is(err, fs.ErrNotExist) {
				t.Error("missing input error does not match fs.ErrNotExist")
			}
		})
	}
}

func TestNewValidatesModeDependencies(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		ok     bool
	}{
		{"text mode without source", Params{Mode: ModeText}, false},
		{"ocr mode without engine", Params{Mode: ModeOCR, Raster: &fakeRasterizer{}}, false},
		{"hybrid without rasterizer", Params{Mode: ModeHybrid, Text: &fakeTextSource{}, OCR: &fakeOCREngine{}}, false},
		{"text mode complete", Params{Mode: ModeText, Text: &fakeTextSource{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Logger = quietLogger()
			_, err := New(tt.params)
			if tt.ok && err != nil {
				t.Errorf("New() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNewRejectsMissingCacheRoot(t *testing.T) {
	_, err := New(Params{
		Mode:      ModeOCR,
		Raster:    &fakeRasterizer{},
		OCR:       &fakeOCREngine{},
		CacheRoot: filepath.Join(t.TempDir(), "missing"),
		Logger:    quietLogger(),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("New() error = %v, want ErrInvalidInput", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeHybrid, "hybrid": ModeHybrid, "text": ModeText, "ocr": ModeOCR} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v, nil", in, got, err, want)
		}
	}
	if _, err := ParseMode("vision"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseMode(vision) error = %v, want ErrInvalidInput", err)
	}
}

func TestStoreHonorsEncoding(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)

	e := newTestExtractor(t, Params{
		Mode:     ModeText,
		Text:     &fakeTextSource{pages: []string{"caffè"}},
		Encoding: "ISO-8859-1",
	})

	out := filepath.Join(dir, "out.txt")
	if _, err := e.ExtractText(context.Background(), in, out, types.ExtractOptions{}); err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'c', 'a', 'f', 'f', 0xE8}
	if string(got) != string(want) {
		t.Errorf("latin-1 output = % x, want % x", got, want)
	}
}

func TestStoreRejectsUnknownEncoding(t *testing.T) {
	dir := t.TempDir()
	in := writeInputPDF(t, dir)

	e := newTestExtractor(t, Params{
		Mode:     ModeText,
		Text:     &fakeTextSource{pages: []string{"x"}},
		Encoding: "definitely-not-an-encoding",
	})

	_, err := e.ExtractText(context.Background(), in, filepath.Join(dir, "out.txt"), types.ExtractOptions{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ExtractText() error = %v, want ErrInvalidInput", err)
	}
}

func assertSameFileContent(t *testing.T, a, b string) {
	t.Helper()
	ca, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := os.ReadFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ca) != string(cb) {
		t.Errorf("outputs differ:\n%q\nvs\n%q", ca, cb)
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory %s not empty: %v", dir, names)
	}
}
