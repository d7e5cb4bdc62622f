package cmd

import (
	"fmt"
	"log/slog"

	"github.com/andrealenzi11/poppleract/internal/config"
	"github.com/andrealenzi11/poppleract/internal/extract"
	"github.com/andrealenzi11/poppleract/internal/ocr"
	"github.com/andrealenzi11/poppleract/internal/pdftext"
	"github.com/andrealenzi11/poppleract/internal/raster"
)

func textSource(cfg config.Config) (extract.TextSource, error) {
	switch cfg.TextEngine {
	case "poppler":
		return &pdftext.Poppler{
			PdftotextPath: cfg.PdftotextPath,
			PdfinfoPath:   cfg.PdfinfoPath,
		}, nil
	case "native":
		return pdftext.Native{}, nil
	default:
		return nil, fmt.Errorf("unknown text engine %q", cfg.TextEngine)
	}
}

func rasterizer(cfg config.Config) (extract.Rasterizer, error) {
	switch cfg.RasterEngine {
	case "poppler":
		return &raster.Poppler{
			PdftoppmPath:   cfg.PdftoppmPath,
			PdftocairoPath: cfg.PdftocairoPath,
		}, nil
	case "mupdf":
		return raster.MuPDF{}, nil
	default:
		return nil, fmt.Errorf("unknown raster engine %q", cfg.RasterEngine)
	}
}

func ocrEngine(cfg config.Config) (extract.OCREngine, error) {
	switch cfg.OCREngine {
	case "tesseract":
		return &ocr.TesseractCLI{Path: cfg.TesseractPath}, nil
	case "gosseract":
		return ocr.Gosseract{}, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}

// newExtractor assembles an extractor for one mode from the configured
// engines. Leaves the mode does not use are left nil.
func newExtractor(cfg config.Config, mode extract.Mode, logger *slog.Logger) (*extract.Extractor, error) {
	p := extract.Params{
		Mode:          mode,
		CacheRoot:     cfg.CacheDir,
		PreserveCache: cfg.PreserveCache,
		PageSeparator: cfg.PageSeparator,
		Encoding:      cfg.Encoding,
		Logger:        logger,
	}

	var err error
	if mode != extract.ModeOCR {
		if p.Text, err = textSource(cfg); err != nil {
			return nil, err
		}
	}
	if mode != extract.ModeText {
		if p.Raster, err = rasterizer(cfg); err != nil {
			return nil, err
		}
		if p.OCR, err = ocrEngine(cfg); err != nil {
			return nil, err
		}
	}

	return extract.New(p)
}
