package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrealenzi11/poppleract/internal/extract"
	"github.com/andrealenzi11/poppleract/internal/types"
)

var extractFlags struct {
	mode     string
	minChars int
	raw      bool
	physical bool

	dpi                     int
	lang                    string
	oem                     int
	psm                     int
	tessdataDir             string
	thresholdingMethod      int
	preserveInterwordSpaces int

	imageFormat   string
	useCairo      bool
	preserveCache bool
	verbose       bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <input.pdf> <output.txt>",
	Short: "Extract the text of a PDF into a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mode, err := extract.ParseMode(extractFlags.mode)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		if !extractFlags.verbose {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		cfg.PreserveCache = cfg.PreserveCache || extractFlags.preserveCache
		ex, err := newExtractor(cfg, mode, logger)
		if err != nil {
			return err
		}

		opts := types.ExtractOptions{
			MinCharsNumber:          &extractFlags.minChars,
			Raw:                     extractFlags.raw,
			Physical:                extractFlags.physical,
			DPI:                     extractFlags.dpi,
			Lang:                    extractFlags.lang,
			OEM:                     &extractFlags.oem,
			PSM:                     &extractFlags.psm,
			TessdataDir:             extractFlags.tessdataDir,
			ThresholdingMethod:      extractFlags.thresholdingMethod,
			PreserveInterwordSpaces: &extractFlags.preserveInterwordSpaces,
			ImageFormat:             extractFlags.imageFormat,
			UseCairo:                &extractFlags.useCairo,
		}

		res, err := ex.ExtractText(cmd.Context(), args[0], args[1], opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"extracted %d chars from %d pages (%d text-layer, %d ocr) into %s\n",
			res.NumChars, res.TotalPages, res.TextLayerPages, res.OCRPages, args[1])
		if res.CacheDir != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "page images preserved in %s\n", res.CacheDir)
		}
		return nil
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractFlags.mode, "mode", "hybrid", "extraction mode: hybrid, text, or ocr")
	f.IntVar(&extractFlags.minChars, "minimum-chars-number", 20, "per-page threshold below which the text layer is discarded in favor of OCR")
	f.BoolVar(&extractFlags.raw, "raw", false, "keep strings in content stream order")
	f.BoolVar(&extractFlags.physical, "physical", false, "maintain the original physical layout")
	f.IntVar(&extractFlags.dpi, "dpi", 200, "rasterization and recognition resolution")
	f.StringVar(&extractFlags.lang, "lang", "eng", "tesseract language(s), e.g. eng or eng+ita")
	f.IntVar(&extractFlags.oem, "oem", 3, "tesseract OCR engine mode")
	f.IntVar(&extractFlags.psm, "psm", 3, "tesseract page segmentation mode")
	f.StringVar(&extractFlags.tessdataDir, "tessdata-dir", "", "path to the tessdata directory")
	f.IntVar(&extractFlags.thresholdingMethod, "thresholding-method", 0, "tesseract thresholding method")
	f.IntVar(&extractFlags.preserveInterwordSpaces, "preserve-interword-spaces", 1, "preserve interword spaces in OCR output")
	f.StringVar(&extractFlags.imageFormat, "image-format", "png", "page image format: png or jpeg")
	f.BoolVar(&extractFlags.useCairo, "use-cairo", true, "rasterize with pdftocairo instead of pdftoppm")
	f.BoolVar(&extractFlags.preserveCache, "preserve-cache", false, "keep the page image cache directory after extraction")
	f.BoolVar(&extractFlags.verbose, "verbose", false, "log extraction progress to stderr")

	rootCmd.AddCommand(extractCmd)
}
