package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// Gosseract recognizes text in-process through the libtesseract binding.
// The binding initializes tesseract with its default engine mode, so the
// OEM option is honored only by the CLI engine.
type Gosseract struct{}

func (Gosseract) RecognizeFile(ctx context.Context, imagePath string, opts types.OCROptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("gosseract set image: %w", err)
	}
	if opts.Lang != "" {
		if err := client.SetLanguage(strings.Split(opts.Lang, "+")...); err != nil {
			return "", fmt.Errorf("gosseract set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
		return "", fmt.Errorf("gosseract set psm: %w", err)
	}
	if opts.TessdataDir != "" {
		if err := client.SetTessdataPrefix(opts.TessdataDir); err != nil {
			return "", fmt.Errorf("gosseract set tessdata prefix: %w", err)
		}
	}
	vars := map[string]int{
		"user_defined_dpi":          opts.DPI,
		"thresholding_method":       opts.ThresholdingMethod,
		"preserve_interword_spaces": opts.PreserveInterwordSpaces,
	}
	for name, value := range vars {
		if err := client.SetVariable(gosseract.SettableVariable(name), strconv.Itoa(value)); err != nil {
			return "", fmt.Errorf("gosseract set %s: %w", name, err)
		}
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract recognize: %w", err)
	}
	return text, nil
}
