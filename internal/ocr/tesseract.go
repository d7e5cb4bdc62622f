// Package ocr recognizes text from rasterized page images.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/andrealenzi11/poppleract/internal/types"
)

// TesseractCLI recognizes text by invoking the tesseract binary, honoring
// the full engine-mode/segmentation/DPI/thresholding/spacing option surface.
type TesseractCLI struct {
	// Path overrides the binary name, default "tesseract".
	Path string
}

func (t *TesseractCLI) binary() string {
	if t.Path != "" {
		return t.Path
	}
	return "tesseract"
}

// RecognizeFile runs OCR on one image file and returns the recognized text.
func (t *TesseractCLI) RecognizeFile(ctx context.Context, imagePath string, opts types.OCROptions) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary(), tesseractArgs(imagePath, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

func tesseractArgs(imagePath string, opts types.OCROptions) []string {
	args := []string{
		imagePath, "stdout",
		"-l", opts.Lang,
		"--oem", strconv.Itoa(opts.OEM),
		"--psm", strconv.Itoa(opts.PSM),
		"--dpi", strconv.Itoa(opts.DPI),
		"-c", "thresholding_method=" + strconv.Itoa(opts.ThresholdingMethod),
		"-c", "preserve_interword_spaces=" + strconv.Itoa(opts.PreserveInterwordSpaces),
	}
	if opts.TessdataDir != "" {
		args = append(args, "--tessdata-dir", opts.TessdataDir)
	}
	return args
}
