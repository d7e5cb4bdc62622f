// Package cmd implements the command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrealenzi11/poppleract/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "poppleract",
	Short: "Extract text from PDF documents using the text layer, OCR, or both",
	Long: `poppleract extracts plain text from PDF documents.

It reads the embedded text layer where one exists and falls back to OCR
(page rasterization plus tesseract) for scanned or image-only pages. The
hybrid mode decides per page based on how many characters the text layer
yields.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, overlaid on environment variables)")
}

// loadConfig builds the effective configuration: environment first, then
// the optional YAML file on top.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if cfgFile != "" {
		var err error
		cfg, err = cfg.LoadFile(cfgFile)
		if err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
