package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrealenzi11/poppleract/internal/extract"
	"github.com/andrealenzi11/poppleract/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		runners := make(map[extract.Mode]server.Runner, 3)
		for _, mode := range []extract.Mode{extract.ModeText, extract.ModeOCR, extract.ModeHybrid} {
			ex, err := newExtractor(cfg, mode, logger)
			if err != nil {
				return err
			}
			runners[mode] = ex
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg, runners, version, logger)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
