// Package server exposes the extractors over HTTP: multipart PDF upload in,
// merged plain text out.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/andrealenzi11/poppleract/internal/config"
	"github.com/andrealenzi11/poppleract/internal/extract"
	"github.com/andrealenzi11/poppleract/internal/types"
)

// Runner is the extraction contract the handlers consume; satisfied by
// *extract.Extractor.
type Runner interface {
	ExtractText(ctx context.Context, pdfPath, outPath string, opts types.ExtractOptions) (*types.Result, error)
}

type Server struct {
	cfg     config.Config
	runners map[extract.Mode]Runner
	version string
	logger  *slog.Logger

	requestSem *semaphore.Weighted
	ocrSem     *semaphore.Weighted

	// Per-IP rate limiters, periodically reset.
	limiters sync.Map

	metrics serverMetrics
}

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}

func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}

func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

// New builds a Server around one Runner per extraction mode.
func New(cfg config.Config, runners map[extract.Mode]Runner, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		runners:    runners,
		version:    version,
		logger:     logger,
		requestSem: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		ocrSem:     semaphore.NewWeighted(cfg.MaxOCRConcurrent),
	}
}

// Handler assembles the route table with the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/metrics", s.withAuth(s.handleMetrics))

	mux.HandleFunc("/extract_text",
		s.withAuth(
			s.withRateLimit(
				withMethod(http.MethodPost,
					s.withConcurrencyLimit(s.handleExtractText)))))

	return s.withLogging(s.withRecovery(mux))
}

// ListenAndServe runs the HTTP server until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}

	go s.cleanupRateLimiters(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening",
		"addr", srv.Addr,
		"version", s.version,
		"max_concurrent", s.cfg.MaxConcurrentRequests,
		"max_ocr_concurrent", s.cfg.MaxOCRConcurrent)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupRateLimiters(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			total, active := s.metrics.get()
			s.logger.Info("stats",
				"active", active,
				"total", total,
				"goroutines", runtime.NumGoroutine(),
				"mem_mb", m.Alloc/(1<<20))

			s.limiters.Range(func(key, _ any) bool {
				s.limiters.Delete(key)
				return true
			})
		}
	}
}
