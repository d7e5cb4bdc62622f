package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/andrealenzi11/poppleract/internal/extract"
	"github.com/andrealenzi11/poppleract/internal/types"
)

// TextResponse mirrors the extraction result for API consumers.
type TextResponse struct {
	FileName          string  `json:"file_name"`
	FileSizeMB        float64 `json:"file_size_mb"`
	NumExtractedChars int     `json:"num_extracted_chars"`
	ExtractedText     string  `json:"extracted_text"`
	TotalPages        int     `json:"total_pages"`
	TextLayerPages    int     `json:"text_layer_pages"`
	OCRPages          int     `json:"ocr_pages"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErr(w, http.StatusNotFound, "not_found", "No such route")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("text-extraction-service (%s) root page!", s.version),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": s.version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := s.metrics.get()
	status := "ok"
	code := http.StatusOK

	ratio := s.cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}
	if active >= int64(float64(s.cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": s.version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := s.metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

// handleExtractText accepts a multipart PDF upload in the "input_file"
// field plus extraction options as query parameters, and returns the merged
// text of the document.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	mode, err := extract.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_mode", sanitizeError(err))
		return
	}
	runner, ok := s.runners[mode]
	if !ok {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_mode",
			fmt.Sprintf("extraction mode %q is not enabled", mode))
		return
	}

	opts, err := s.optionsFromQuery(r.URL.Query())
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_options", sanitizeError(err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("input_file")
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_upload", "multipart field 'input_file' is required: "+sanitizeError(err))
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		fileName = "upload.pdf"
	}

	tmpDir, err := os.MkdirTemp("", "poppleract-*")
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", sanitizeError(err))
		return
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, fileName)
	if err := saveUpload(file, pdfPath); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_upload", sanitizeError(err))
		return
	}
	if err := validatePDFMagic(pdfPath); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, "invalid_upload", sanitizeError(err))
		return
	}

	ctx := r.Context()
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}

	// OCR capacity gating for the modes that may recognize images.
	if mode != extract.ModeText {
		if err := s.ocrSem.Acquire(ctx, 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "ocr_capacity", "OCR at capacity")
			return
		}
		defer s.ocrSem.Release(1)
	}

	outPath := filepath.Join(tmpDir, extract.FileStem(fileName)+".txt")
	res, err := runner.ExtractText(ctx, pdfPath, outPath, opts)
	if err != nil {
		status, code := classifyError(err)
		s.logger.Error("extraction failed",
			"mode", mode.String(),
			"file", sanitizeLogString(fileName),
			"error", err)
		writeErr(w, status, code, sanitizeError(err))
		return
	}

	writeJSON(w, http.StatusOK, TextResponse{
		FileName:          fileName,
		FileSizeMB:        float64(res.SourceSizeBytes) / 1000 / 1000,
		NumExtractedChars: res.NumChars,
		ExtractedText:     res.Text,
		TotalPages:        res.TotalPages,
		TextLayerPages:    res.TextLayerPages,
		OCRPages:          res.OCRPages,
	})
}

// classifyError maps extraction failures onto response classes: missing
// files are not-found, bad input or options are client errors, everything
// else (page count mismatch, collaborator crashes) is a server error.
func classifyError(err error) (status int, code string) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, extract.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, extract.ErrPageCountMismatch):
		return http.StatusInternalServerError, "page_count_mismatch"
	default:
		return http.StatusInternalServerError, "extraction_failed"
	}
}

// optionsFromQuery parses the recognized option parameters, falling back to
// the configured defaults. Malformed values are client errors.
func (s *Server) optionsFromQuery(q url.Values) (types.ExtractOptions, error) {
	minChars := s.cfg.DefaultMinChars
	oem := s.cfg.DefaultOEM
	psm := s.cfg.DefaultPSM
	spaces := s.cfg.DefaultPreserveInterwordSpaces
	opts := types.ExtractOptions{
		MinCharsNumber:          &minChars,
		Lang:                    s.cfg.DefaultLang,
		DPI:                     s.cfg.DefaultDPI,
		OEM:                     &oem,
		PSM:                     &psm,
		TessdataDir:             s.cfg.DefaultTessdataDir,
		ThresholdingMethod:      s.cfg.DefaultThresholdingMethod,
		PreserveInterwordSpaces: &spaces,
	}

	var err error
	if err = queryIntPtr(q, "minimum_chars_number", &opts.MinCharsNumber); err != nil {
		return opts, err
	}
	if opts.Raw, err = queryBool(q, "raw", false); err != nil {
		return opts, err
	}
	if opts.Physical, err = queryBool(q, "physical", false); err != nil {
		return opts, err
	}
	if opts.DPI, err = queryInt(q, "dpi", opts.DPI); err != nil {
		return opts, err
	}
	if v := q.Get("lang"); v != "" {
		opts.Lang = v
	}
	if err = queryIntPtr(q, "oem", &opts.OEM); err != nil {
		return opts, err
	}
	if err = queryIntPtr(q, "psm", &opts.PSM); err != nil {
		return opts, err
	}
	if v := q.Get("tessdata_dir"); v != "" {
		opts.TessdataDir = v
	}
	if opts.ThresholdingMethod, err = queryInt(q, "thresholding_method", opts.ThresholdingMethod); err != nil {
		return opts, err
	}
	if err = queryIntPtr(q, "preserve_interword_spaces", &opts.PreserveInterwordSpaces); err != nil {
		return opts, err
	}
	return opts, nil
}

func queryInt(q url.Values, key string, fallback int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", extract.ErrInvalidInput, key, err)
	}
	return n, nil
}

// queryIntPtr replaces *dst only when the parameter is present, so an
// explicit 0 is distinguishable from an omitted parameter.
func queryIntPtr(q url.Values, key string, dst **int) error {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", extract.ErrInvalidInput, key, err)
	}
	*dst = &n
	return nil
}

func queryBool(q url.Values, key string, fallback bool) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", extract.ErrInvalidInput, key, err)
	}
	return b, nil
}

func saveUpload(src io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return f.Close()
}

// validatePDFMagic checks that the upload starts with the %PDF magic bytes,
// catching HTML error pages and other non-PDF payloads before they reach
// the extraction tools.
func validatePDFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer f.Close()

	header := make([]byte, 5)
	n, err := f.Read(header)
	if err != nil || n < 5 {
		return errors.New("uploaded file is too small to be a valid PDF")
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("uploaded file is not a PDF (starts with %q)", header[:n])
	}
	return nil
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
