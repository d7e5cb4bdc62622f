// Package config holds process configuration: environment variables with
// documented defaults, optionally overridden by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port                 string `yaml:"port"`
	InternalSharedSecret string `yaml:"internal_shared_secret"`

	// Limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxHeaderBytes int   `yaml:"max_header_bytes"`

	// Concurrency
	MaxConcurrentRequests int64 `yaml:"max_concurrent_requests"`
	MaxOCRConcurrent      int64 `yaml:"max_ocr_concurrent"`

	// Server timeouts
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ExtractTimeout    time.Duration `yaml:"extract_timeout"`

	// Rate limiting (per IP)
	RateLimitEvery time.Duration `yaml:"rate_limit_every"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	// Housekeeping
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	HealthDegradeRatio float64       `yaml:"health_degrade_ratio"`

	// Extraction
	CacheDir      string `yaml:"cache_dir"`
	PreserveCache bool   `yaml:"preserve_cache"`
	PageSeparator string `yaml:"page_separator"`
	Encoding      string `yaml:"encoding"`

	// Engine selection
	TextEngine   string `yaml:"text_engine"`   // "poppler" | "native"
	RasterEngine string `yaml:"raster_engine"` // "poppler" | "mupdf"
	OCREngine    string `yaml:"ocr_engine"`    // "tesseract" | "gosseract"

	// Tool paths (empty = resolve from PATH)
	PdftotextPath  string `yaml:"pdftotext_path"`
	PdfinfoPath    string `yaml:"pdfinfo_path"`
	PdftoppmPath   string `yaml:"pdftoppm_path"`
	PdftocairoPath string `yaml:"pdftocairo_path"`
	TesseractPath  string `yaml:"tesseract_path"`

	// Extraction option defaults (used when a request omits values)
	DefaultMinChars    int    `yaml:"default_minimum_chars_number"`
	DefaultDPI         int    `yaml:"default_dpi"`
	DefaultLang        string `yaml:"default_lang"`
	DefaultOEM                     int    `yaml:"default_oem"`
	DefaultPSM                     int    `yaml:"default_psm"`
	DefaultTessdataDir             string `yaml:"default_tessdata_dir"`
	DefaultThresholdingMethod      int    `yaml:"default_thresholding_method"`
	DefaultPreserveInterwordSpaces int    `yaml:"default_preserve_interword_spaces"`
}

// Load builds the configuration from the environment.
func Load() Config {
	return Config{
		Port:                 envStr("PORT", "8080"),
		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 200<<20),
		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		MaxConcurrentRequests: envInt64("MAX_CONCURRENT_REQUESTS", 15),
		MaxOCRConcurrent:      envInt64("MAX_OCR_CONCURRENT", 3),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		ExtractTimeout:    envDur("EXTRACT_TIMEOUT", 160*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval:    envDur("CLEANUP_INTERVAL", 5*time.Minute),
		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		CacheDir:      envStr("CACHE_DIR", os.TempDir()),
		PreserveCache: envBool("PRESERVE_CACHE", false),
		PageSeparator: envStr("PAGE_SEPARATOR", "<END_PAGE>"),
		Encoding:      envStr("TEXT_ENCODING", "utf-8"),

		TextEngine:   envStr("TEXT_ENGINE", "poppler"),
		RasterEngine: envStr("RASTER_ENGINE", "poppler"),
		OCREngine:    envStr("OCR_ENGINE", "tesseract"),

		PdftotextPath:  envStr("PDFTOTEXT_PATH", ""),
		PdfinfoPath:    envStr("PDFINFO_PATH", ""),
		PdftoppmPath:   envStr("PDFTOPPM_PATH", ""),
		PdftocairoPath: envStr("PDFTOCAIRO_PATH", ""),
		TesseractPath:  envStr("TESSERACT_PATH", ""),

		DefaultMinChars:    envInt("DEFAULT_MINIMUM_CHARS_NUMBER", 20),
		DefaultDPI:         envInt("DEFAULT_DPI", 200),
		DefaultLang:        envStr("DEFAULT_LANG", "eng"),
		DefaultOEM:                     envIntNonNeg("DEFAULT_OEM", 3),
		DefaultPSM:                     envIntNonNeg("DEFAULT_PSM", 3),
		DefaultTessdataDir:             envStr("DEFAULT_TESSDATA_DIR", ""),
		DefaultThresholdingMethod:      envIntNonNeg("DEFAULT_THRESHOLDING_METHOD", 0),
		DefaultPreserveInterwordSpaces: envIntNonNeg("DEFAULT_PRESERVE_INTERWORD_SPACES", 1),
	}
}

// LoadFile overlays the YAML file at path on top of c. Only keys present in
// the file are overridden.
func (c Config) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.TextEngine {
	case "poppler", "native":
	default:
		return fmt.Errorf("text_engine must be poppler or native, got %q", c.TextEngine)
	}
	switch c.RasterEngine {
	case "poppler", "mupdf":
	default:
		return fmt.Errorf("raster_engine must be poppler or mupdf, got %q", c.RasterEngine)
	}
	switch c.OCREngine {
	case "tesseract", "gosseract":
	default:
		return fmt.Errorf("ocr_engine must be tesseract or gosseract, got %q", c.OCREngine)
	}
	if st, err := os.Stat(c.CacheDir); err != nil || !st.IsDir() {
		return fmt.Errorf("cache_dir %q is not an existing directory", c.CacheDir)
	}
	if s := c.InternalSharedSecret; s != "" && len(strings.TrimSpace(s)) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters when set")
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// envIntNonNeg accepts zero: the tesseract knobs it parses treat 0 as a
// real setting, unlike the sizes and weights envInt guards.
func envIntNonNeg(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
