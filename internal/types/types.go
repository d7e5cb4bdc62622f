package types

// TextOptions control the direct (content-stream) text extraction leaf.
type TextOptions struct {
	// Raw keeps strings in content stream order (pdftotext -raw).
	Raw bool `json:"raw"`
	// Physical maintains the original physical layout (pdftotext -layout).
	Physical bool `json:"physical"`
}

// RenderOptions control page rasterization.
type RenderOptions struct {
	DPI    int    `json:"dpi"`
	Format string `json:"format"` // "png", "jpeg", "tiff"
	// UseCairo selects pdftocairo instead of pdftoppm for the poppler engine.
	UseCairo       bool   `json:"useCairo"`
	FirstPage      int    `json:"firstPage"` // 1-based, 0 = from the first page
	LastPage       int    `json:"lastPage"`  // 1-based, 0 = through the last page
	FilenamePrefix string `json:"filenamePrefix"`
}

// OCROptions control the recognition leaf. The field set mirrors the
// tesseract command line surface.
type OCROptions struct {
	Lang                    string `json:"lang"`
	OEM                     int    `json:"oem"`
	PSM                     int    `json:"psm"`
	DPI                     int    `json:"dpi"`
	TessdataDir             string `json:"tessdataDir,omitempty"`
	ThresholdingMethod      int    `json:"thresholdingMethod"`
	PreserveInterwordSpaces int    `json:"preserveInterwordSpaces"`
}

// ExtractOptions is the full per-request option bag accepted by every
// extractor mode. Zero values are replaced by defaults via WithDefaults.
type ExtractOptions struct {
	// MinCharsNumber is the hybrid decision threshold: a page's direct text
	// is kept only when it is non-empty and at least this many characters.
	// Negative values are clamped to zero; zero means "any non-empty text".
	MinCharsNumber *int `json:"minimum_chars_number,omitempty"`

	Raw      bool `json:"raw"`
	Physical bool `json:"physical"`

	DPI  int    `json:"dpi"`
	Lang string `json:"lang"`

	// OEM, PSM and PreserveInterwordSpaces are pointers for the same reason
	// as MinCharsNumber: zero is a meaningful tesseract setting (legacy
	// engine, OSD-only segmentation, spacing off), so an explicit 0 must
	// survive defaulting.
	OEM                     *int   `json:"oem,omitempty"`
	PSM                     *int   `json:"psm,omitempty"`
	TessdataDir             string `json:"tessdata_dir,omitempty"`
	ThresholdingMethod      int    `json:"thresholding_method"`
	PreserveInterwordSpaces *int   `json:"preserve_interword_spaces,omitempty"`

	ImageFormat    string `json:"image_format"`
	UseCairo       *bool  `json:"use_cairo,omitempty"`
	FilenamePrefix string `json:"filename_prefix"`
}

// WithDefaults fills unset fields with the documented defaults.
func (o ExtractOptions) WithDefaults() ExtractOptions {
	if o.MinCharsNumber == nil {
		n := 20
		o.MinCharsNumber = &n
	} else if *o.MinCharsNumber < 0 {
		n := 0
		o.MinCharsNumber = &n
	}
	if o.DPI <= 0 {
		o.DPI = 200
	}
	if o.Lang == "" {
		o.Lang = "eng"
	}
	if o.OEM == nil {
		n := 3
		o.OEM = &n
	}
	if o.PSM == nil {
		n := 3
		o.PSM = &n
	}
	if o.PreserveInterwordSpaces == nil {
		n := 1
		o.PreserveInterwordSpaces = &n
	}
	if o.ImageFormat == "" {
		o.ImageFormat = "png"
	}
	if o.UseCairo == nil {
		t := true
		o.UseCairo = &t
	}
	if o.FilenamePrefix == "" {
		o.FilenamePrefix = "pag"
	}
	return o
}

// MinChars returns the decision threshold, assuming defaults were applied.
func (o ExtractOptions) MinChars() int {
	if o.MinCharsNumber == nil {
		return 20
	}
	return *o.MinCharsNumber
}

// Text returns the leaf options for the direct text source.
func (o ExtractOptions) Text() TextOptions {
	return TextOptions{Raw: o.Raw, Physical: o.Physical}
}

// Render returns the leaf options for the rasterizer.
func (o ExtractOptions) Render() RenderOptions {
	useCairo := true
	if o.UseCairo != nil {
		useCairo = *o.UseCairo
	}
	return RenderOptions{
		DPI:            o.DPI,
		Format:         o.ImageFormat,
		UseCairo:       useCairo,
		FilenamePrefix: o.FilenamePrefix,
	}
}

// OCR returns the leaf options for the recognition engine.
func (o ExtractOptions) OCR() OCROptions {
	return OCROptions{
		Lang:                    o.Lang,
		OEM:                     intOr(o.OEM, 3),
		PSM:                     intOr(o.PSM, 3),
		DPI:                     o.DPI,
		TessdataDir:             o.TessdataDir,
		ThresholdingMethod:      o.ThresholdingMethod,
		PreserveInterwordSpaces: intOr(o.PreserveInterwordSpaces, 1),
	}
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// PageResult records how one page of the merged document was produced.
type PageResult struct {
	Page   int    `json:"page"`
	Method string `json:"method"` // "text-layer" | "ocr"
	Chars  int    `json:"chars"`
}

// Result is the outcome of one extraction invocation.
type Result struct {
	Text            string       `json:"extracted_text"`
	NumChars        int          `json:"num_extracted_chars"`
	SourceFile      string       `json:"file_name"`
	SourceSizeBytes int64        `json:"file_size_bytes"`
	TotalPages      int          `json:"total_pages"`
	TextLayerPages  int          `json:"text_layer_pages"`
	OCRPages        int          `json:"ocr_pages"`
	Pages           []PageResult `json:"pages,omitempty"`
	// CacheDir is set only when the image cache was preserved.
	CacheDir string `json:"cache_dir,omitempty"`
}
