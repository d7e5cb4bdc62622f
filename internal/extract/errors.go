package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks path or option validation failures: missing
	// input file, input equal to output, missing output directory, unknown
	// encoding. Surfaced immediately, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPageCountMismatch marks the fatal hybrid invariant violation: the
	// rasterizer and the text source disagree on the document's page count.
	// The two methods disagreeing indicates a rendering or parsing defect,
	// so no partial merge is ever attempted.
	ErrPageCountMismatch = errors.New("page count mismatch")
)

// ToolError wraps a failure raised by one of the external collaborators
// (text source, rasterizer, OCR engine). It is propagated to the caller
// unchanged; retries belong to the service layer.
type ToolError struct {
	Stage string
	Err   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
