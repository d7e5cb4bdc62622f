package extract

import (
	"fmt"
	"os"

	"golang.org/x/text/encoding/ianaindex"
)

// store writes the merged document to outPath in the configured encoding.
// It runs only after the full merge succeeded; partial output never reaches
// the final path.
func (e *Extractor) store(content, outPath string) error {
	data := []byte(content)
	if name := e.encoding; name != "" && !isUTF8(name) {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return fmt.Errorf("%w: unknown text encoding %q", ErrInvalidInput, name)
		}
		data, err = enc.NewEncoder().Bytes(data)
		if err != nil {
			return fmt.Errorf("encode output as %s: %w", name, err)
		}
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func isUTF8(name string) bool {
	switch name {
	case "utf-8", "UTF-8", "utf8":
		return true
	}
	return false
}
