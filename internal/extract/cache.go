package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStem strips every extension from a file name: "report.v2.pdf" yields
// "report". The name is cut at the first dot past the first character, so a
// leading dot stays part of the stem (".hidden.pdf" yields ".hidden").
func FileStem(path string) string {
	base := filepath.Base(path)
	if len(base) > 1 {
		if i := strings.IndexByte(base[1:], '.'); i >= 0 {
			return base[:i+1]
		}
	}
	return base
}

// createCacheDir creates the per-invocation image cache directory under the
// cache root, named after the input's stem plus a unique run suffix. The
// suffix keeps concurrent extractions of same-named documents from sharing
// a folder.
func (e *Extractor) createCacheDir(pdfPath string) (string, error) {
	dir, err := os.MkdirTemp(e.cacheRoot, FileStem(pdfPath)+"-")
	if err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	return dir, nil
}

// removeCacheDir deletes the cache directory unless preservation was
// requested. Cleanup failure must not hide a successful extraction, so it
// is logged and swallowed.
func (e *Extractor) removeCacheDir(dir string) {
	if e.preserveCache {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("cache cleanup failed", "dir", dir, "error", err)
	}
}
