// Package raster renders PDF pages to one image file per page, named
// {prefix}-{zero-padded page index}.{format} so the embedded index defines
// the page order.
package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

type artifact struct {
	page int
	path string
}

// DiscoverArtifacts lists the page images a rasterizer produced in dir and
// returns their paths ordered by the page index embedded in the filename.
// Directory listing order is never trusted: poppler pads indices by the
// total page count, so lexicographic order can differ across runs.
func DiscoverArtifacts(dir, prefix, format string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	ordered, err := sortByPageIndex(names, prefix, format)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(ordered))
	for i, a := range ordered {
		paths[i] = filepath.Join(dir, a.path)
	}
	return paths, nil
}

func sortByPageIndex(names []string, prefix, format string) ([]artifact, error) {
	re, err := artifactPattern(prefix, format)
	if err != nil {
		return nil, err
	}
	arts := make([]artifact, 0, len(names))
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("artifact %q: bad page index: %w", name, err)
		}
		arts = append(arts, artifact{page: n, path: name})
	}
	sort.Slice(arts, func(i, j int) bool { return arts[i].page < arts[j].page })
	return arts, nil
}

func artifactPattern(prefix, format string) (*regexp.Regexp, error) {
	return regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)\.` + regexp.QuoteMeta(format) + `$`)
}

// padWidth is the number of digits poppler uses for page indices: the width
// of the last page number.
func padWidth(lastPage int) int {
	return len(strconv.Itoa(lastPage))
}
