package extract

import "strings"

// DefaultPageSeparator is the token inserted between merged pages.
const DefaultPageSeparator = "<END_PAGE>"

// Merge joins per-page contents in order, with the separator token padded by
// a blank line on each side. It is pure and deterministic: empty pages are
// kept verbatim and the sequence is never reordered.
func Merge(pages []string, sep string) string {
	return strings.Join(pages, "\n\n"+sep+"\n\n")
}
