// Package text counts and truncates strings in grapheme clusters, the
// user-perceived character unit, rather than bytes or runes.
package text

import "github.com/rivo/uniseg"

// GraphemeLen returns the number of grapheme clusters in s.
func GraphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TruncateGraphemes returns the first max grapheme clusters of s. A
// non-positive max yields the empty string.
func TruncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	end := 0
	count := 0
	for g.Next() {
		count++
		_, end = g.Positions()
		if count == max {
			break
		}
	}
	if count < max {
		return s
	}
	return s[:end]
}
