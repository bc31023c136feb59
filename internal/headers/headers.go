// Package headers removes running headers and footers from the pages of a
// single document.
package headers

import "strings"

// DefaultThreshold is the share of pages on which a first/last line must
// repeat to count as a header or footer.
const DefaultThreshold = 0.70

// Strip counts the trimmed first and last line of every page and removes,
// from every page, each full line whose trimmed text occurs on at least
// threshold*len(pages) of those positions. A one-line page contributes its
// line twice. The result has the same number of pages as the input.
func Strip(pages []string, threshold float64) []string {
	if len(pages) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	split := make([][]string, len(pages))
	counts := make(map[string]int)
	for i, p := range pages {
		lines := SplitLines(p)
		split[i] = lines
		if len(lines) == 0 {
			continue
		}
		counts[strings.TrimSpace(lines[0])]++
		counts[strings.TrimSpace(lines[len(lines)-1])]++
	}
	limit := threshold * float64(len(pages))
	repeated := make(map[string]struct{})
	for text, n := range counts {
		if float64(n) >= limit {
			repeated[text] = struct{}{}
		}
	}
	out := make([]string, len(pages))
	for i, lines := range split {
		kept := make([]string, 0, len(lines))
		for _, ln := range lines {
			if _, drop := repeated[strings.TrimSpace(ln)]; drop {
				continue
			}
			kept = append(kept, ln)
		}
		out[i] = strings.Join(kept, "\n")
	}
	return out
}

// SplitLines splits s on LF, CRLF and CR. A trailing line terminator does
// not produce an empty final line, and "" has no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
