// Package clean turns the raw text of one extracted document into sanitized
// plain text: transliterated to ASCII, noise lines removed, restricted to a
// fixed character set and whitespace-normalized.
package clean

import (
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/corpusclean/internal/classify"
	"github.com/hyperifyio/corpusclean/internal/headers"
)

// DefaultAllowedPunct is the punctuation kept besides ASCII letters, digits,
// space and newline.
const DefaultAllowedPunct = `.,;:!?-()[]'"`

var (
	multiSpace   = regexp.MustCompile(` {2,}`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

// Options configure a Cleaner.
type Options struct {
	// AllowedPunct replaces DefaultAllowedPunct when non-empty.
	AllowedPunct string
	// HeaderThreshold is passed to headers.Strip by Document.
	HeaderThreshold float64
	Classifier      classify.Options
}

// Cleaner is a pure function of its input and options, so Clean is safe to
// call repeatedly and yields the same text on a second pass.
type Cleaner struct {
	cls       *classify.Classifier
	allowed   [128]bool
	headerThr float64
}

// New builds a Cleaner.
func New(opts Options) *Cleaner {
	c := &Cleaner{
		cls:       classify.New(opts.Classifier),
		headerThr: opts.HeaderThreshold,
	}
	if c.headerThr <= 0 {
		c.headerThr = headers.DefaultThreshold
	}
	punct := opts.AllowedPunct
	if punct == "" {
		punct = DefaultAllowedPunct
	}
	for r := 'a'; r <= 'z'; r++ {
		c.allowed[r] = true
		c.allowed[r-'a'+'A'] = true
	}
	for r := '0'; r <= '9'; r++ {
		c.allowed[r] = true
	}
	for _, r := range punct {
		if r < 128 {
			c.allowed[r] = true
		}
	}
	c.allowed[' '] = true
	c.allowed['\n'] = true
	return c
}

// Classifier returns the line classifier used by this Cleaner.
func (c *Cleaner) Classifier() *classify.Classifier { return c.cls }

// Allowed reports whether r may appear in cleaned text.
func (c *Cleaner) Allowed(r rune) bool {
	return r >= 0 && r < 128 && c.allowed[r]
}

// Transliterate folds compatibility forms (ligatures, full-width letters)
// and maps every remaining non-ASCII character to its closest ASCII
// spelling. Lossy for non-Latin scripts.
func Transliterate(s string) string {
	return unidecode.Unidecode(norm.NFKC.String(s))
}

// Clean sanitizes raw document text.
//
// Each line is classified twice: once as transliterated, so that e-mail
// addresses and URLs are caught before their '@' and '/' are replaced, and
// once after restriction to the allowed set, so that a second Clean pass
// sees only lines that already passed.
func (c *Cleaner) Clean(raw string) string {
	text := Transliterate(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if c.cls.Discard(ln) {
			continue
		}
		ln = strings.Trim(multiSpace.ReplaceAllString(c.restrict(ln), " "), " ")
		if c.cls.Discard(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	out := strings.Join(kept, "\n")
	out = multiSpace.ReplaceAllString(out, " ")
	out = manyNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Document strips repeated headers and footers from pages, joins them with
// newlines and cleans the result.
func (c *Cleaner) Document(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	return c.Clean(strings.Join(headers.Strip(pages, c.headerThr), "\n"))
}

// restrict replaces every character outside the allowed set with a space.
func (c *Cleaner) restrict(s string) string {
	return strings.Map(func(r rune) rune {
		if c.Allowed(r) {
			return r
		}
		return ' '
	}, s)
}
