package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultLegalKeywords are lowercase keyword roots of publisher and legal
// boilerplate. A line containing any of them is discarded.
var DefaultLegalKeywords = []string{
	"copyright", "all rights reserved", "no part of", "reprodu", "redistribu",
	"unauthoriz", "information storage", "retrieval system", "isbn", "issn",
	"library of congress", "publisher", "printed in", "manufactured in",
	"warranty", "disclaimer", "liabil", "responsib", "trademark", "registered",
	"elsevier", "springer", "wiley", "mcgraw", "cengage", "wolters",
	"routledge", "taylor & francis", "oxford university press", "cambridge university press",
}

const (
	DefaultDigitRatio  = 0.60
	DefaultSymbolRatio = 0.70
)

var (
	urlRe  = regexp.MustCompile(`(?i)(https?\s*:\s*\S+|www\s+\S+\.\w+|www\.\S+|doi\s*[:/]\s*\S+)`)
	mailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@\S+\.\w+`)
	// Surname, initial, then a parenthesized year somewhere later on the line.
	refRe = regexp.MustCompile(`[A-Z][a-z]{2,}\s+[A-Z]\w*.*\(\d{4}\)`)
)

// Predicate reports whether a line is noise.
type Predicate struct {
	Name  string
	Match func(line string) bool
}

// Options tune a Classifier. Zero values fall back to the defaults.
type Options struct {
	LegalKeywords []string
	DigitRatio    float64
	SymbolRatio   float64
}

// Classifier decides per line whether the line is discarded.
type Classifier struct {
	predicates []Predicate
	residual   []Predicate
}

// New builds a Classifier from opts.
func New(opts Options) *Classifier {
	keywords := opts.LegalKeywords
	if len(keywords) == 0 {
		keywords = DefaultLegalKeywords
	}
	digit := opts.DigitRatio
	if digit <= 0 {
		digit = DefaultDigitRatio
	}
	symbol := opts.SymbolRatio
	if symbol <= 0 {
		symbol = DefaultSymbolRatio
	}
	legal := Predicate{Name: "legal", Match: LegalMatcher(keywords)}
	url := Predicate{Name: "url", Match: IsURL}
	mail := Predicate{Name: "email", Match: IsEmail}
	return &Classifier{
		predicates: []Predicate{
			legal,
			url,
			mail,
			{Name: "reference", Match: IsReference},
			{Name: "digits", Match: DigitHeavy(digit)},
			{Name: "symbols", Match: SymbolHeavy(symbol)},
		},
		residual: []Predicate{legal, url, mail},
	}
}

// Discard reports whether any predicate matches line.
func (c *Classifier) Discard(line string) bool {
	return match(c.predicates, line) != ""
}

// Reason returns the name of the first matching predicate, or "" when the
// line is kept.
func (c *Classifier) Reason(line string) string {
	return match(c.predicates, line)
}

// Residual reports whether line still carries legal, URL or email content.
// Used by the coarse re-validation of a concatenated group body.
func (c *Classifier) Residual(line string) bool {
	return match(c.residual, line) != ""
}

// Predicates returns the ordered predicate list.
func (c *Classifier) Predicates() []Predicate {
	out := make([]Predicate, len(c.predicates))
	copy(out, c.predicates)
	return out
}

func match(ps []Predicate, line string) string {
	for _, p := range ps {
		if p.Match(line) {
			return p.Name
		}
	}
	return ""
}

// LegalMatcher returns a case-insensitive substring matcher over keywords.
func LegalMatcher(keywords []string) func(string) bool {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			parts = append(parts, regexp.QuoteMeta(k))
		}
	}
	if len(parts) == 0 {
		return func(string) bool { return false }
	}
	re := regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
	return re.MatchString
}

// IsURL matches http(s) schemes (whitespace tolerated around the colon),
// "www" hosts and DOI prefixes.
func IsURL(line string) bool { return urlRe.MatchString(line) }

// IsEmail matches local@domain.tld.
func IsEmail(line string) bool { return mailRe.MatchString(line) }

// IsReference matches bibliography entries such as "Smith J. (2019) Title.".
func IsReference(line string) bool { return refRe.MatchString(line) }

// DigitHeavy matches non-empty lines whose share of digits exceeds ratio.
func DigitHeavy(ratio float64) func(string) bool {
	return func(line string) bool {
		total, digits := 0, 0
		for _, r := range line {
			total++
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if total == 0 {
			return false
		}
		return float64(digits)/float64(total) > ratio
	}
}

// SymbolHeavy matches lines whose share of characters outside [A-Za-z0-9]
// exceeds ratio.
func SymbolHeavy(ratio float64) func(string) bool {
	return func(line string) bool {
		total, other := 0, 0
		for _, r := range line {
			total++
			if !isASCIIAlnum(r) {
				other++
			}
		}
		return float64(other) > ratio*float64(total)
	}
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
