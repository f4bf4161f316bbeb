package ioc

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	CategoryIPv4   = "ipv4"
	CategoryDomain = "domain"
	CategoryMD5    = "md5"
	CategorySHA1   = "sha1"
	CategorySHA256 = "sha256"
	CategoryEmail  = "email"
	CategoryURL    = "url"
)

// Indicators maps a category name to its distinct matched values.
// Values are kept sorted so two extractions of the same text compare equal.
type Indicators map[string][]string

// Count returns the number of indicators across all categories.
func (i Indicators) Count() int {
	total := 0
	for _, values := range i {
		total += len(values)
	}
	return total
}

// Categories returns the category names present, sorted.
func (i Indicators) Categories() []string {
	return slices.Sorted(maps.Keys(i))
}

type Pattern struct {
	Category string
	Regex    *regexp.Regexp
}

// The octet range is not checked: 999.999.999.999 is accepted on purpose.
var defaultPatterns = []Pattern{
	{CategoryIPv4, regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)},
	{CategoryDomain, regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)},
	{CategoryMD5, regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)},
	{CategorySHA1, regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)},
	{CategorySHA256, regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{CategoryURL, regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)},
}

var benignDomains = []string{
	"microsoft.com",
	"google.com",
	"apple.com",
	"amazon.com",
}

type Extractor struct {
	patterns      []Pattern
	benignDomains []string
}

func NewExtractor() *Extractor {
	return &Extractor{
		patterns:      defaultPatterns,
		benignDomains: benignDomains,
	}
}

// Categories lists the configured category names in evaluation order.
func (e *Extractor) Categories() []string {
	categories := make([]string, 0, len(e.patterns))
	for _, p := range e.patterns {
		categories = append(categories, p.Category)
	}
	return categories
}

// Run scans text with every pattern independently. Categories without
// matches are left out of the result; empty text yields an empty mapping.
func (e *Extractor) Run(text string) Indicators {
	indicators := make(Indicators)
	if text == "" {
		return indicators
	}

	for _, p := range e.patterns {
		matches := findBounded(p.Regex, text)
		if p.Category == CategoryDomain {
			matches = slices.DeleteFunc(matches, e.isBenignDomain)
		}

		if values := distinct(matches); len(values) > 0 {
			indicators[p.Category] = values
		}
	}

	return indicators
}

// findBounded returns the matches of re in text. RE2's \b only knows ASCII
// word characters, so a match whose pattern is anchored with \b and that
// touches a non-ASCII letter or digit (as in "é5d41...") is dropped. Dropped
// matches are not retried at a later offset.
func findBounded(re *regexp.Regexp, text string) []string {
	expr := re.String()
	leading := strings.HasPrefix(expr, `\b`)
	trailing := strings.HasSuffix(expr, `\b`)

	var matches []string
	for _, loc := range re.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if leading && start > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:start]); isUnicodeWord(r) {
				continue
			}
		}
		if trailing && end < len(text) {
			if r, _ := utf8.DecodeRuneInString(text[end:]); isUnicodeWord(r) {
				continue
			}
		}
		matches = append(matches, text[start:end])
	}
	return matches
}

func isUnicodeWord(r rune) bool {
	return r >= utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsNumber(r))
}

func (e *Extractor) isBenignDomain(match string) bool {
	lower := strings.ToLower(match)
	for _, benign := range e.benignDomains {
		if strings.Contains(lower, benign) {
			return true
		}
	}
	return false
}

func distinct(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	values := slices.Clone(matches)
	slices.Sort(values)
	return slices.Compact(values)
}
