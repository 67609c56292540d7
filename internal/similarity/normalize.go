package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// vendorSuffixes lists business-form words that carry no identity signal for
// a mobile food vendor and are stripped during name normalization.
var vendorSuffixes = []string{
	"food truck", "food trailer", "food cart",
	"mobile kitchen", "street food",
	"llc", "l.l.c.", "inc", "inc.", "incorporated",
	"co", "co.", "corp", "corp.", "ltd", "ltd.",
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	nonNameRuneRe = regexp.MustCompile(`[^a-z0-9\s&'-]`)
	apostrophesRe = regexp.MustCompile("[‘’`´]")
	nonDigitRe    = regexp.MustCompile(`\D`)
)

// foldDiacritics strips combining marks so "Café Olé" and "Cafe Ole" compare
// equal.
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName standardizes a truck name for comparison:
//  1. Lowercase and trim
//  2. Fold Unicode apostrophes and diacritics
//  3. Strip vendor and legal suffixes (food truck, LLC, ...)
//  4. Drop punctuation except &, ', -
//  5. Collapse whitespace
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	name = apostrophesRe.ReplaceAllString(name, "'")
	if folded, _, err := transform.String(foldDiacritics, name); err == nil {
		name = folded
	}

	for changed := true; changed; {
		changed = false
		for _, suffix := range vendorSuffixes {
			// A name that is nothing but a suffix carries no identity.
			if name == suffix {
				return ""
			}
			trimmed := strings.TrimSuffix(name, " "+suffix)
			if trimmed != name {
				name = strings.TrimSpace(trimmed)
				changed = true
			}
		}
	}

	name = nonNameRuneRe.ReplaceAllString(name, " ")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// NormalizePhone reduces a phone number to its digits, dropping a leading US
// country code so "+1 (843) 555-0199" matches "8435550199".
func NormalizePhone(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	return digits
}

// NormalizeWebsite reduces a URL to a comparable host+path form: scheme,
// "www." prefix, and trailing slash are dropped, case is folded.
func NormalizeWebsite(url string) string {
	url = strings.ToLower(strings.TrimSpace(url))
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	return strings.TrimSuffix(url, "/")
}

// WebsiteDomain returns just the host part of a normalized website.
func WebsiteDomain(url string) string {
	url = NormalizeWebsite(url)
	if i := strings.IndexAny(url, "/?#"); i >= 0 {
		url = url[:i]
	}
	return url
}
