// Package textnorm turns free text into the canonical form fed to the encoder.
//
// The pipeline runs in a fixed order, each step on the previous step's output:
// contraction expansion, HTML tag and URL removal, underscores to spaces,
// punctuation deletion, non-alphanumerics to spaces, newlines to spaces,
// whitespace collapse with trim, lower-casing. The output contains only
// lowercase ASCII letters, digits and single interior spaces, and
// Normalize(Normalize(x)) == Normalize(x).
package textnorm

import (
	"regexp"
	"strings"
)

// urlChar is any rune but Unicode whitespace; RE2's \S only excludes ASCII
// spaces, so a URL followed by a no-break space would swallow the next word.
const urlChar = `[^\s\x{0b}\x{1c}-\x{1f}\x{85}\p{Z}]`

var (
	htmlPattern = regexp.MustCompile(`<.*?>`)
	urlPattern  = regexp.MustCompile(`https?://` + urlChar + `+|www\.` + urlChar + `+`)
)

// Punctuation is the deletion set of step 4. It is ASCII punctuation with the
// hyphen left out, so hyphenated terms ("COVID-19", "SARS-CoV-2") split into
// tokens in step 5 instead of fusing.
const Punctuation = "!\"#$%&'()*+,./:;<=>?@[\\]^_`{|}~"

var punctuationDeleter = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(Punctuation))
	for _, r := range Punctuation {
		pairs = append(pairs, string(r), "")
	}
	return strings.NewReplacer(pairs...)
}()

// Normalize returns the canonical encoder input for raw. It never fails;
// input made only of punctuation or symbols yields the empty string.
func Normalize(raw string) string {
	text := ExpandContractions(raw)
	text = htmlPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "_", " ")
	text = punctuationDeleter.Replace(text)
	text = replaceNonAlnum(text)
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// replaceNonAlnum maps every rune outside [A-Za-z0-9] to a single space.
// A multi-byte rune becomes one space, not one per byte.
func replaceNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isASCIIAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
