package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// contractionToken matches word-internal apostrophe forms like "don't" or "y'all've".
var contractionToken = regexp.MustCompile(`[A-Za-z]+(?:['’][A-Za-z]+)+`)

// contractions maps lower-cased contracted forms (straight apostrophe) to expansions.
var contractions = map[string]string{
	"ain't":       "are not",
	"aren't":      "are not",
	"can't":       "cannot",
	"can't've":    "cannot have",
	"could've":    "could have",
	"couldn't":    "could not",
	"didn't":      "did not",
	"doesn't":     "does not",
	"don't":       "do not",
	"hadn't":      "had not",
	"hasn't":      "has not",
	"haven't":     "have not",
	"he'd":        "he would",
	"he'll":       "he will",
	"he's":        "he is",
	"how'd":       "how did",
	"how'll":      "how will",
	"how's":       "how is",
	"i'd":         "i would",
	"i'll":        "i will",
	"i'm":         "i am",
	"i've":        "i have",
	"isn't":       "is not",
	"it'd":        "it would",
	"it'll":       "it will",
	"it's":        "it is",
	"let's":       "let us",
	"ma'am":       "madam",
	"mayn't":      "may not",
	"might've":    "might have",
	"mightn't":    "might not",
	"must've":     "must have",
	"mustn't":     "must not",
	"needn't":     "need not",
	"o'clock":     "of the clock",
	"oughtn't":    "ought not",
	"shan't":      "shall not",
	"she'd":       "she would",
	"she'll":      "she will",
	"she's":       "she is",
	"should've":   "should have",
	"shouldn't":   "should not",
	"that'd":      "that would",
	"that's":      "that is",
	"there'd":     "there would",
	"there's":     "there is",
	"there're":    "there are",
	"they'd":      "they would",
	"they'll":     "they will",
	"they're":     "they are",
	"they've":     "they have",
	"wasn't":      "was not",
	"we'd":        "we would",
	"we'll":       "we will",
	"we're":       "we are",
	"we've":       "we have",
	"weren't":     "were not",
	"what'll":     "what will",
	"what're":     "what are",
	"what's":      "what is",
	"what've":     "what have",
	"when's":      "when is",
	"where'd":     "where did",
	"where's":     "where is",
	"where've":    "where have",
	"who'd":       "who would",
	"who'll":      "who will",
	"who's":       "who is",
	"who've":      "who have",
	"why's":       "why is",
	"won't":       "will not",
	"would've":    "would have",
	"wouldn't":    "would not",
	"wouldn't've": "would not have",
	"y'all":       "you all",
	"you'd":       "you would",
	"you'll":      "you will",
	"you're":      "you are",
	"you've":      "you have",
}

// ExpandContractions replaces known contractions with their expansions.
// Unknown apostrophe forms (possessives, names) pass through unchanged.
// The case of the first letter, or of the whole token, is carried over.
func ExpandContractions(text string) string {
	if !strings.ContainsAny(text, "'’") {
		return text
	}
	return contractionToken.ReplaceAllStringFunc(text, func(tok string) string {
		key := strings.ToLower(strings.ReplaceAll(tok, "’", "'"))
		exp, ok := contractions[key]
		if !ok {
			return tok
		}
		return matchCase(tok, exp)
	})
}

func matchCase(src, exp string) string {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, src)
	if len(letters) > 1 && strings.ToUpper(letters) == letters {
		return strings.ToUpper(exp)
	}
	first, _ := utf8.DecodeRuneInString(src)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(exp)
		return string(unicode.ToUpper(r)) + exp[size:]
	}
	return exp
}
