package text

import (
	"strings"
)

// PorterStemmer implements the Porter stemming algorithm.
type PorterStemmer struct{}

// NewPorterStemmer creates a new Porter stemmer.
func NewPorterStemmer() *PorterStemmer {
	return &PorterStemmer{}
}

// Stem returns the stem of a word. Words shorter than three letters
// are returned unchanged.
func (p *PorterStemmer) Stem(word string) string {
	if len(word) < 3 {
		return word
	}

	word = strings.ToLower(word)
	word = step1a(word)
	word = step1b(word)
	word = step1c(word)
	word = applyRules(word, step2Rules)
	word = applyRules(word, step3Rules)
	word = step4(word)
	word = step5a(word)
	word = step5b(word)

	return word
}

type suffixRule struct {
	suffix  string
	replace string
}

// Rule tables are ordered so a suffix is always tried before any of
// its own endings ("ational" before "tional", "ization" before
// "ation"). Within a step only the first match applies.
var step2Rules = []suffixRule{
	{"ational", "ate"}, {"tional", "tion"},
	{"ization", "ize"}, {"iveness", "ive"},
	{"fulness", "ful"}, {"ousness", "ous"},
	{"biliti", "ble"}, {"entli", "ent"},
	{"ousli", "ous"}, {"alism", "al"},
	{"aliti", "al"}, {"iviti", "ive"},
	{"ation", "ate"}, {"enci", "ence"},
	{"anci", "ance"}, {"izer", "ize"},
	{"abli", "able"}, {"alli", "al"},
	{"ator", "ate"}, {"eli", "e"},
}

var step3Rules = []suffixRule{
	{"icate", "ic"}, {"ative", ""},
	{"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ness", ""},
	{"ful", ""},
}

var step4Suffixes = []string{
	"ement", "ance", "ence", "able", "ible", "ment",
	"ant", "ent", "ion", "ism", "ate", "iti", "ous",
	"ive", "ize", "al", "er", "ic", "ou",
}

// applyRules strips the first matching suffix when the remaining stem
// has at least one vowel-consonant sequence.
func applyRules(word string, rules []suffixRule) string {
	for _, r := range rules {
		if strings.HasSuffix(word, r.suffix) {
			stem := word[:len(word)-len(r.suffix)]
			if measure(stem) > 0 {
				return stem + r.replace
			}
			return word
		}
	}
	return word
}

func isConsonant(word string, i int) bool {
	switch word[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		if i == 0 {
			return true
		}
		return !isConsonant(word, i-1)
	}
	return true
}

// measure counts vowel-consonant sequences, the m of the Porter paper.
func measure(word string) int {
	n := len(word)
	m := 0
	i := 0

	for i < n && isConsonant(word, i) {
		i++
	}

	for i < n {
		for i < n && !isConsonant(word, i) {
			i++
		}
		if i >= n {
			break
		}
		m++
		for i < n && isConsonant(word, i) {
			i++
		}
	}

	return m
}

func hasVowel(word string) bool {
	for i := 0; i < len(word); i++ {
		if !isConsonant(word, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(word string) bool {
	n := len(word)
	if n < 2 {
		return false
	}
	return word[n-1] == word[n-2] && isConsonant(word, n-1)
}

// endsCVC reports a trailing consonant-vowel-consonant pattern where
// the final consonant is not w, x or y.
func endsCVC(word string) bool {
	n := len(word)
	if n < 3 {
		return false
	}
	if !isConsonant(word, n-3) || isConsonant(word, n-2) || !isConsonant(word, n-1) {
		return false
	}
	c := word[n-1]
	return c != 'w' && c != 'x' && c != 'y'
}

func step1a(word string) string {
	switch {
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

func step1b(word string) string {
	if strings.HasSuffix(word, "eed") {
		if measure(word[:len(word)-3]) > 0 {
			return word[:len(word)-1]
		}
		return word
	}

	modified := false
	if strings.HasSuffix(word, "ed") {
		if stem := word[:len(word)-2]; hasVowel(stem) {
			word = stem
			modified = true
		}
	} else if strings.HasSuffix(word, "ing") {
		if stem := word[:len(word)-3]; hasVowel(stem) {
			word = stem
			modified = true
		}
	}

	if modified {
		if strings.HasSuffix(word, "at") || strings.HasSuffix(word, "bl") || strings.HasSuffix(word, "iz") {
			return word + "e"
		}
		if endsDoubleConsonant(word) {
			if c := word[len(word)-1]; c != 'l' && c != 's' && c != 'z' {
				return word[:len(word)-1]
			}
		}
		if measure(word) == 1 && endsCVC(word) {
			return word + "e"
		}
	}

	return word
}

func step1c(word string) string {
	if strings.HasSuffix(word, "y") {
		if stem := word[:len(word)-1]; hasVowel(stem) {
			return stem + "i"
		}
	}
	return word
}

func step4(word string) string {
	for _, suffix := range step4Suffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		stem := word[:len(word)-len(suffix)]
		if measure(stem) <= 1 {
			return word
		}
		if suffix == "ion" {
			if n := len(stem); n == 0 || (stem[n-1] != 's' && stem[n-1] != 't') {
				return word
			}
		}
		return stem
	}
	return word
}

func step5a(word string) string {
	if strings.HasSuffix(word, "e") {
		stem := word[:len(word)-1]
		if m := measure(stem); m > 1 || (m == 1 && !endsCVC(stem)) {
			return stem
		}
	}
	return word
}

func step5b(word string) string {
	if measure(word) > 1 && endsDoubleConsonant(word) && word[len(word)-1] == 'l' {
		return word[:len(word)-1]
	}
	return word
}
