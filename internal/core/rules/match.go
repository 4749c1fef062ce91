package rules

import (
	"strings"
	"unicode/utf8"
)

// Normalize lower-cases text for keyword matching.
func Normalize(text string) string {
	return strings.ToLower(text)
}

// MatchKeywords returns every keyword found in text, in table order.
// text must already be normalized. ASCII keywords only match on word
// boundaries so "ai" does not fire inside "said"; CJK keywords match as substrings.
func MatchKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if Contains(text, Normalize(kw)) {
			out = append(out, kw)
		}
	}
	return out
}

// ContainsAny reports whether text contains at least one keyword.
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if Contains(text, Normalize(kw)) {
			return true
		}
	}
	return false
}

// Contains matches one normalized keyword against normalized text.
func Contains(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	if !isASCIIWord(keyword) {
		return strings.Contains(text, keyword)
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(keyword)
		if asciiBoundaryBefore(text, start) && asciiBoundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isASCIIAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func asciiBoundaryBefore(text string, i int) bool {
	return i == 0 || !isASCIIAlnum(text[i-1])
}

func asciiBoundaryAfter(text string, i int) bool {
	return i >= len(text) || !isASCIIAlnum(text[i])
}
