package normalizer

import (
	"regexp"
	"strings"
)

var (
	honorificPattern = regexp.MustCompile(`(?i)^(bapak|bpk|bp|ibu|ib|sdr|sdri|saudara|saudari|tn|ny|nn|h|hj)\.?\s+`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// CleanName prepares a free-text member name for lookup: honorifics such as
// "Bpk." or "Ibu" are dropped and whitespace is collapsed.
func CleanName(raw string) string {
	result := spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	for {
		stripped := honorificPattern.ReplaceAllString(result, "")
		if stripped == result || stripped == "" {
			break
		}
		result = stripped
	}
	return result
}

// CleanLabel normalizes an account or loan label for substring matching.
func CleanLabel(raw string) string {
	return strings.ToLower(spacePattern.ReplaceAllString(strings.TrimSpace(raw), " "))
}

// TitleCase converts a string to title case.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
