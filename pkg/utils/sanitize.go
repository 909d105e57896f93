package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// SanitizeString trims input and drops HTML tags and control characters.
func SanitizeString(input string) string {
	return removeControlChars(stripHTML(strings.TrimSpace(input)), false)
}

// SanitizeText sanitizes free-form multi-line text such as stop notes or
// skip reasons. Newlines and tabs survive.
func SanitizeText(input string) string {
	return removeControlChars(stripHTML(strings.TrimSpace(input)), true)
}

// SanitizeTextPtr applies SanitizeText to an optional value.
func SanitizeTextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	out := SanitizeText(*input)
	return &out
}

// stripHTML removes HTML tags from string
func stripHTML(input string) string {
	return htmlTag.ReplaceAllString(input, "")
}

func removeControlChars(input string, keepLayout bool) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || (keepLayout && (r == '\n' || r == '\t' || r == '\r')) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
