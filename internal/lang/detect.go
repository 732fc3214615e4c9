// Package lang picks the reply language for a chat message so the relay can attach
// a matching system prompt.
package lang

import (
	"strings"
	"unicode"
)

const (
	Auto    = "auto"
	English = "en"
	Hindi   = "hi"
	Nepali  = "ne"
	// Sikkimese (Bhutia) is written in Tibetan script.
	Sikkimese = "si"
	Lepcha    = "lep"
)

// Words that are common in Nepali but rare in Hindi.
var nepaliMarkers = []string{"छ", "छन्", "भयो", "उहाँ", "तपाईं"}

// Resolve returns requested when it names a language, otherwise detects one from text.
func Resolve(requested, text string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && requested != Auto {
		return requested
	}
	return Detect(text)
}

// Detect classifies text by the first matching script: Devanagari, then Tibetan, then Lepcha.
func Detect(text string) string {
	switch {
	case containsScript(text, unicode.Devanagari):
		for _, marker := range nepaliMarkers {
			if strings.Contains(text, marker) {
				return Nepali
			}
		}
		return Hindi
	case containsScript(text, unicode.Tibetan):
		return Sikkimese
	case containsScript(text, unicode.Lepcha):
		return Lepcha
	default:
		return English
	}
}

func containsScript(text string, table *unicode.RangeTable) bool {
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}
