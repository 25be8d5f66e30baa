package services

import (
	"math"
	"strings"
)

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into a single hyphen, with no leading or trailing hyphen.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

const wordsPerMinute = 220

// ReadingTime estimates minutes to read text, never less than one.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	return max(1, int(math.Round(float64(words)/wordsPerMinute)))
}

// Excerpt returns the first n runes of s.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
