package engine

import "unicode/utf8"

// ByteOffset converts a code point index into a byte offset of text. Indexes
// past the end clamp to len(text); negative indexes clamp to 0.
func ByteOffset(text string, runes int) int {
	if runes <= 0 {
		return 0
	}
	n := 0
	for i := range text {
		if n == runes {
			return i
		}
		n++
	}
	return len(text)
}

// RuneOffset converts a byte offset of text into a code point index.
func RuneOffset(text string, bytes int) int {
	if bytes <= 0 {
		return 0
	}
	if bytes > len(text) {
		bytes = len(text)
	}
	return utf8.RuneCountInString(text[:bytes])
}
