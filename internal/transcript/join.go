// Package transcript normalizes recognized text before it reaches the
// session. Mixed Chinese and English is the common case, so segment
// boundaries only get a space between two non-CJK runes.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Join merges recognizer segments (e.g. whisper.cpp -otxt lines) into one
// string. Whitespace inside a segment is collapsed to single spaces.
func Join(segments []string) string {
	var b strings.Builder
	for _, segment := range segments {
		segment = Normalize(segment)
		if segment == "" {
			continue
		}
		if b.Len() > 0 && needsSpace(b.String(), segment) {
			b.WriteByte(' ')
		}
		b.WriteString(segment)
	}
	return b.String()
}

// Normalize trims text and collapses whitespace runs. A run between two CJK
// runes is dropped entirely.
func Normalize(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fields[0])
	for _, field := range fields[1:] {
		if !bothCJK(b.String(), field) {
			b.WriteByte(' ')
		}
		b.WriteString(field)
	}
	return b.String()
}

// Lines splits recognizer output into segments.
func Lines(output string) []string {
	return strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
}

func needsSpace(left, right string) bool {
	last, _ := utf8.DecodeLastRuneInString(left)
	first, _ := utf8.DecodeRuneInString(right)
	return !isCJK(last) && !isCJK(first)
}

func bothCJK(left, right string) bool {
	last, _ := utf8.DecodeLastRuneInString(left)
	first, _ := utf8.DecodeRuneInString(right)
	return isCJK(last) && isCJK(first)
}

func isCJK(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r),
		unicode.Is(unicode.Hiragana, r),
		unicode.Is(unicode.Katakana, r),
		unicode.Is(unicode.Hangul, r):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // fullwidth forms
		return true
	}
	return false
}
