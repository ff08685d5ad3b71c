package textnorm

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// whitespaceClass matches runs of ASCII whitespace or the full-width
// ideographic space (U+3000) that transcription and translation output
// tends to scatter between characters.
const whitespaceClass = `[\s\x{3000}]*`

// FormatTimestamp renders seconds as a SubRip timestamp, HH:MM:SS,mmm with
// a comma millisecond separator. Hours are zero-padded to two digits and
// grow beyond that only when the input requires it.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}

	totalMillis := int64(math.Floor(seconds * 1000))
	hours := totalMillis / 3_600_000
	totalMillis %= 3_600_000
	minutes := totalMillis / 60_000
	totalMillis %= 60_000
	secs := totalMillis / 1000
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// WhitespaceInsensitiveReplace replaces every occurrence of source in text
// with target. Matching is case-insensitive and tolerates arbitrary runs of
// ASCII or full-width whitespace between the non-whitespace characters of
// source; the replacement is inserted verbatim.
func WhitespaceInsensitiveReplace(text, source, target string) string {
	var pattern strings.Builder
	pattern.WriteString("(?i)")

	wrote := false
	for _, r := range source {
		if unicode.IsSpace(r) {
			continue
		}
		if wrote {
			pattern.WriteString(whitespaceClass)
		}
		pattern.WriteString(regexp.QuoteMeta(string(r)))
		wrote = true
	}
	if !wrote {
		return text
	}

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return text
	}
	return re.ReplaceAllLiteralString(text, target)
}

// CollapseCJKWhitespace removes whitespace runs that sit strictly between
// two CJK characters. Machine translation inserts these as word separators
// even though CJK text carries none; whitespace elsewhere is untouched.
func CollapseCJKWhitespace(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if !(i > 0 && j < len(runes) && isCJK(runes[i-1]) && isCJK(runes[j])) {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}

	return b.String()
}

// SplitSentences splits text on sentence-terminal punctuation. ASCII
// terminators (. ! ?) split only when followed by whitespace or the end of
// input so decimals and abbreviations stay intact; CJK terminators
// (。 ！ ？) always split. Terminators stay attached to their sentence,
// surrounding whitespace is trimmed, and empty pieces are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	sentences := make([]string, 0, 8)
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range runes {
		current.WriteRune(r)
		switch r {
		case '。', '！', '？':
			flush()
		case '.', '!', '?':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
