package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "00:00:00,000"},
		{"mixed", 3661.5, "01:01:01,500"},
		{"millis only", 0.042, "00:00:00,042"},
		{"just under a minute", 59.999, "00:00:59,999"},
		{"negative clamps to zero", -3, "00:00:00,000"},
		{"hours beyond two digits", 360000, "100:00:00,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.seconds))
		})
	}
}

func TestWhitespaceInsensitiveReplace(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		source string
		target string
		want   string
	}{
		{"exact match", "hello world", "hello", "hi", "hi world"},
		{"case insensitive", "Hello World", "hello world", "greeting", "greeting"},
		{"extra spaces inside match", "say FOO   BAR now", "foo bar", "baz", "say baz now"},
		{"full-width space inside match", "say FOO　BAR now", "foo bar", "baz", "say baz now"},
		{"no space in text", "FOOBAR", "foo bar", "baz", "baz"},
		{"target verbatim no case adaptation", "FOO", "foo", "Baz", "Baz"},
		{"no match", "nothing here", "foo", "bar", "nothing here"},
		{"empty source", "text", "   ", "bar", "text"},
		{"regex metacharacters literal", "a+b", "a+b", "sum", "sum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WhitespaceInsensitiveReplace(tt.text, tt.source, tt.target))
		})
	}
}

// Applying the same rule again after a pass with no remaining matches must
// not change the text further.
func TestWhitespaceInsensitiveReplaceIdempotent(t *testing.T) {
	text := "FOO   BAR and foo bar"
	once := WhitespaceInsensitiveReplace(text, "foo bar", "baz")
	twice := WhitespaceInsensitiveReplace(once, "foo bar", "baz")
	assert.Equal(t, "baz and baz", once)
	assert.Equal(t, once, twice)
}

func TestCollapseCJKWhitespace(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"space between han", "你 好", "你好"},
		{"run of spaces between han", "你  \t 好", "你好"},
		{"full-width space between han", "你　好", "你好"},
		{"latin spacing kept", "hello world", "hello world"},
		{"mixed boundary kept", "word 你好", "word 你好"},
		{"trailing space kept", "你好 ", "你好 "},
		{"leading space kept", " 你好", " 你好"},
		{"kana", "こん にちは", "こんにちは"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollapseCJKWhitespace(tt.text))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"ascii terminators", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"cjk terminators without spaces", "你好。再見！好嗎？", []string{"你好。", "再見！", "好嗎？"}},
		{"decimal point not split", "It costs 3.5 dollars today.", []string{"It costs 3.5 dollars today."}},
		{"trailing text without terminator", "First. second half", []string{"First.", "second half"}},
		{"empty", "", nil},
		{"whitespace only", "  \n ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
