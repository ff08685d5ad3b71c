package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberedLines(t *testing.T) {
	content := "1. 你好。\n2. 再見。\n3. 好的。"

	out, err := parseNumberedLines(content, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"你好。", "再見。", "好的。"}, out)
}

func TestParseNumberedLinesAlternateSeparators(t *testing.T) {
	content := "1) first\n2: second\n3） third"

	out, err := parseNumberedLines(content, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, out)
}

func TestParseNumberedLinesContinuation(t *testing.T) {
	content := "1. a sentence that\nwraps onto a second line\n2. short"

	out, err := parseNumberedLines(content, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a sentence that wraps onto a second line", "short"}, out)
}

func TestParseNumberedLinesMissingEntry(t *testing.T) {
	_, err := parseNumberedLines("1. only one", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing line 2")
}

func TestParseNumberedLinesOutOfRangeIgnored(t *testing.T) {
	_, err := parseNumberedLines("1. ok\n9. stray", 2)
	require.Error(t, err)
}
