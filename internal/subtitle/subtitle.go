package subtitle

import (
	"sort"
	"strconv"
	"strings"

	"github.com/elbartohub/myWhisper/internal/textnorm"
)

// Segment is a timed span of transcript text, in seconds from the start of
// the source file.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Render emits segments in input order as SubRip subtitles: a 1-based
// sequence number, a `start --> end` timestamp line, the trimmed text, and
// a blank separator line per entry. Callers are responsible for sorting
// segments into display order first.
func Render(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(textnorm.FormatTimestamp(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(textnorm.FormatTimestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// SortByStart orders segments by ascending start time, keeping the
// original relative order of segments that share a start.
func SortByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}
