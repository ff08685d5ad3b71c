package glossary

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/textnorm"
)

// Rule is a single ordered replacement, applied whitespace-insensitively
// and case-insensitively to transcript text.
type Rule struct {
	Source string
	Target string
}

// Rules is an ordered list of replacement rules. Order is significant:
// earlier rules run first and later rules operate on already substituted
// text within the same pass.
type Rules []Rule

// Load reads a glossary file with one `source=target` rule per line.
// Lines starting with # and lines without = are skipped. A missing file is
// not an error and yields an empty rule set.
func Load(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open glossary: %w", err)
	}
	defer file.Close()

	var rules Rules
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		src, tgt, found := strings.Cut(line, "=")
		if !found {
			log.Debug().Str("path", path).Int("line", lineNo).Msg("skipping glossary line without separator")
			continue
		}

		src = strings.TrimSpace(src)
		tgt = strings.TrimSpace(tgt)
		if src == "" {
			continue
		}
		rules = append(rules, Rule{Source: src, Target: tgt})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}

	return rules, nil
}

// Apply runs every rule in listed order, each pass operating on the output
// of the previous one.
func (r Rules) Apply(text string) string {
	for _, rule := range r {
		text = textnorm.WhitespaceInsensitiveReplace(text, rule.Source, rule.Target)
	}
	return text
}
