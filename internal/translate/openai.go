package translate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is the chat model used for translation when none is
// configured.
const DefaultModel = "gpt-4o-mini"

// Config describes the translation endpoint. BaseURL may point at any
// OpenAI-compatible server, which keeps fully local deployments possible.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAITranslator translates sentence batches through a chat-completion
// endpoint using a numbered-line protocol.
type OpenAITranslator struct {
	client openai.Client
	model  string
}

// NewOpenAITranslator builds a translator from the endpoint config.
func NewOpenAITranslator(cfg Config) *OpenAITranslator {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &OpenAITranslator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// TranslateBatch sends the sentences as numbered lines and parses the
// numbered response back into per-sentence translations. A response that
// does not cover every sentence is an error for the whole batch.
func (t *OpenAITranslator) TranslateBatch(ctx context.Context, sentences []string, targetLang string) ([]string, error) {
	if len(sentences) == 0 {
		return nil, nil
	}

	var input strings.Builder
	for i, s := range sentences {
		fmt.Fprintf(&input, "%d. %s\n", i+1, strings.TrimSpace(s))
	}

	system := fmt.Sprintf(
		"You are a translation engine. Translate each numbered line into %s. "+
			"Reply with the same numbered lines and nothing else. "+
			"Keep numbers aligned with the input and do not merge or split lines.",
		targetLang,
	)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(input.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("translate batch: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translate batch: empty response")
	}

	out, err := parseNumberedLines(resp.Choices[0].Message.Content, len(sentences))
	if err != nil {
		return nil, err
	}
	return out, nil
}

var numberedLine = regexp.MustCompile(`^\s*(\d+)\s*[.)）:：]\s*(.*)$`)

// parseNumberedLines maps a numbered-line response back to count ordered
// translations. Continuation lines without a number attach to the previous
// entry.
func parseNumberedLines(content string, count int) ([]string, error) {
	out := make([]string, count)
	seen := make([]bool, count)
	last := -1

	for _, line := range strings.Split(content, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err == nil && idx >= 1 && idx <= count {
				out[idx-1] = strings.TrimSpace(m[2])
				seen[idx-1] = true
				last = idx - 1
				continue
			}
		}
		if last >= 0 && strings.TrimSpace(line) != "" {
			out[last] = strings.TrimSpace(out[last] + " " + strings.TrimSpace(line))
		}
	}

	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("translate batch: response missing line %d of %d", i+1, count)
		}
	}
	return out, nil
}
