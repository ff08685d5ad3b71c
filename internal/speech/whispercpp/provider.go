//go:build cgo

package whispercpp

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/speech"
)

// Provider opens whisper.cpp recognizers by model name, fetching ggml
// model files into the local cache on first use.
type Provider struct {
	downloader *speech.Downloader
}

// NewProvider creates a Provider caching models under modelsDir.
func NewProvider(modelsDir string) *Provider {
	return &Provider{downloader: speech.NewDownloader(modelsDir)}
}

// Open ensures the named model is available locally and loads it.
func (p *Provider) Open(ctx context.Context, model string, opts speech.Options) (speech.Recognizer, error) {
	res, err := p.downloader.EnsureModel(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("ensure model %q: %w", model, err)
	}
	if !res.Existed {
		log.Info().Str("model", model).Str("path", res.Path).Msg("whisper model fetched")
	}

	return New(Config{ModelPath: res.Path, DefaultOptions: opts})
}
