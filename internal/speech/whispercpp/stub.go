//go:build !cgo

package whispercpp

import (
	"context"
	"fmt"

	"github.com/elbartohub/myWhisper/internal/speech"
)

// Provider is a no-op stub when built without CGO; Open always fails so
// callers can surface a clear configuration error.
type Provider struct{}

// NewProvider returns the stub provider.
func NewProvider(modelsDir string) *Provider {
	return &Provider{}
}

// Open reports that the whisper.cpp backend is unavailable.
func (p *Provider) Open(ctx context.Context, model string, opts speech.Options) (speech.Recognizer, error) {
	return nil, fmt.Errorf("whisper.cpp backend unavailable: built without cgo")
}
