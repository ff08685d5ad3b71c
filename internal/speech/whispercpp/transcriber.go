//go:build cgo

package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/speech"
)

// Config describes how to initialise the whisper.cpp backend.
type Config struct {
	ModelPath      string
	DefaultOptions speech.Options
}

// Transcriber wraps a whisper.cpp model instance.
type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	cfg   Config
}

// New instantiates a whisper.cpp backed transcriber.
func New(cfg Config) (*Transcriber, error) {
	path := strings.TrimSpace(cfg.ModelPath)
	if path == "" {
		return nil, errors.New("whisper model path is required")
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}

	if cfg.DefaultOptions.UseCPU {
		// The compute backend is chosen when whisper.cpp is built; the
		// flag only steers thread selection here.
		log.Debug().Str("model", path).Msg("cpu-only requested, relying on build-time backend selection")
	}

	return &Transcriber{model: model, cfg: cfg}, nil
}

// Close releases the underlying model resources.
func (t *Transcriber) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		_ = t.model.Close()
		t.model = nil
	}
}

// TranscribePCM transcribes mono PCM samples, resampling to the model's
// native rate when needed.
func (t *Transcriber) TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts speech.Options) (*speech.Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty audio samples")
	}

	processed := resampleFloat32(samples, sampleRate, int(whisper.SampleRate))
	return t.process(ctx, processed, opts)
}

func (t *Transcriber) process(ctx context.Context, samples []float32, override speech.Options) (*speech.Result, error) {
	t.mu.Lock()
	model := t.model
	cfg := t.cfg
	t.mu.Unlock()
	if model == nil {
		return nil, errors.New("transcriber closed")
	}

	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	effective := mergeOptions(cfg.DefaultOptions, override)

	threads := effective.Threads
	if !effective.ThreadsSet || threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	languageOpt := "auto"
	if effective.LanguageSet && strings.TrimSpace(effective.Language) != "" {
		languageOpt = strings.TrimSpace(effective.Language)
	}
	if err := wctx.SetLanguage(languageOpt); err != nil {
		return nil, err
	}

	var encoderCb whisper.EncoderBeginCallback
	if ctx != nil {
		encoderCb = func() bool {
			return ctx.Err() == nil
		}
	}

	if err := wctx.Process(samples, encoderCb, nil, nil); err != nil {
		return nil, err
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	segments := make([]speech.Segment, 0)
	var textBuilder strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		segments = append(segments, speech.Segment{
			ID:    seg.Num,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
		if textBuilder.Len() > 0 {
			textBuilder.WriteByte(' ')
		}
		textBuilder.WriteString(strings.TrimSpace(seg.Text))
	}

	duration := time.Duration(float64(len(samples)) / float64(whisper.SampleRate) * float64(time.Second))
	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = languageOpt
	}

	return &speech.Result{
		Text:     strings.TrimSpace(textBuilder.String()),
		Language: detected,
		Duration: duration,
		Segments: segments,
	}, nil
}

func mergeOptions(base, override speech.Options) speech.Options {
	result := base

	if override.LanguageSet {
		result.Language = override.Language
		result.LanguageSet = true
	}
	if override.ThreadsSet {
		result.Threads = override.Threads
		result.ThreadsSet = true
	}
	if override.UseCPU {
		result.UseCPU = true
	}

	return result
}

func resampleFloat32(src []float32, srcRate, dstRate int) []float32 {
	if len(src) == 0 {
		return nil
	}
	if srcRate <= 0 {
		srcRate = dstRate
	}
	if dstRate <= 0 || srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	targetLen := int(math.Ceil(float64(len(src)) / ratio))
	if targetLen <= 0 {
		targetLen = 1
	}

	out := make([]float32, targetLen)
	for i := 0; i < targetLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))
		if idx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		val := src[idx]
		out[i] = val + (src[idx+1]-val)*frac
	}
	return out
}
