package speech

import (
	"context"
	"time"
)

// Options configures a transcription request.
type Options struct {
	Language    string // "auto" to let the model detect language
	LanguageSet bool   // true when Language should override defaults
	Threads     int    // number of threads used by the backend (<=0 uses default)
	ThreadsSet  bool   // true when Threads should override defaults
	UseCPU      bool   // force CPU inference where the backend supports it
}

// Segment represents a portion of transcribed text with timestamps
// relative to the start of the audio handed to the recognizer.
type Segment struct {
	ID    int           `json:"id"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Result holds the transcription outcome returned by a backend.
type Result struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration time.Duration `json:"duration"`
	Segments []Segment     `json:"segments"`
}

// Recognizer converts mono PCM audio into text plus timed segments.
type Recognizer interface {
	Close()
	TranscribePCM(ctx context.Context, samples []float32, sampleRate int, opts Options) (*Result, error)
}

// Provider opens a Recognizer for a named model. Implementations may load
// the model lazily or fetch it from a remote catalog first.
type Provider interface {
	Open(ctx context.Context, model string, opts Options) (Recognizer, error)
}
