package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Chunk is one audio segment produced by silence splitting, with its
// absolute offset from the start of the source file.
type Chunk struct {
	Index   int
	Offset  float64 // seconds
	Samples []float32
	Rate    int
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// FFmpegChunker decodes arbitrary audio/video input through ffmpeg into
// mono 16kHz PCM and splits it on silence boundaries.
type FFmpegChunker struct {
	FFmpegPath string
	Params     SplitParams

	// decode converts the input into a PCM16 mono WAV at outPath;
	// injectable for tests.
	decode func(ctx context.Context, inputPath, outPath string) error
}

// NewFFmpegChunker builds a chunker using the ffmpeg binary on PATH.
func NewFFmpegChunker(params SplitParams) *FFmpegChunker {
	c := &FFmpegChunker{
		FFmpegPath: "ffmpeg",
		Params:     params,
	}
	c.decode = c.runFFmpeg
	return c
}

// Split decodes inputPath into scratchDir and returns the ordered chunks.
// No chunk exceeds Params.MaxChunk; when no silence is detected the whole
// file is treated as one region before the max-length slicing.
func (c *FFmpegChunker) Split(ctx context.Context, inputPath, scratchDir string) ([]Chunk, error) {
	decoded := filepath.Join(scratchDir, "decoded-16k-mono.wav")
	if err := c.decode(ctx, inputPath, decoded); err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	samples, rate, err := ReadWAVFile(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse decoded audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("decoded audio is empty: %s", inputPath)
	}

	ranges := splitOnSilence(samples, rate, c.Params)
	if len(ranges) == 0 {
		ranges = []sampleRange{{start: 0, end: len(samples)}}
	}

	maxSamples := int(c.Params.MaxChunk.Seconds() * float64(rate))
	if maxSamples < 1 {
		maxSamples = len(samples)
	}

	var chunks []Chunk
	for _, r := range ranges {
		for start := r.start; start < r.end; start += maxSamples {
			end := start + maxSamples
			if end > r.end {
				end = r.end
			}
			chunks = append(chunks, Chunk{
				Index:   len(chunks),
				Offset:  float64(start) / float64(rate),
				Samples: samples[start:end],
				Rate:    rate,
			})
		}
	}

	log.Debug().Str("input", inputPath).Int("chunks", len(chunks)).Int("rate", rate).Msg("audio chunked")
	return chunks, nil
}

func (c *FFmpegChunker) runFFmpeg(ctx context.Context, inputPath, outPath string) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
