package audio

import (
	"math"
	"time"
)

// SplitParams tunes silence-based chunking.
type SplitParams struct {
	// MinSilence is the shortest gap treated as a split point.
	MinSilence time.Duration
	// ThresholdOffsetDB is subtracted from the file's overall loudness to
	// form the silence threshold.
	ThresholdOffsetDB float64
	// KeepSilence is how much of the surrounding silence each chunk keeps.
	KeepSilence time.Duration
	// MaxChunk caps chunk duration; longer chunks are re-split into
	// fixed-length slices.
	MaxChunk time.Duration
}

// DefaultSplitParams mirrors the service defaults: 60s chunks split on
// 700ms silences quieter than overall loudness minus 16dB, keeping 300ms
// of padding.
func DefaultSplitParams() SplitParams {
	return SplitParams{
		MinSilence:        700 * time.Millisecond,
		ThresholdOffsetDB: 16,
		KeepSilence:       300 * time.Millisecond,
		MaxChunk:          60 * time.Second,
	}
}

type sampleRange struct {
	start, end int
}

// frameDuration is the analysis window for loudness measurements.
const frameDuration = 10 * time.Millisecond

// splitOnSilence returns the non-silent sample ranges of a mono signal,
// padded by KeepSilence on each side. An entirely silent or entirely loud
// signal yields zero or one range respectively.
func splitOnSilence(samples []float32, rate int, p SplitParams) []sampleRange {
	if len(samples) == 0 || rate <= 0 {
		return nil
	}

	frame := int(float64(rate) * frameDuration.Seconds())
	if frame < 1 {
		frame = 1
	}

	threshold := loudnessDB(samples) - p.ThresholdOffsetDB
	minSilentFrames := int(p.MinSilence / frameDuration)
	if minSilentFrames < 1 {
		minSilentFrames = 1
	}

	nFrames := (len(samples) + frame - 1) / frame
	silent := make([]bool, nFrames)
	for i := 0; i < nFrames; i++ {
		start := i * frame
		end := start + frame
		if end > len(samples) {
			end = len(samples)
		}
		silent[i] = loudnessDB(samples[start:end]) < threshold
	}

	// Silent runs shorter than MinSilence belong to the surrounding speech.
	var gaps []sampleRange
	for i := 0; i < nFrames; {
		if !silent[i] {
			i++
			continue
		}
		j := i
		for j < nFrames && silent[j] {
			j++
		}
		if j-i >= minSilentFrames {
			end := j * frame
			if end > len(samples) {
				end = len(samples)
			}
			gaps = append(gaps, sampleRange{start: i * frame, end: end})
		}
		i = j
	}

	keep := int(float64(rate) * p.KeepSilence.Seconds())
	var ranges []sampleRange
	cursor := 0
	for _, gap := range gaps {
		if gap.start > cursor {
			ranges = append(ranges, padRange(sampleRange{cursor, gap.start}, keep, len(samples)))
		}
		cursor = gap.end
	}
	if cursor < len(samples) {
		ranges = append(ranges, padRange(sampleRange{cursor, len(samples)}, keep, len(samples)))
	}

	return ranges
}

func padRange(r sampleRange, keep, limit int) sampleRange {
	r.start -= keep
	if r.start < 0 {
		r.start = 0
	}
	r.end += keep
	if r.end > limit {
		r.end = limit
	}
	return r
}

// loudnessDB returns RMS loudness in dBFS; silence maps to a floor well
// below any plausible threshold.
func loudnessDB(samples []float32) float64 {
	if len(samples) == 0 {
		return -120
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return -120
	}
	db := 20 * math.Log10(rms)
	if db < -120 {
		db = -120
	}
	return db
}
