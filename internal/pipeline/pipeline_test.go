package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elbartohub/myWhisper/internal/audio"
	"github.com/elbartohub/myWhisper/internal/glossary"
	"github.com/elbartohub/myWhisper/internal/job"
	"github.com/elbartohub/myWhisper/internal/speech"
	"github.com/elbartohub/myWhisper/internal/subtitle"
	"github.com/elbartohub/myWhisper/internal/translate"
)

type fakeChunker struct {
	chunks []audio.Chunk
	err    error

	scratchDir string
}

func (f *fakeChunker) Split(_ context.Context, _, scratchDir string) ([]audio.Chunk, error) {
	f.scratchDir = scratchDir
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeRecognizer struct {
	results map[int]*speech.Result // keyed by chunk sample length
	err     error
	closed  bool
}

func (f *fakeRecognizer) Close() { f.closed = true }

func (f *fakeRecognizer) TranscribePCM(_ context.Context, samples []float32, _ int, _ speech.Options) (*speech.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[len(samples)]; ok {
		return r, nil
	}
	return &speech.Result{}, nil
}

type fakeProvider struct {
	recognizer *fakeRecognizer
	err        error
	model      string
	opts       speech.Options
}

func (f *fakeProvider) Open(_ context.Context, model string, opts speech.Options) (speech.Recognizer, error) {
	f.model = model
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.recognizer, nil
}

type fakeTranslator struct {
	fail      map[string]bool // sentences whose batch should fail
	failAll   bool
	calls     [][]string
	translate func(s string) string
}

func (f *fakeTranslator) TranslateBatch(_ context.Context, sentences []string, _ string) ([]string, error) {
	f.calls = append(f.calls, append([]string(nil), sentences...))
	if f.failAll {
		return nil, errors.New("upstream rejected request")
	}
	for _, s := range sentences {
		if f.fail[s] {
			return nil, fmt.Errorf("cannot translate %q", s)
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if f.translate != nil {
			out[i] = f.translate(s)
		} else {
			out[i] = "T:" + s
		}
	}
	return out, nil
}

type staticGlossary struct {
	rules glossary.Rules
}

func (s staticGlossary) Rules() glossary.Rules { return s.rules }

func chunkOf(offset float64, n int) audio.Chunk {
	return audio.Chunk{Offset: offset, Samples: make([]float32, n), Rate: 16000}
}

func waitTerminal(t *testing.T, p *Pipeline, id string) job.Snapshot {
	t.Helper()
	var snap job.Snapshot
	require.Eventually(t, func() bool {
		snap = p.Status(id)
		return job.State(snap.State).Terminal()
	}, 5*time.Second, 5*time.Millisecond, "job never reached a terminal state")
	return snap
}

func newTestPipeline(t *testing.T, chunker Chunker, provider speech.Provider, translator *fakeTranslator, gloss GlossarySource) *Pipeline {
	t.Helper()
	cfg := Config{
		OutputsDir: t.TempDir(),
		TargetLang: "zh-TW",
		BatchSize:  2,
	}
	var tr translate.Translator
	if translator != nil {
		tr = translator
	}
	return New(cfg, job.NewRegistry(), chunker, provider, tr, gloss)
}

func TestSubmitSuccessSRT(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 100), chunkOf(60, 200)}}
	recognizer := &fakeRecognizer{results: map[int]*speech.Result{
		100: {
			Text: "Hello world.",
			Segments: []speech.Segment{
				{Start: 0, End: 2 * time.Second, Text: "Hello world."},
			},
		},
		200: {
			Text: "Second chunk.",
			Segments: []speech.Segment{
				{Start: time.Second, End: 3 * time.Second, Text: "Second chunk."},
			},
		},
	}}
	provider := &fakeProvider{recognizer: recognizer}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/talk.mp4", Model: "base", Format: FormatSRT})
	require.NotEmpty(t, id)

	snap := waitTerminal(t, p, id)
	assert.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, 100, snap.ChunkProgress)
	assert.Equal(t, 100, snap.TranscribeProgress)
	assert.Equal(t, 100, snap.PostProgress)
	assert.True(t, recognizer.closed)

	require.FileExists(t, snap.OutputFile)
	assert.Equal(t, "talk.srt", filepath.Base(snap.OutputFile))

	content, err := os.ReadFile(snap.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, snap.Output, string(content))
	// Segment from the second chunk is shifted by its 60s offset.
	assert.Contains(t, string(content), "00:01:01,000 --> 00:01:03,000")
	assert.Contains(t, string(content), "Hello world.")
}

func TestSubmitDefaultsToSRT(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "hi", Segments: []speech.Segment{{End: time.Second, Text: "hi"}}},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base"})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Equal(t, ".srt", filepath.Ext(snap.OutputFile))
}

func TestSubmitAllFormats(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "merged text", Segments: []speech.Segment{{End: time.Second, Text: "merged text"}}},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	outDir := t.TempDir()
	id := p.Submit(Request{InputPath: "/tmp/lecture.mkv", OutputDir: outDir, Model: "base", Format: FormatAll})
	snap := waitTerminal(t, p, id)

	require.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.FileExists(t, filepath.Join(outDir, "lecture.txt"))
	assert.FileExists(t, filepath.Join(outDir, "lecture.json"))
	assert.FileExists(t, filepath.Join(outDir, "lecture.srt"))
	// SRT is the primary artifact for "all".
	assert.Equal(t, filepath.Join(outDir, "lecture.srt"), snap.OutputFile)
	assert.Contains(t, snap.Output, "-->")

	raw, err := os.ReadFile(filepath.Join(outDir, "lecture.json"))
	require.NoError(t, err)
	var doc struct {
		Text     string             `json:"text"`
		Segments []subtitle.Segment `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "merged text", doc.Text)
	require.Len(t, doc.Segments, 1)
}

func TestSubmitTranslation(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {
			Text: "First sentence. Second sentence.",
			Segments: []speech.Segment{
				{End: time.Second, Text: "First sentence."},
				{Start: time.Second, End: 2 * time.Second, Text: "Second sentence."},
			},
		},
	}}}
	translator := &fakeTranslator{}

	p := newTestPipeline(t, chunker, provider, translator, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Format: FormatTXT, Translate: true})
	snap := waitTerminal(t, p, id)

	require.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Equal(t, 100, snap.TranslateProgress)
	assert.Equal(t, "T:First sentence. T:Second sentence.", snap.Output)
	assert.NotEmpty(t, translator.calls)
}

func TestTranslationUnitFailureKeepsOriginal(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {
			Text: "Good sentence. Bad sentence.",
			Segments: []speech.Segment{
				{End: time.Second, Text: "Good sentence."},
			},
		},
	}}}
	translator := &fakeTranslator{fail: map[string]bool{"Bad sentence.": true}}

	p := newTestPipeline(t, chunker, provider, translator, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Format: FormatTXT, Translate: true})
	snap := waitTerminal(t, p, id)

	// A failed sentence is kept untranslated; the job still succeeds.
	require.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Contains(t, snap.Output, "T:Good sentence.")
	assert.Contains(t, snap.Output, "Bad sentence.")
	assert.NotContains(t, snap.Output, "T:Bad sentence.")
}

func TestTranslationTotalFailureFailsJob(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "Only sentence.", Segments: []speech.Segment{{End: time.Second, Text: "Only sentence."}}},
	}}}
	translator := &fakeTranslator{failAll: true}

	p := newTestPipeline(t, chunker, provider, translator, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Translate: true})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateFailed), string(snap.State))
	assert.Equal(t, 100, snap.Progress)
	assert.Contains(t, snap.Error, "translation failed for every unit")
}

func TestTranslationRequestedWithoutTranslator(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "hi"},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Translate: true})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateFailed), string(snap.State))
	assert.Contains(t, snap.Error, "no translator configured")
}

func TestChunkerFailureFailsJob(t *testing.T) {
	chunker := &fakeChunker{err: errors.New("ffmpeg exited with status 1")}
	p := newTestPipeline(t, chunker, &fakeProvider{}, nil, nil)

	id := p.Submit(Request{InputPath: "/tmp/broken.mp4", Model: "base"})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateFailed), string(snap.State))
	assert.Equal(t, string(job.StageChunking), string(snap.Stage))
	assert.Contains(t, snap.Error, "ffmpeg exited with status 1")
	// Failure records carry a stack trace after the message.
	assert.Contains(t, snap.Error, "goroutine")
}

func TestEmptyChunksFailsJob(t *testing.T) {
	chunker := &fakeChunker{}
	p := newTestPipeline(t, chunker, &fakeProvider{}, nil, nil)

	id := p.Submit(Request{InputPath: "/tmp/silent.wav", Model: "base"})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateFailed), string(snap.State))
	assert.Contains(t, snap.Error, "no audio chunks")
}

func TestRecognizerFailureFailsJob(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{err: errors.New("model not loaded")}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base"})
	snap := waitTerminal(t, p, id)

	assert.Equal(t, string(job.StateFailed), string(snap.State))
	assert.Equal(t, string(job.StageTranscribing), string(snap.Stage))
	assert.Contains(t, snap.Error, "model not loaded")
}

func TestGlossaryAppliedToOutput(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {
			Text:     "the whisper   model works",
			Segments: []speech.Segment{{End: time.Second, Text: "the whisper   model works"}},
		},
	}}}
	gloss := staticGlossary{rules: glossary.Rules{{Source: "whisper model", Target: "Whisper"}}}

	p := newTestPipeline(t, chunker, provider, nil, gloss)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Format: FormatTXT})
	snap := waitTerminal(t, p, id)

	require.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Equal(t, "the Whisper works", snap.Output)
}

func TestScratchDirRemoved(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "hi"},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Format: FormatTXT})
	waitTerminal(t, p, id)

	require.NotEmpty(t, chunker.scratchDir)
	assert.NoDirExists(t, chunker.scratchDir)
}

func TestStatusUnknownJobIsLenient(t *testing.T) {
	p := newTestPipeline(t, &fakeChunker{}, &fakeProvider{}, nil, nil)
	snap := p.Status("no-such-job")
	assert.Equal(t, string(job.StatePending), string(snap.State))
	assert.Equal(t, 0, snap.Progress)
}

func TestUseCPUOverridesOptions(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "hi"},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "medium", Format: FormatTXT, UseCPU: true})
	snap := waitTerminal(t, p, id)

	require.Equal(t, string(job.StateSucceeded), string(snap.State))
	assert.Equal(t, "medium", provider.model)
	assert.True(t, provider.opts.UseCPU)
}

func TestShutdownWaitsForJobs(t *testing.T) {
	chunker := &fakeChunker{chunks: []audio.Chunk{chunkOf(0, 10)}}
	provider := &fakeProvider{recognizer: &fakeRecognizer{results: map[int]*speech.Result{
		10: {Text: "hi"},
	}}}

	p := newTestPipeline(t, chunker, provider, nil, nil)
	id := p.Submit(Request{InputPath: "/tmp/a.wav", Model: "base", Format: FormatTXT})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	snap := p.Status(id)
	assert.True(t, job.State(snap.State).Terminal())
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{FormatTXT, FormatJSON, FormatSRT, FormatAll} {
		assert.True(t, ValidFormat(f), f)
	}
	assert.False(t, ValidFormat("pdf"))
	assert.False(t, ValidFormat(""))
}

func TestStageErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &StageError{Stage: job.StageChunking, Err: inner}
	assert.Equal(t, "chunking: boom", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.True(t, strings.Contains(err.Error(), string(job.StageChunking)))
}
