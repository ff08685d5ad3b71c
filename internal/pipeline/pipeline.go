package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/audio"
	"github.com/elbartohub/myWhisper/internal/glossary"
	"github.com/elbartohub/myWhisper/internal/job"
	"github.com/elbartohub/myWhisper/internal/speech"
	"github.com/elbartohub/myWhisper/internal/subtitle"
	"github.com/elbartohub/myWhisper/internal/textnorm"
	"github.com/elbartohub/myWhisper/internal/translate"
)

// Chunker splits an input media file into ordered audio chunks inside the
// job's scratch directory.
type Chunker interface {
	Split(ctx context.Context, inputPath, scratchDir string) ([]audio.Chunk, error)
}

// GlossarySource supplies the current replacement rules.
type GlossarySource interface {
	Rules() glossary.Rules
}

// Format is an output artifact format.
const (
	FormatTXT  = "txt"
	FormatJSON = "json"
	FormatSRT  = "srt"
	FormatAll  = "all"
)

// ValidFormat reports whether f names a supported output format.
func ValidFormat(f string) bool {
	switch f {
	case FormatTXT, FormatJSON, FormatSRT, FormatAll:
		return true
	}
	return false
}

// Request describes one submitted transcription job.
type Request struct {
	InputPath string
	OutputDir string // overrides the configured outputs directory when set
	Model     string
	Format    string // txt|json|srt|all, default srt
	UseCPU    bool
	Translate bool
}

// Config carries the pipeline-wide settings.
type Config struct {
	OutputsDir string
	TargetLang string
	BatchSize  int
	SpeechOpts speech.Options
}

// Pipeline owns the background transcription jobs: it sequences chunking,
// transcription, optional translation, post-processing and persistence for
// each submitted file, reporting progress through the shared registry.
type Pipeline struct {
	cfg        Config
	registry   *job.Registry
	chunker    Chunker
	provider   speech.Provider
	translator translate.Translator
	glossary   GlossarySource

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a Pipeline. translator may be nil when translation is not
// configured; glossary may be nil for an empty rule set.
func New(cfg Config, registry *job.Registry, chunker Chunker, provider speech.Provider, translator translate.Translator, gloss GlossarySource) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 8
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "zh-TW"
	}

	return &Pipeline{
		cfg:        cfg,
		registry:   registry,
		chunker:    chunker,
		provider:   provider,
		translator: translator,
		glossary:   gloss,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Submit registers a new Pending job, launches its background execution
// and returns the job id immediately. The record is registered before the
// background goroutine can observe it.
func (p *Pipeline) Submit(req Request) string {
	id := uuid.NewString()
	j := p.registry.Register(id)

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancels[id] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, j, req)

	log.Info().Str("job", id).Str("input", req.InputPath).Str("model", req.Model).
		Str("format", req.Format).Bool("translate", req.Translate).Msg("job submitted")
	return id
}

// Status returns the lenient snapshot for id: unknown ids read as a
// pending job at zero progress.
func (p *Pipeline) Status(id string) job.Snapshot {
	snap, _ := p.registry.Get(id)
	return snap
}

// Shutdown cancels all running jobs and waits for their goroutines, up to
// the context deadline. It exists for host shutdown only; there is no
// per-job cancellation API.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, j *job.Job, req Request) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		if cancel, ok := p.cancels[j.ID()]; ok {
			cancel()
			delete(p.cancels, j.ID())
		}
		p.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
			log.Error().Str("job", j.ID()).Msg(msg)
			j.Fail(msg)
		}
	}()

	j.Start()

	if err := p.execute(ctx, j, req); err != nil {
		msg := fmt.Sprintf("%v\n%s", err, debug.Stack())
		log.Error().Err(err).Str("job", j.ID()).Msg("job failed")
		j.Fail(msg)
		return
	}

	log.Info().Str("job", j.ID()).Msg("job succeeded")
}

func (p *Pipeline) execute(ctx context.Context, j *job.Job, req Request) error {
	scratchDir, err := os.MkdirTemp("", "mywhisper-job-*")
	if err != nil {
		return &StageError{Stage: job.StageChunking, Err: fmt.Errorf("create scratch dir: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			log.Warn().Err(err).Str("job", j.ID()).Str("dir", scratchDir).Msg("scratch cleanup failed")
		}
	}()

	// Chunking.
	j.EnterStage(job.StageChunking)
	chunks, err := p.chunker.Split(ctx, req.InputPath, scratchDir)
	if err != nil {
		return &StageError{Stage: job.StageChunking, Err: err}
	}
	if len(chunks) == 0 {
		return &StageError{Stage: job.StageChunking, Err: fmt.Errorf("no audio chunks produced from %s", req.InputPath)}
	}
	j.SetStageProgress(job.StageChunking, 100)
	j.SetOverall(25)

	// Transcription.
	j.EnterStage(job.StageTranscribing)
	opts := p.cfg.SpeechOpts
	if req.UseCPU {
		opts.UseCPU = true
	}

	recognizer, err := p.provider.Open(ctx, req.Model, opts)
	if err != nil {
		return &StageError{Stage: job.StageTranscribing, Err: err}
	}
	defer recognizer.Close()

	var (
		segments []subtitle.Segment
		texts    []string
	)
	for i, chunk := range chunks {
		result, err := recognizer.TranscribePCM(ctx, chunk.Samples, chunk.Rate, opts)
		if err != nil {
			return &StageError{Stage: job.StageTranscribing, Err: fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)}
		}

		for _, seg := range result.Segments {
			segments = append(segments, subtitle.Segment{
				Start: chunk.Offset + seg.Start.Seconds(),
				End:   chunk.Offset + seg.End.Seconds(),
				Text:  seg.Text,
			})
		}
		if text := strings.TrimSpace(result.Text); text != "" {
			texts = append(texts, text)
		}

		j.SetStageProgress(job.StageTranscribing, roundPct(i+1, len(chunks)))
	}
	j.SetStageProgress(job.StageTranscribing, 100)
	j.SetOverall(50)

	text := strings.Join(texts, "\n")

	// Translation, only when requested.
	if req.Translate {
		j.EnterStage(job.StageTranslating)
		if p.translator == nil {
			return &StageError{Stage: job.StageTranslating, Err: fmt.Errorf("translation requested but no translator configured")}
		}
		text, err = p.translateAll(ctx, j, text, segments)
		if err != nil {
			return err
		}
		j.SetStageProgress(job.StageTranslating, 100)
		j.SetOverall(75)
	}

	// Post-processing: glossary substitution then CJK whitespace cleanup,
	// on the merged text and on every segment independently.
	j.EnterStage(job.StagePostprocessing)
	var rules glossary.Rules
	if p.glossary != nil {
		rules = p.glossary.Rules()
	}
	text = textnorm.CollapseCJKWhitespace(rules.Apply(text))
	for i := range segments {
		segments[i].Text = textnorm.CollapseCJKWhitespace(rules.Apply(segments[i].Text))
	}
	j.SetStageProgress(job.StagePostprocessing, 100)

	// Persistence.
	output, outputFile, err := p.persist(req, text, segments)
	if err != nil {
		return &StageError{Stage: job.StagePostprocessing, Err: err}
	}

	j.Succeed(output, outputFile)
	return nil
}

// translateAll translates the merged text batch by batch and each
// segment's own text independently so timing stays aligned. A failed unit
// keeps its original text; the job only fails when no unit at all could be
// translated.
func (p *Pipeline) translateAll(ctx context.Context, j *job.Job, text string, segments []subtitle.Segment) (string, error) {
	sentences := textnorm.SplitSentences(text)
	batches := batchStrings(sentences, p.cfg.BatchSize)

	totalUnits := len(batches) + len(segments)
	if totalUnits == 0 {
		return text, nil
	}

	var (
		done      int
		attempted int
		succeeded int
	)
	progress := func() {
		done++
		pct := roundPct(done, totalUnits)
		if pct > 99 {
			// The stage reports complete only once every unit is through.
			pct = 99
		}
		j.SetStageProgress(job.StageTranslating, pct)
	}

	translated := make([]string, 0, len(sentences))
	for i, batch := range batches {
		attempted++
		out, err := p.translator.TranslateBatch(ctx, batch, p.cfg.TargetLang)
		if err != nil || len(out) != len(batch) {
			log.Warn().Err(err).Str("job", j.ID()).Int("batch", i+1).Msg("batch translation failed, retrying per sentence")
			out = p.translatePerSentence(ctx, j, batch, &succeeded)
		} else {
			succeeded++
		}
		translated = append(translated, out...)
		progress()
	}
	result := strings.Join(translated, " ")
	if len(batches) == 0 {
		result = text
	}

	for i := range segments {
		attempted++
		segSentences := textnorm.SplitSentences(segments[i].Text)
		if len(segSentences) == 0 {
			progress()
			continue
		}
		out, err := p.translator.TranslateBatch(ctx, segSentences, p.cfg.TargetLang)
		if err != nil || len(out) != len(segSentences) {
			log.Warn().Err(err).Str("job", j.ID()).Int("segment", i).Msg("segment translation failed, keeping original text")
		} else {
			segments[i].Text = strings.Join(out, " ")
			succeeded++
		}
		progress()
	}

	if attempted > 0 && succeeded == 0 {
		return "", &StageError{Stage: job.StageTranslating, Err: fmt.Errorf("translation failed for every unit")}
	}
	return result, nil
}

// translatePerSentence is the fallback path after a failed batch: each
// sentence alone, keeping the original on failure.
func (p *Pipeline) translatePerSentence(ctx context.Context, j *job.Job, batch []string, succeeded *int) []string {
	out := make([]string, len(batch))
	for i, sentence := range batch {
		translated, err := p.translator.TranslateBatch(ctx, []string{sentence}, p.cfg.TargetLang)
		if err != nil || len(translated) != 1 {
			log.Warn().Err(err).Str("job", j.ID()).Msg("sentence translation failed, keeping original")
			out[i] = sentence
			continue
		}
		out[i] = translated[0]
		*succeeded++
	}
	return out
}

func (p *Pipeline) persist(req Request, text string, segments []subtitle.Segment) (output, outputFile string, err error) {
	outDir := req.OutputDir
	if outDir == "" {
		outDir = p.cfg.OutputsDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create outputs dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	if stem == "" {
		stem = "transcript"
	}

	format := req.Format
	if format == "" {
		format = FormatSRT
	}

	text = strings.TrimSpace(text)
	output = text

	if format == FormatTXT || format == FormatAll {
		path := filepath.Join(outDir, stem+".txt")
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return "", "", fmt.Errorf("write txt: %w", err)
		}
		outputFile = path
	}

	if format == FormatJSON || format == FormatAll {
		payload, err := json.MarshalIndent(struct {
			Text     string             `json:"text"`
			Segments []subtitle.Segment `json:"segments"`
		}{Text: text, Segments: segments}, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("encode json: %w", err)
		}
		path := filepath.Join(outDir, stem+".json")
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return "", "", fmt.Errorf("write json: %w", err)
		}
		outputFile = path
	}

	if format == FormatSRT || format == FormatAll {
		// Chunk merge order is not guaranteed monotonic; re-sort before
		// rendering so subtitle timestamps never go backwards.
		sorted := make([]subtitle.Segment, len(segments))
		copy(sorted, segments)
		subtitle.SortByStart(sorted)

		content := subtitle.Render(sorted)
		path := filepath.Join(outDir, stem+".srt")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", "", fmt.Errorf("write srt: %w", err)
		}
		output = content
		outputFile = path
	}

	return output, outputFile, nil
}

func batchStrings(items []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func roundPct(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
