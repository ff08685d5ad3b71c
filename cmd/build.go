package cmd

import (
	"github.com/rs/zerolog/log"

	"github.com/elbartohub/myWhisper/internal/audio"
	"github.com/elbartohub/myWhisper/internal/conf"
	"github.com/elbartohub/myWhisper/internal/glossary"
	"github.com/elbartohub/myWhisper/internal/job"
	"github.com/elbartohub/myWhisper/internal/pipeline"
	"github.com/elbartohub/myWhisper/internal/speech/whispercpp"
	"github.com/elbartohub/myWhisper/internal/translate"
)

// buildPipeline assembles the transcription pipeline from configuration.
// The returned watcher may be nil when the glossary file cannot be
// observed; the pipeline then runs without substitution rules.
func buildPipeline(cfg *conf.Config) (*pipeline.Pipeline, *glossary.Watcher) {
	chunker := audio.NewFFmpegChunker(cfg.Chunk.ToSplitParams())
	chunker.FFmpegPath = cfg.FFmpegPath

	provider := whispercpp.NewProvider(cfg.ModelsDir)

	var translator translate.Translator
	if cfg.Translate.Enabled() {
		translator = translate.NewOpenAITranslator(cfg.Translate.ToConfig())
	}

	watcher, err := glossary.NewWatcher(cfg.GlossaryPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.GlossaryPath).Msg("glossary unavailable, continuing without substitution rules")
		watcher = nil
	}
	var rules pipeline.GlossarySource
	if watcher != nil {
		rules = watcher
	}

	pl := pipeline.New(pipeline.Config{
		OutputsDir: cfg.OutputsDir,
		TargetLang: cfg.Translate.TargetLang,
		BatchSize:  cfg.Translate.BatchSize,
		SpeechOpts: cfg.Speech.ToOptions(),
	}, job.NewRegistry(), chunker, provider, translator, rules)

	return pl, watcher
}
