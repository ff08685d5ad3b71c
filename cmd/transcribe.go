package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elbartohub/myWhisper/internal/conf"
	"github.com/elbartohub/myWhisper/internal/job"
	"github.com/elbartohub/myWhisper/internal/pipeline"
)

var (
	transcribeModel     string
	transcribeOutput    string
	transcribeFormat    string
	transcribeCPU       bool
	transcribeTranslate bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE",
	Short: "Transcribe a single file and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		if _, err := os.Stat(input); err != nil {
			return fmt.Errorf("input file: %w", err)
		}

		cfg, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		if transcribeFormat != "" && !pipeline.ValidFormat(transcribeFormat) {
			return fmt.Errorf("unsupported format %q", transcribeFormat)
		}
		if transcribeTranslate && !cfg.Translate.Enabled() {
			return fmt.Errorf("translation requested but no api key configured")
		}

		pl, watcher := buildPipeline(cfg)
		if watcher != nil {
			defer watcher.Close()
		}

		model := transcribeModel
		if model == "" {
			model = cfg.Model
		}
		format := transcribeFormat
		if format == "" {
			format = cfg.Format
		}

		id := pl.Submit(pipeline.Request{
			InputPath: input,
			OutputDir: transcribeOutput,
			Model:     model,
			Format:    format,
			UseCPU:    transcribeCPU,
			Translate: transcribeTranslate,
		})

		snap := pollUntilDone(pl, id)
		if snap.State == job.StateFailed {
			return fmt.Errorf("transcription failed: %s", firstLine(snap.Error))
		}

		log.Info().Str("output", snap.OutputFile).Msg("transcription complete")
		fmt.Println(snap.OutputFile)
		return nil
	},
}

func pollUntilDone(pl *pipeline.Pipeline, id string) job.Snapshot {
	lastProgress := -1
	for {
		snap := pl.Status(id)
		if snap.Progress != lastProgress {
			lastProgress = snap.Progress
			log.Info().Str("job", id).Str("state", string(snap.State)).
				Str("stage", string(snap.Stage)).Int("progress", snap.Progress).Msg("progress")
		}
		if snap.State.Terminal() {
			return snap
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeModel, "model", "m", "", "whisper model name (default from config)")
	transcribeCmd.Flags().StringVarP(&transcribeOutput, "output", "o", "", "output directory (default from config)")
	transcribeCmd.Flags().StringVarP(&transcribeFormat, "format", "f", "", "output format: txt|json|srt|all")
	transcribeCmd.Flags().BoolVar(&transcribeCPU, "cpu", false, "force CPU inference")
	transcribeCmd.Flags().BoolVar(&transcribeTranslate, "translate", false, "translate the transcript")
	rootCmd.AddCommand(transcribeCmd)
}
