package conf

import "github.com/elbartohub/myWhisper/internal/speech"

// SpeechConfig controls the speech-to-text backend.
type SpeechConfig struct {
	Language string `mapstructure:"language" json:"language"`
	Threads  int    `mapstructure:"threads" json:"threads"`
	UseCPU   bool   `mapstructure:"use_cpu" json:"use_cpu"`
}

// ToOptions converts the speech config into runtime options for a transcription backend.
func (c *SpeechConfig) ToOptions() speech.Options {
	var opts speech.Options

	if c == nil {
		return opts
	}

	if c.Language != "" {
		opts.Language = c.Language
		opts.LanguageSet = true
	}
	if c.Threads > 0 {
		opts.Threads = c.Threads
		opts.ThreadsSet = true
	}
	opts.UseCPU = c.UseCPU

	return opts
}
